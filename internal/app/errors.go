package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/layover/internal/pkg"
)

// errorTemplates maps HTTP status codes to their error pages. Unmapped codes
// use the 500 page.
var errorTemplates = map[int]string{
	http.StatusBadRequest:          "errors/400.html",
	http.StatusNotFound:            "errors/404.html",
	http.StatusInternalServerError: "errors/500.html",
}

// errorPage is the data passed to error templates.
type errorPage struct {
	Code    int
	Message string
	Path    string
}

// renderError answers with an error page for browsers and the JSON envelope
// for everything else. An explicit JSON Accept header wins over */*.
func renderError(c *gin.Context, code int, message string) {
	if !prefersHTML(c.GetHeader("Accept")) {
		c.JSON(code, pkg.Response{Code: code, Message: message})
		return
	}
	renderHTMLErrorPage(c, code, message)
}

// renderHTMLErrorPage renders the page for code, or plain text when the
// renderer panics.
func renderHTMLErrorPage(c *gin.Context, code int, message string) {
	defer func() {
		if r := recover(); r != nil {
			c.Data(code, "text/plain; charset=utf-8",
				[]byte(fmt.Sprintf("%d %s", code, defaultStatusText(code))))
		}
	}()

	tmpl, ok := errorTemplates[code]
	if !ok {
		tmpl = errorTemplates[http.StatusInternalServerError]
	}
	c.HTML(code, tmpl, errorPage{Code: code, Message: message, Path: c.Request.URL.Path})
}

// prefersHTML reports whether an Accept header asks for HTML. text/html,
// */* and an empty header count; application/json without text/html does not.
func prefersHTML(accept string) bool {
	accept = strings.ToLower(accept)
	if strings.Contains(accept, "text/html") {
		return true
	}
	if strings.Contains(accept, "application/json") {
		return false
	}
	return strings.Contains(accept, "*/*") || strings.TrimSpace(accept) == ""
}

func defaultStatusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Error"
}
