package console

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/layover/internal/pkg"
	"github.com/simp-lee/layover/internal/route"
)

// ViewTemplate is the page that hosts every console view.
const ViewTemplate = "console/view.html"

// ViewData is the data passed to ViewTemplate.
type ViewData struct {
	Title       string
	Path        string
	TemplateURL string
	Controller  string
	Source      string
	Params      map[string]string
}

// Listing is the route table as served by GET /api/v1/routes.
type Listing struct {
	Rules    []route.Rule    `json:"rules"`
	Fallback *route.Fallback `json:"fallback"`
}

// Observer receives console view and fallback events.
type Observer interface {
	ObserveView(route, source string)
	ObserveFallback()
}

// ConsoleHandler serves the views of a sealed route table.
type ConsoleHandler struct {
	table *route.Table
	title string
	obs   Observer
}

// NewConsoleHandler creates a handler for table. obs may be nil.
func NewConsoleHandler(table *route.Table, title string, obs Observer) *ConsoleHandler {
	return &ConsoleHandler{table: table, title: title, obs: obs}
}

// View returns the handler for one rule. It renders the view shell, which
// loads the rule's template and binds its controller in the browser.
func (h *ConsoleHandler) View(rule route.Rule) gin.HandlerFunc {
	templateURL := "/" + rule.TemplateRef
	return func(c *gin.Context) {
		params := make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			// Catch-all values carry their leading slash.
			params[p.Key] = strings.TrimPrefix(p.Value, "/")
		}
		if h.obs != nil {
			h.obs.ObserveView(rule.Path, rule.Source)
		}

		c.HTML(http.StatusOK, ViewTemplate, ViewData{
			Title:       h.title,
			Path:        rule.Path,
			TemplateURL: templateURL,
			Controller:  rule.ControllerRef,
			Source:      rule.Source,
			Params:      params,
		})
	}
}

// Routes handles GET /api/v1/routes.
func (h *ConsoleHandler) Routes(c *gin.Context) {
	listing := Listing{Rules: h.table.Rules()}
	if fb, ok := h.table.Fallback(); ok {
		listing.Fallback = &fb
	}
	pkg.Success(c, listing)
}

// Fallback redirects to the fallback rule's target.
func (h *ConsoleHandler) Fallback(c *gin.Context) {
	fb, ok := h.table.Fallback()
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if h.obs != nil {
		h.obs.ObserveFallback()
	}
	c.Redirect(http.StatusFound, fb.RedirectTo)
}
