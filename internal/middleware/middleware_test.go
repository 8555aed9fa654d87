package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newTestEngine builds an engine with the given middleware and a small set of
// console-like routes.
func newTestEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/remote", func(c *gin.Context) { c.String(http.StatusOK, "remote") })
	r.GET("/remote/view/:name", func(c *gin.Context) { c.String(http.StatusOK, c.Param("name")) })
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/api/v1/addons/:id", func(c *gin.Context) { c.String(http.StatusNotFound, "missing") })
	r.POST("/api/v1/addons", func(c *gin.Context) { c.String(http.StatusCreated, "created") })
	r.GET("/boom", func(c *gin.Context) { c.String(http.StatusInternalServerError, "boom") })
	r.GET("/panic", func(c *gin.Context) { panic("view exploded") })
	return r
}

func serve(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
