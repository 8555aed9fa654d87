package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/simp-lee/layover/internal/pkg"
	"github.com/simp-lee/layover/internal/route"
)

// addonAssetPrefix is where console.addon_dir is served; addon section
// templates resolve under it.
const addonAssetPrefix = "/" + route.TemplateBase

// RouteDeps holds all dependencies needed to register routes.
type RouteDeps struct {
	Modules []Module
	DB      *gorm.DB
	Mode    string // "debug", "release" or "test"

	// WebFS holds the static/ and partials/ trees. Nil skips asset routes.
	WebFS fs.FS

	// AddonDir is served under addonAssetPrefix when set.
	AddonDir string

	// Metrics is served at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string

	// Reserved prefixes never fall through to Fallback.
	Reserved []string

	// Fallback handles unmatched console page requests.
	Fallback gin.HandlerFunc
}

// RegisterRoutes registers all application routes on the given gin.Engine.
func RegisterRoutes(r *gin.Engine, deps *RouteDeps) error {
	if r == nil {
		return errors.New("router is nil")
	}
	if deps == nil {
		return errors.New("route dependencies are nil")
	}
	if len(deps.Modules) == 0 {
		return errors.New("at least one module is required")
	}

	if deps.WebFS != nil {
		if err := registerAssetRoutes(r, deps.WebFS, deps.Mode != gin.DebugMode); err != nil {
			return fmt.Errorf("register asset routes: %w", err)
		}
	}
	if deps.AddonDir != "" {
		if _, err := os.Stat(deps.AddonDir); err != nil {
			return fmt.Errorf("addon dir: %w", err)
		}
		r.GET(addonAssetPrefix+"*filepath", fileHandler(strings.TrimSuffix(addonAssetPrefix, "/"), http.Dir(deps.AddonDir), ""))
	}

	r.GET("/health", healthHandler(deps.DB))
	if deps.Metrics != nil && deps.MetricsPath != "" {
		r.GET(deps.MetricsPath, gin.WrapH(deps.Metrics))
	}

	api := r.Group("/api/v1")
	pages := r.Group("/")

	for i, m := range deps.Modules {
		if m == nil {
			return fmt.Errorf("module at index %d is nil", i)
		}
		if err := m.RegisterRoutes(api, pages); err != nil {
			return fmt.Errorf("module at index %d: %w", i, err)
		}
	}

	r.NoRoute(noRouteHandler(deps.Fallback, deps.Reserved))

	return nil
}

// healthHandler returns a handler that pings the database and reports status.
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "ok"
		if err := pingDB(c.Request.Context(), db); err != nil {
			dbStatus = "error"
		}

		status, code := "ok", http.StatusOK
		if dbStatus != "ok" {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status": status,
			"components": gin.H{
				"database": dbStatus,
			},
		})
	}
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("database is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// noRouteHandler answers requests no route matched. API paths get a JSON 404.
// Other GET and HEAD requests outside the reserved prefixes are console paths
// and go to fallback. Everything else gets the 404 page.
func noRouteHandler(fallback gin.HandlerFunc, reserved []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			c.JSON(http.StatusNotFound, pkg.Response{Code: http.StatusNotFound, Message: "not found"})
			return
		}

		method := c.Request.Method
		if fallback != nil && (method == http.MethodGet || method == http.MethodHead) && !underAny(path, reserved) {
			fallback(c)
			return
		}

		renderError(c, http.StatusNotFound, "not found")
	}
}

func underAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// registerAssetRoutes serves web/static at /static and the store view
// templates in web/partials at /partials. Release builds add cache headers.
func registerAssetRoutes(r *gin.Engine, webFS fs.FS, release bool) error {
	cacheControl := ""
	if release {
		cacheControl = "public, max-age=86400"
	}

	for _, dir := range []string{"static", "partials"} {
		sub, err := fs.Sub(webFS, dir)
		if err != nil {
			return fmt.Errorf("create sub filesystem for %s: %w", dir, err)
		}
		r.GET("/"+dir+"/*filepath", fileHandler("/"+dir, http.FS(sub), cacheControl))
	}
	return nil
}

// fileHandler serves fsys with prefix stripped, optionally setting a
// Cache-Control header.
func fileHandler(prefix string, fsys http.FileSystem, cacheControl string) gin.HandlerFunc {
	fileServer := http.StripPrefix(prefix, http.FileServer(fsys))
	return func(c *gin.Context) {
		if cacheControl != "" {
			c.Header("Cache-Control", cacheControl)
		}
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}
