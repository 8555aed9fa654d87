package console

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/layover/internal/route"
)

// ConsoleModule mounts a route table onto gin. It implements app.Module.
type ConsoleModule struct {
	handler *ConsoleHandler
}

// NewModule checks the handler's table and returns the module. The table is
// rejected when it has no fallback, when a rule path is not absolute or falls
// under one of the reserved prefixes, or when two rules claim the same
// pattern. Panics if h is nil.
func NewModule(h *ConsoleHandler, reserved ...string) (*ConsoleModule, error) {
	if h == nil {
		panic("console.NewModule: handler must not be nil")
	}
	if err := Check(h.table, reserved...); err != nil {
		return nil, err
	}
	return &ConsoleModule{handler: h}, nil
}

// Check reports every problem that would stop table from being mounted.
func Check(table *route.Table, reserved ...string) error {
	if table == nil {
		return errors.New("console: route table is nil")
	}

	var errs []error
	if _, ok := table.Fallback(); !ok {
		errs = append(errs, errors.New("console: route table has no fallback"))
	}
	for _, r := range table.Rules() {
		if !strings.HasPrefix(r.Path, "/") {
			errs = append(errs, fmt.Errorf("console: %s route %q must start with /", r.Source, r.Path))
			continue
		}
		for _, p := range reserved {
			if r.Path == strings.TrimSuffix(p, "/") || strings.HasPrefix(r.Path, strings.TrimSuffix(p, "/")+"/") {
				errs = append(errs, fmt.Errorf("console: %s route %q is under reserved prefix %q", r.Source, r.Path, p))
				break
			}
		}
	}
	for _, c := range table.Conflicts() {
		errs = append(errs, fmt.Errorf("console: %s route %q collides with %s route %q",
			c.Second.Source, c.Second.Path, c.First.Source, c.First.Path))
	}
	return errors.Join(errs...)
}

// RegisterRoutes registers GET /routes on api and one GET page per rule on
// pages. Patterns gin refuses are reported as an error.
func (m *ConsoleModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("console: mount /routes: %v", r)
		}
	}()
	api.GET("/routes", m.handler.Routes)
	return mountRules(pages, m.handler)
}

// mountRules registers every rule of h's table on pages, recovering gin's
// registration panics into an error naming the offending rule.
func mountRules(pages *gin.RouterGroup, h *ConsoleHandler) (err error) {
	var current string
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("console: mount %q: %v", current, r)
		}
	}()

	for _, rule := range h.table.Rules() {
		current = rule.Path
		paths, err := route.GinPaths(rule.Path)
		if err != nil {
			return fmt.Errorf("console: mount %q: %w", rule.Path, err)
		}
		view := h.View(rule)
		for _, p := range paths {
			pages.GET(p, view)
		}
	}
	return nil
}

// Mountable mounts table on a throwaway engine that also holds a catch-all
// under each reserved prefix, and reports the first rule gin refuses.
func Mountable(table *route.Table, reserved ...string) error {
	if table == nil {
		return errors.New("console: route table is nil")
	}
	engine := gin.New()
	for _, p := range reserved {
		engine.GET(strings.TrimSuffix(p, "/")+"/*rest", func(*gin.Context) {})
	}
	return mountRules(engine.Group("/"), NewConsoleHandler(table, "", nil))
}

// Fallback is the handler for console paths no rule matched.
func (m *ConsoleModule) Fallback() gin.HandlerFunc {
	return m.handler.Fallback
}
