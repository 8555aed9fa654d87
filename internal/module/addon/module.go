package addon

import "github.com/gin-gonic/gin"

// AddonModule implements the app.Module interface for the addon registry.
type AddonModule struct {
	handler *AddonHandler
	guard   []gin.HandlerFunc
}

// NewModule creates a new AddonModule. guard runs before every registry
// write; reads are never guarded. Panics if h is nil.
func NewModule(h *AddonHandler, guard ...gin.HandlerFunc) *AddonModule {
	if h == nil {
		panic("addon.NewModule: handler must not be nil")
	}
	return &AddonModule{handler: h, guard: guard}
}

// RegisterRoutes registers the addon registry API. The registry has no pages.
func (m *AddonModule) RegisterRoutes(api *gin.RouterGroup, _ *gin.RouterGroup) error {
	g := api.Group("/addons")
	g.GET("/manifest", m.handler.Manifest)
	g.GET("", m.handler.List)
	g.GET("/:id", m.handler.Get)

	w := g.Group("", m.guard...)
	w.POST("", m.handler.Create)
	w.PUT("/:id", m.handler.Update)
	w.DELETE("/:id", m.handler.Delete)
	w.PUT("/:id/position", m.handler.Move)
	return nil
}
