package store

import "github.com/gin-gonic/gin"

// StoreModule implements the app.Module interface for the store admin API.
type StoreModule struct {
	handler *StoreHandler
	guard   []gin.HandlerFunc
}

// NewModule creates a new StoreModule. guard runs before every write.
// Panics if h is nil.
func NewModule(h *StoreHandler, guard ...gin.HandlerFunc) *StoreModule {
	if h == nil {
		panic("store.NewModule: handler must not be nil")
	}
	return &StoreModule{handler: h, guard: guard}
}

// RegisterRoutes registers /admin/:type on the API group. The console pages
// for stores are the built-in partials served by the console module.
func (m *StoreModule) RegisterRoutes(api *gin.RouterGroup, _ *gin.RouterGroup) error {
	g := api.Group("/admin/:type")
	g.GET("", m.handler.List)
	g.HEAD("/:name", m.handler.Exists)
	g.GET("/:name", m.handler.Get)

	w := g.Group("", m.guard...)
	w.POST("", m.handler.Create)
	w.PUT("/:name", m.handler.Store)
	w.DELETE("/:name", m.handler.Delete)
	return nil
}
