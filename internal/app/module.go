package app

import "github.com/gin-gonic/gin"

// Module is a self-registering feature. API routes go on api (/api/v1),
// browser pages on pages (/). A returned error aborts startup.
type Module interface {
	RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) error
}
