package v1

import (
	"github.com/gin-gonic/gin"
)

// DocumentRouteHandler defines the routes every document kind exposes.
type DocumentRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Transition(c *gin.Context)
}

// RegisterDocumentRoutes registers the standard routes of a document kind.
//
// Usage:
//
//	RegisterDocumentRoutes(api.Group("/receipts"), movements.ForKind(movement.KindReceipt))
func RegisterDocumentRoutes(group *gin.RouterGroup, handler DocumentRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.POST("/:id/status", handler.Transition)
}
