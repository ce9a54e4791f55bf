package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers study space routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/spaces")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)    // List spaces
		group.GET("/:id", h.Get) // Get space details
	}
}
