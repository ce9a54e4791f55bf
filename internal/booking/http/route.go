package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, adminMiddleware gin.HandlerFunc) {
	spaces := g.Group("/spaces")
	spaces.Use(authMiddleware)
	{
		spaces.GET("/:id/slots", h.SpaceSlots)
		spaces.GET("/:id/durations", h.Durations)
	}

	slots := g.Group("/slots")
	slots.Use(authMiddleware)
	{
		slots.GET("", h.Slots)
	}

	group := g.Group("/bookings")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("", h.Create)
		group.DELETE("/:id", h.Delete)
	}

	// === Admin Routes ===
	maintenance := g.Group("/maintenance")
	maintenance.Use(authMiddleware, adminMiddleware)
	{
		maintenance.POST("/sweep", h.Sweep)
	}
}
