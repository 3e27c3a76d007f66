package knowledge

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers knowledge write routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/knowledge")

	g.POST("", h.Write)
	g.GET("/pending-sync", h.GetPendingSync)
	g.GET("/:nodeId/mapping", h.GetMapping)
	g.PATCH("/:nodeId", h.Update)
	g.DELETE("/:nodeId", h.Delete)
}
