package changeset

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Module provides the batch changeset domain
var Module = fx.Module("changeset",
	fx.Provide(NewProcessor),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

// RegisterRoutes registers changeset routes
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.POST("/api/knowledge/changesets", h.Process)
}
