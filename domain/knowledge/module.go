package knowledge

import (
	"go.uber.org/fx"
)

// Module provides the knowledge write domain
var Module = fx.Module("knowledge",
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
