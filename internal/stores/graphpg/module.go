package graphpg

import (
	"go.uber.org/fx"

	"github.com/emergent-company/knowledge-engine/domain/fkregistry"
)

// Module binds the Postgres-backed store as the application's graph side.
var Module = fx.Module("graphpg",
	fx.Provide(
		fx.Annotate(
			NewStore,
			fx.As(new(fkregistry.GraphStore)),
		),
	),
)
