package vectormem

import (
	"go.uber.org/fx"

	"github.com/emergent-company/knowledge-engine/domain/fkregistry"
)

// Module binds the embedded chromem store as the application's vector side.
var Module = fx.Module("vectormem",
	fx.Provide(
		fx.Annotate(
			NewStore,
			fx.As(new(fkregistry.VectorStore)),
		),
	),
)
