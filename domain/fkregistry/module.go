package fkregistry

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/emergent-company/knowledge-engine/internal/config"
)

// Module wires the consistency registry against whatever GraphStore and
// VectorStore implementations the application provides.
var Module = fx.Module("fkregistry",
	fx.Provide(func(graph GraphStore, vector VectorStore, cfg *config.Config, log *slog.Logger) *Registry {
		return NewRegistry(graph, vector, log, cfg.Sync.MaxVectorAttempts)
	}),
)
