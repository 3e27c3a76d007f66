// Package main provides the entry point for the knowledge engine server
//
// @title Knowledge Engine API
// @version 0.1.0
// @description Knowledge consistency engine - governed entity types with graph/vector dual writes
// @host localhost:3004
// @BasePath /
// @schemes http https
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/emergent-company/knowledge-engine/domain/changeset"
	"github.com/emergent-company/knowledge-engine/domain/entitytypes"
	"github.com/emergent-company/knowledge-engine/domain/fkregistry"
	"github.com/emergent-company/knowledge-engine/domain/health"
	"github.com/emergent-company/knowledge-engine/domain/knowledge"
	"github.com/emergent-company/knowledge-engine/internal/config"
	"github.com/emergent-company/knowledge-engine/internal/database"
	"github.com/emergent-company/knowledge-engine/internal/server"
	"github.com/emergent-company/knowledge-engine/internal/stores/graphpg"
	"github.com/emergent-company/knowledge-engine/internal/stores/vectormem"
	"github.com/emergent-company/knowledge-engine/pkg/embeddings"
	"github.com/emergent-company/knowledge-engine/pkg/logger"
)

func main() {
	// Load .env files if present (for local development)
	// Note: Load() won't overwrite existing vars, Overload() will
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		server.Module,

		// Storage adapters (graph side on Postgres, vector side embedded)
		graphpg.Module,
		vectormem.Module,

		// Embeddings module (provides embedding client)
		embeddings.Module,

		// Domain modules
		health.Module,
		entitytypes.Module,
		fkregistry.Module,
		knowledge.Module,
		changeset.Module,
	).Run()
}
