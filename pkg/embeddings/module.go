// Package embeddings provides embedding generation functionality.
package embeddings

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/emergent-company/knowledge-engine/internal/config"
)

// NewNoopService creates a service with a noop client (for testing)
func NewNoopService(log *slog.Logger) *Service {
	return &Service{
		client:  NewNoopClient(),
		log:     log,
		enabled: false,
	}
}

// Module provides the embeddings fx.Module
var Module = fx.Module("embeddings",
	fx.Provide(NewService),
)

// Service provides embedding generation with automatic client selection
type Service struct {
	client  Client
	log     *slog.Logger
	enabled bool
}

// NewService creates a new embeddings service
func NewService(cfg *config.Config, log *slog.Logger) *Service {
	embCfg := cfg.Embeddings

	switch embCfg.Provider {
	case "local":
		log.Info("initializing local embeddings client",
			slog.Int("dimensions", embCfg.Dimensions),
		)
		return &Service{
			client:  NewLocalClient(embCfg.Dimensions),
			log:     log,
			enabled: true,
		}
	case "", "none":
		log.Info("embeddings service disabled - no provider configured")
		return &Service{
			client:  NewNoopClient(),
			log:     log,
			enabled: false,
		}
	default:
		log.Warn("unknown embeddings provider, falling back to noop",
			slog.String("provider", embCfg.Provider),
		)
		return &Service{
			client:  NewNoopClient(),
			log:     log,
			enabled: false,
		}
	}
}

// IsEnabled returns true if embeddings are available
func (s *Service) IsEnabled() bool {
	return s.enabled
}

// EmbedQuery generates an embedding for a single query
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return s.client.EmbedQuery(ctx, query)
}

// EmbedDocuments generates embeddings for multiple documents
func (s *Service) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	return s.client.EmbedDocuments(ctx, documents)
}
