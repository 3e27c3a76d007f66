package vectormem

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/emergent-company/knowledge-engine/domain/fkregistry"
	"github.com/emergent-company/knowledge-engine/internal/config"
	"github.com/emergent-company/knowledge-engine/pkg/logger"
)

// Store is an embedded vector store backed by chromem-go. Points live in a
// single named collection; upserts with the same point ID overwrite in
// place, so a graph node never accumulates duplicate points.
type Store struct {
	collection *chromem.Collection
	log        *slog.Logger
}

// NewStore opens (or creates) the configured collection. A persist path
// makes the store durable across restarts; without one it is memory-only.
func NewStore(cfg *config.Config, log *slog.Logger) (*Store, error) {
	var db *chromem.DB
	var err error

	if cfg.Vector.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.Vector.PersistPath, false)
		if err != nil {
			return nil, fmt.Errorf("open persistent vector db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	// Embeddings always arrive precomputed, so no embedding func is wired.
	collection, err := db.GetOrCreateCollection(cfg.Vector.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("open vector collection %q: %w", cfg.Vector.Collection, err)
	}

	return &Store{
		collection: collection,
		log:        log.With(logger.Scope("vectormem")),
	}, nil
}

var _ fkregistry.VectorStore = (*Store)(nil)

// UpsertPoint writes a point document. Same-ID writes replace the previous
// document.
func (s *Store) UpsertPoint(ctx context.Context, pointID uuid.UUID, vector []float32, payload map[string]any, fkID *uuid.UUID) (*fkregistry.VectorPoint, error) {
	metadata := flattenPayload(payload)
	if fkID != nil {
		metadata["fk_id"] = fkID.String()
	}

	content, _ := payload["text"].(string)

	doc := chromem.Document{
		ID:        pointID.String(),
		Content:   content,
		Embedding: vector,
		Metadata:  metadata,
	}

	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("upsert point: %w", err)
	}

	return &fkregistry.VectorPoint{
		ID:      pointID,
		Vector:  vector,
		Payload: payload,
		FKID:    fkID,
	}, nil
}

// DeletePoint removes a point. Deleting an absent point is a no-op success.
func (s *Store) DeletePoint(ctx context.Context, pointID uuid.UUID) (bool, error) {
	if err := s.collection.Delete(ctx, nil, nil, pointID.String()); err != nil {
		return false, fmt.Errorf("delete point: %w", err)
	}
	return true, nil
}

// Count reports the number of stored points.
func (s *Store) Count() int {
	return s.collection.Count()
}

// flattenPayload converts an arbitrary payload into chromem's string-valued
// metadata. Non-string values are JSON-encoded.
func flattenPayload(payload map[string]any) map[string]string {
	metadata := make(map[string]string, len(payload))
	for k, v := range payload {
		if str, ok := v.(string); ok {
			metadata[k] = str
			continue
		}
		if b, err := json.Marshal(v); err == nil {
			metadata[k] = string(b)
		}
	}
	return metadata
}
