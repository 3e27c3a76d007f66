package fkregistry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emergent-company/knowledge-engine/pkg/apperror"
	"github.com/emergent-company/knowledge-engine/pkg/logger"
)

// DefaultMaxVectorAttempts bounds the sequential retry loop for vector
// upserts. Production ports should add jittered backoff on top; the attempt
// bound, not the delay, carries the correctness contract.
const DefaultMaxVectorAttempts = 3

// Registry orchestrates graph-first dual writes and owns the FK mapping
// table. The graph write succeeds or the call fails; the vector write is
// best-effort with bounded retry and an observable pending marker.
//
// Concurrent calls on the same node ID are not serialized here:
// single-writer-per-entity is the caller's responsibility. The mapping table
// itself is mutex-guarded, so a race degrades to last-write-wins on the
// mapping and never to a torn record.
type Registry struct {
	graph       GraphStore
	vector      VectorStore
	log         *slog.Logger
	maxAttempts int

	mu       sync.RWMutex
	mappings map[uuid.UUID]*FKMapping
}

// NewRegistry creates a Registry with the given store ports.
// maxVectorAttempts <= 0 falls back to DefaultMaxVectorAttempts.
func NewRegistry(graph GraphStore, vector VectorStore, log *slog.Logger, maxVectorAttempts int) *Registry {
	if maxVectorAttempts <= 0 {
		maxVectorAttempts = DefaultMaxVectorAttempts
	}
	return &Registry{
		graph:       graph,
		vector:      vector,
		log:         log.With(logger.Scope("fkregistry")),
		maxAttempts: maxVectorAttempts,
		mappings:    make(map[uuid.UUID]*FKMapping),
	}
}

// WriteWithFK creates a graph node and, when an embedding is supplied,
// its vector counterpart. The graph create is unconditional and its failure
// propagates uncaught. Vector exhaustion downgrades to pending_vector_sync;
// the call still succeeds with Vector absent.
func (r *Registry) WriteWithFK(ctx context.Context, p WriteParams) (*WriteResult, error) {
	node, err := r.graph.CreateNode(ctx, p.EntityType, p.NodeID, p.Properties, p.OrgID)
	if err != nil {
		return nil, err
	}

	mapping := FKMapping{
		GraphNodeID: p.NodeID,
		VectorIDs:   []uuid.UUID{},
		SyncStatus:  SyncStatusSynced,
		Version:     1,
	}

	var point *VectorPoint
	if len(p.Embedding) > 0 {
		pointID := uuid.New()
		point = r.upsertWithRetry(ctx, pointID, p.NodeID, p.Embedding, r.buildPayload(p))
		if point != nil {
			mapping.VectorIDs = []uuid.UUID{pointID}
		} else {
			mapping.SyncStatus = SyncStatusPendingVector
		}
	}

	r.finishSync(ctx, node, &mapping)
	r.putMapping(&mapping)

	return &WriteResult{Node: node, Vector: point, Mapping: mapping.clone()}, nil
}

// UpdateWithFK merge-updates graph properties and refreshes the vector
// counterpart. The existing point ID is reused so a node never accumulates
// duplicate points; on vector failure the previous vector ID list is
// preserved for later reconciliation. Version increments by exactly one per
// successful call.
func (r *Registry) UpdateWithFK(ctx context.Context, nodeID uuid.UUID, properties map[string]any, semanticContent *string, embedding []float32, vectorPayload map[string]any) (*WriteResult, error) {
	node, err := r.graph.UpdateNode(ctx, nodeID, properties)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, apperror.NewNotFound("graph node", nodeID.String())
	}

	prev, ok := r.GetMapping(nodeID)
	if !ok {
		prev = FKMapping{GraphNodeID: nodeID, VectorIDs: []uuid.UUID{}, SyncStatus: SyncStatusSynced}
	}

	mapping := FKMapping{
		GraphNodeID: nodeID,
		VectorIDs:   prev.VectorIDs,
		SyncStatus:  prev.SyncStatus,
		Version:     prev.Version + 1,
		LastSyncAt:  prev.LastSyncAt,
	}

	var point *VectorPoint
	if len(embedding) > 0 {
		pointID := uuid.New()
		if len(prev.VectorIDs) > 0 {
			pointID = prev.VectorIDs[0]
		}

		payload := r.buildPayload(WriteParams{
			EntityType:      node.EntityType,
			OrgID:           node.OrgID,
			SemanticContent: semanticContent,
			VectorPayload:   vectorPayload,
		})

		point = r.upsertWithRetry(ctx, pointID, nodeID, embedding, payload)
		if point != nil {
			mapping.VectorIDs = []uuid.UUID{pointID}
			mapping.SyncStatus = SyncStatusSynced
		} else {
			mapping.SyncStatus = SyncStatusPendingVector
		}
	}

	r.finishSync(ctx, node, &mapping)
	r.putMapping(&mapping)

	return &WriteResult{Node: node, Vector: point, Mapping: mapping.clone()}, nil
}

// DeleteWithFK removes every mapped vector point best-effort, then deletes
// the graph node. The graph deletion result is the authoritative existence
// signal; vector cleanup never decides it.
func (r *Registry) DeleteWithFK(ctx context.Context, nodeID uuid.UUID) (bool, error) {
	if mapping, ok := r.GetMapping(nodeID); ok {
		for _, pointID := range mapping.VectorIDs {
			if _, err := r.vector.DeletePoint(ctx, pointID); err != nil {
				// Best effort: a failed vector delete leaves an orphan point
				// for the reconciliation sweeper, it never blocks the delete.
				r.log.Warn("vector point delete failed",
					slog.String("node_id", nodeID.String()),
					slog.String("point_id", pointID.String()),
					logger.Error(err),
				)
			}
		}
	}

	existed, err := r.graph.DeleteNode(ctx, nodeID)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	delete(r.mappings, nodeID)
	r.mu.Unlock()

	return existed, nil
}

// GetMapping returns a copy of the FK mapping for nodeID.
func (r *Registry) GetMapping(nodeID uuid.UUID) (FKMapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mappings[nodeID]
	if !ok {
		return FKMapping{}, false
	}
	return m.clone(), true
}

// GetPendingSync lists every mapping whose vector side is not known to be
// consistent. An external reconciliation sweeper consumes this; the engine
// itself never runs one.
func (r *Registry) GetPendingSync() []FKMapping {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []FKMapping
	for _, m := range r.mappings {
		if m.SyncStatus != SyncStatusSynced {
			pending = append(pending, m.clone())
		}
	}
	return pending
}

// upsertWithRetry attempts the vector upsert up to maxAttempts times.
// It returns nil after exhaustion; the caller downgrades to a pending marker.
func (r *Registry) upsertWithRetry(ctx context.Context, pointID, nodeID uuid.UUID, vector []float32, payload map[string]any) *VectorPoint {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		point, err := r.vector.UpsertPoint(ctx, pointID, vector, payload, &nodeID)
		if err == nil {
			return point
		}
		lastErr = err
		r.log.Warn("vector upsert failed",
			slog.String("node_id", nodeID.String()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", r.maxAttempts),
			logger.Error(err),
		)
	}

	r.log.Error("vector upsert exhausted retries, marking pending",
		slog.String("node_id", nodeID.String()),
		logger.Error(lastErr),
	)
	return nil
}

// buildPayload assembles the vector point payload: caller extras first, then
// the fields the engine always stamps.
func (r *Registry) buildPayload(p WriteParams) map[string]any {
	payload := make(map[string]any, len(p.VectorPayload)+3)
	for k, v := range p.VectorPayload {
		payload[k] = v
	}
	payload["entity_type"] = p.EntityType
	text := ""
	if p.SemanticContent != nil {
		text = *p.SemanticContent
	}
	payload["text"] = text
	if p.OrgID != nil {
		payload["org_id"] = *p.OrgID
	}
	return payload
}

// finishSync stamps the outcome on the node and mapping. A pending outcome
// is additionally signaled to the graph store best-effort.
func (r *Registry) finishSync(ctx context.Context, node *GraphNode, mapping *FKMapping) {
	node.SyncStatus = mapping.SyncStatus

	if mapping.SyncStatus == SyncStatusSynced {
		now := time.Now().UTC()
		mapping.LastSyncAt = &now
		return
	}

	if err := r.graph.MarkSyncStatus(ctx, node.ID, mapping.SyncStatus); err != nil {
		r.log.Warn("mark sync status failed",
			slog.String("node_id", node.ID.String()),
			slog.String("status", string(mapping.SyncStatus)),
			logger.Error(err),
		)
	}
}

// putMapping stores a copy so callers can't mutate registry state through
// the returned value.
func (r *Registry) putMapping(m *FKMapping) {
	cp := m.clone()
	r.mu.Lock()
	r.mappings[m.GraphNodeID] = &cp
	r.mu.Unlock()
}
