package fkregistry

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus describes whether a graph node's vector-side counterpart is
// known-consistent with the graph-side record.
type SyncStatus string

const (
	SyncStatusSynced SyncStatus = "synced"

	// SyncStatusPendingVector marks nodes whose vector upsert exhausted its
	// retry budget; an external reconciliation sweeper picks them up via
	// GetPendingSync.
	SyncStatusPendingVector SyncStatus = "pending_vector_sync"

	// SyncStatusPendingGraph is reserved. The graph-first protocol has no
	// producer for it; it exists so reconciliation tooling can represent a
	// reverse-ordered write if one is ever introduced.
	SyncStatusPendingGraph SyncStatus = "pending_graph_sync"
)

// GraphNode is the graph store's view of a knowledge entity.
type GraphNode struct {
	ID         uuid.UUID      `json:"id"`
	EntityType string         `json:"entity_type"`
	Properties map[string]any `json:"properties"`
	OrgID      *string        `json:"org_id,omitempty"`
	SyncStatus SyncStatus     `json:"sync_status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// VectorPoint is the vector store's view of a knowledge entity's embedding.
// The FKID back-references the owning graph node.
type VectorPoint struct {
	ID      uuid.UUID      `json:"id"`
	Vector  []float32      `json:"-"`
	Payload map[string]any `json:"payload"`
	FKID    *uuid.UUID     `json:"fk_id,omitempty"`
}

// FKMapping is the authoritative reconciliation index entry for one graph
// node. It is held by the registry itself and is not derivable by scanning
// the two stores.
type FKMapping struct {
	GraphNodeID uuid.UUID   `json:"graph_node_id"`
	VectorIDs   []uuid.UUID `json:"vector_ids"`
	SyncStatus  SyncStatus  `json:"sync_status"`
	Version     int         `json:"version"`
	LastSyncAt  *time.Time  `json:"last_sync_at,omitempty"`
}

// clone returns a copy safe to hand to callers while the registry keeps
// mutating its own entry.
func (m *FKMapping) clone() FKMapping {
	out := *m
	out.VectorIDs = append([]uuid.UUID(nil), m.VectorIDs...)
	return out
}

// WriteParams carries everything needed for a graph-first dual write.
type WriteParams struct {
	EntityType      string
	NodeID          uuid.UUID
	Properties      map[string]any
	OrgID           *string
	SemanticContent *string
	Embedding       []float32
	VectorPayload   map[string]any
}

// WriteResult reports the outcome of a dual write. Vector is nil when no
// embedding was supplied or when the vector write was downgraded to a
// pending marker.
type WriteResult struct {
	Node    *GraphNode
	Vector  *VectorPoint
	Mapping FKMapping
}
