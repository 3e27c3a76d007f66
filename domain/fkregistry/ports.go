package fkregistry

import (
	"context"

	"github.com/google/uuid"
)

// GraphStore is the typed node CRUD port backing the graph side of a dual
// write. Implementations own their availability policy; the registry never
// retries graph operations.
type GraphStore interface {
	// CreateNode persists a new node. Failure propagates to the caller.
	CreateNode(ctx context.Context, entityType string, nodeID uuid.UUID, properties map[string]any, orgID *string) (*GraphNode, error)

	// UpdateNode merge-updates properties. A nil node with nil error means
	// the node does not exist.
	UpdateNode(ctx context.Context, nodeID uuid.UUID, properties map[string]any) (*GraphNode, error)

	// DeleteNode removes a node and reports whether it existed.
	DeleteNode(ctx context.Context, nodeID uuid.UUID) (bool, error)

	// MarkSyncStatus records the node's sync status on the graph side.
	// Fire-and-forget: callers may ignore the error.
	MarkSyncStatus(ctx context.Context, nodeID uuid.UUID, status SyncStatus) error
}

// VectorStore is the point upsert/delete port backing the vector side.
type VectorStore interface {
	// UpsertPoint writes a payload-carrying point. It must raise on failure;
	// there is no silent partial success.
	UpsertPoint(ctx context.Context, pointID uuid.UUID, vector []float32, payload map[string]any, fkID *uuid.UUID) (*VectorPoint, error)

	// DeletePoint removes a point. Deleting a missing point returns true:
	// vector deletion is idempotent.
	DeletePoint(ctx context.Context, pointID uuid.UUID) (bool, error)
}
