package knowledge

import (
	"time"

	"github.com/google/uuid"

	"github.com/emergent-company/knowledge-engine/domain/fkregistry"
)

// WriteRequest is the governed write entry point's request shape. HTTP
// handlers and batch importers both build this.
type WriteRequest struct {
	EntityType      string         `json:"entity_type"`
	Properties      map[string]any `json:"properties"`
	OrgID           *string        `json:"org_id,omitempty"`
	Visibility      *string        `json:"visibility,omitempty"`
	IdempotencyKey  *string        `json:"idempotency_key,omitempty"`
	Source          *string        `json:"source,omitempty"`
	SemanticContent *string        `json:"semantic_content,omitempty"`
	VectorPayload   map[string]any `json:"vector_payload,omitempty"`
}

// WriteReceipt is the immutable audit record of one governed write. Replays
// under the same idempotency identity return the original receipt verbatim.
type WriteReceipt struct {
	WriteID        uuid.UUID             `json:"write_id"`
	GraphNodeID    uuid.UUID             `json:"graph_node_id"`
	EntityType     string                `json:"entity_type"`
	OrgID          *string               `json:"org_id,omitempty"`
	Visibility     *string               `json:"visibility,omitempty"`
	IdempotencyKey *string               `json:"idempotency_key,omitempty"`
	Source         *string               `json:"source,omitempty"`
	UserID         *string               `json:"user_id,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
	SyncStatus     fkregistry.SyncStatus `json:"sync_status"`
	PropertiesHash string                `json:"properties_hash"`
}

// WriteResponse is returned to the protocol layer.
type WriteResponse struct {
	GraphNodeID uuid.UUID    `json:"graph_node_id"`
	Version     int          `json:"version"`
	Receipt     WriteReceipt `json:"write_receipt"`
}
