package changeset

import (
	"time"

	"github.com/google/uuid"
)

// Operation is the kind of work a changeset entry requests.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Entry is one unit of work in a changeset. Update and delete entries must
// name an explicit target graph node.
type Entry struct {
	Operation       Operation      `json:"operation"`
	EntityType      string         `json:"entity_type,omitempty"`
	GraphNodeID     *uuid.UUID     `json:"graph_node_id,omitempty"`
	Properties      map[string]any `json:"properties,omitempty"`
	OrgID           *string        `json:"org_id,omitempty"`
	Visibility      *string        `json:"visibility,omitempty"`
	IdempotencyKey  *string        `json:"idempotency_key,omitempty"`
	SemanticContent *string        `json:"semantic_content,omitempty"`
	VectorPayload   map[string]any `json:"vector_payload,omitempty"`
}

// ChangeSet is an externally sourced batch of create/update/delete
// operations, typically produced by ERP/PIM connectors.
type ChangeSet struct {
	ID      string  `json:"id"`
	Source  *string `json:"source,omitempty"`
	Entries []Entry `json:"entries"`
}

// Audit is the per-batch outcome record. It is created once per batch and
// append-only: one outcome per entry, never a whole-batch rollback.
type Audit struct {
	ChangeSetID      string      `json:"changeset_id"`
	Source           *string     `json:"source,omitempty"`
	EntriesTotal     int         `json:"entries_total"`
	EntriesProcessed int         `json:"entries_processed"`
	EntriesFailed    int         `json:"entries_failed"`
	EntriesSkipped   int         `json:"entries_skipped"`
	Errors           []string    `json:"errors,omitempty"`
	CreatedNodeIDs   []uuid.UUID `json:"created_node_ids,omitempty"`
	StartedAt        time.Time   `json:"started_at"`
	CompletedAt      time.Time   `json:"completed_at"`
}
