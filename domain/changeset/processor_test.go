package changeset

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/knowledge-engine/domain/entitytypes"
	"github.com/emergent-company/knowledge-engine/domain/fkregistry"
	"github.com/emergent-company/knowledge-engine/domain/knowledge"
	"github.com/emergent-company/knowledge-engine/internal/testutil"
	"github.com/emergent-company/knowledge-engine/pkg/embeddings"
)

type fixture struct {
	proc   *Processor
	fk     *fkregistry.Registry
	graph  *testutil.MemGraphStore
	vector *testutil.MemVectorStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	types := entitytypes.NewRegistry(log, entitytypes.Definition{
		ID:    "ProductKnowledge",
		Label: "Product Knowledge",
		Schema: map[string]entitytypes.PropertyType{
			"content": entitytypes.PropertyString,
		},
	})

	graph := testutil.NewMemGraphStore()
	vector := testutil.NewMemVectorStore()
	fk := fkregistry.NewRegistry(graph, vector, log, 3)
	writes := knowledge.NewService(types, fk, log)

	return &fixture{
		proc:   NewProcessor(writes, fk, embeddings.NewNoopService(log), log),
		fk:     fk,
		graph:  graph,
		vector: vector,
	}
}

func strptr(s string) *string { return &s }

func createEntry(content, key string) Entry {
	return Entry{
		Operation:      OpCreate,
		EntityType:     "ProductKnowledge",
		Properties:     map[string]any{"content": content},
		IdempotencyKey: strptr(key),
	}
}

func TestProcess_AllCreates(t *testing.T) {
	f := newFixture(t)

	cs := &ChangeSet{
		ID:     "cs-1",
		Source: strptr("erp"),
		Entries: []Entry{
			createEntry("widget a", "k1"),
			createEntry("widget b", "k2"),
			createEntry("widget c", "k3"),
		},
	}

	audit := f.proc.Process(context.Background(), cs)

	assert.Equal(t, 3, audit.EntriesTotal)
	assert.Equal(t, 3, audit.EntriesProcessed)
	assert.Equal(t, 0, audit.EntriesFailed)
	assert.Equal(t, 0, audit.EntriesSkipped)
	assert.Len(t, audit.CreatedNodeIDs, 3)
	assert.Equal(t, 3, f.graph.Len())
	assert.False(t, audit.CompletedAt.Before(audit.StartedAt))
}

func TestProcess_DuplicateKeySkipped(t *testing.T) {
	f := newFixture(t)

	// Entry #3 reuses entry #1's idempotency key with a different payload
	cs := &ChangeSet{
		ID: "cs-2",
		Entries: []Entry{
			createEntry("widget a", "k1"),
			createEntry("widget b", "k2"),
			createEntry("widget a CHANGED", "k1"),
			createEntry("widget d", "k4"),
			createEntry("widget e", "k5"),
		},
	}

	audit := f.proc.Process(context.Background(), cs)

	assert.Equal(t, 4, audit.EntriesProcessed)
	assert.Equal(t, 1, audit.EntriesSkipped)
	assert.Equal(t, 0, audit.EntriesFailed)
	assert.Equal(t, 4, f.graph.Len())
}

func TestProcess_MalformedEntriesFailWithoutAbort(t *testing.T) {
	f := newFixture(t)

	cs := &ChangeSet{
		ID: "cs-3",
		Entries: []Entry{
			createEntry("good one", "k1"),
			{Operation: OpCreate, EntityType: "ProductKnowledge", Properties: map[string]any{"title": "missing content"}},
			{Operation: OpCreate, EntityType: "ProductKnowledge", Properties: map[string]any{"name": "also missing"}},
			createEntry("good two", "k2"),
		},
	}

	audit := f.proc.Process(context.Background(), cs)

	assert.Equal(t, 4, audit.EntriesTotal)
	assert.Equal(t, 2, audit.EntriesFailed)
	assert.Equal(t, 2, audit.EntriesProcessed, "failures never stop later entries")
	require.Len(t, audit.Errors, 2)
	assert.True(t, strings.Contains(audit.Errors[0], "entry 1"))
}

func TestProcess_UpdateRequiresTarget(t *testing.T) {
	f := newFixture(t)

	cs := &ChangeSet{
		ID: "cs-4",
		Entries: []Entry{
			{Operation: OpUpdate, Properties: map[string]any{"content": "x"}},
		},
	}

	audit := f.proc.Process(context.Background(), cs)

	assert.Equal(t, 1, audit.EntriesFailed, "missing target is a hard failure, not a skip")
	assert.Equal(t, 0, audit.EntriesSkipped)
	require.Len(t, audit.Errors, 1)
	assert.Contains(t, audit.Errors[0], "graph_node_id")
}

func TestProcess_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)

	res, err := f.fk.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType: "ProductKnowledge",
		NodeID:     uuid.New(),
		Properties: map[string]any{"content": "v1"},
	})
	require.NoError(t, err)
	nodeID := res.Node.ID

	toDelete, err := f.fk.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType: "ProductKnowledge",
		NodeID:     uuid.New(),
		Properties: map[string]any{"content": "doomed"},
	})
	require.NoError(t, err)

	cs := &ChangeSet{
		ID: "cs-5",
		Entries: []Entry{
			{Operation: OpUpdate, GraphNodeID: &nodeID, Properties: map[string]any{"content": "v2"}},
			{Operation: OpDelete, GraphNodeID: &toDelete.Node.ID},
		},
	}

	audit := f.proc.Process(context.Background(), cs)

	assert.Equal(t, 2, audit.EntriesProcessed)
	assert.Equal(t, 0, audit.EntriesFailed)

	node, ok := f.graph.GetNode(nodeID)
	require.True(t, ok)
	assert.Equal(t, "v2", node.Properties["content"])

	_, ok = f.graph.GetNode(toDelete.Node.ID)
	assert.False(t, ok)
	_, ok = f.fk.GetMapping(toDelete.Node.ID)
	assert.False(t, ok)
}

func TestProcess_DeleteMissingNodeSkipped(t *testing.T) {
	f := newFixture(t)
	missing := uuid.New()

	cs := &ChangeSet{
		ID:      "cs-6",
		Entries: []Entry{{Operation: OpDelete, GraphNodeID: &missing}},
	}

	audit := f.proc.Process(context.Background(), cs)

	assert.Equal(t, 1, audit.EntriesSkipped)
	assert.Equal(t, 0, audit.EntriesFailed)
}

func TestProcess_UpdateUnknownNodeFails(t *testing.T) {
	f := newFixture(t)
	missing := uuid.New()

	cs := &ChangeSet{
		ID: "cs-7",
		Entries: []Entry{
			{Operation: OpUpdate, GraphNodeID: &missing, Properties: map[string]any{"content": "x"}},
		},
	}

	audit := f.proc.Process(context.Background(), cs)

	assert.Equal(t, 1, audit.EntriesFailed)
}

func TestProcess_OperationGrouping(t *testing.T) {
	f := newFixture(t)

	// A delete listed before the create of the same batch: grouping runs the
	// create first, so the delete targets an existing node.
	res, err := f.fk.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType: "ProductKnowledge",
		NodeID:     uuid.New(),
		Properties: map[string]any{"content": "pre-existing"},
	})
	require.NoError(t, err)

	cs := &ChangeSet{
		ID: "cs-8",
		Entries: []Entry{
			{Operation: OpDelete, GraphNodeID: &res.Node.ID},
			createEntry("new widget", "k1"),
		},
	}

	audit := f.proc.Process(context.Background(), cs)

	assert.Equal(t, 2, audit.EntriesProcessed)
	assert.Equal(t, 1, f.graph.Len(), "create survives, pre-existing node deleted")
}

func TestProcess_UnknownOperation(t *testing.T) {
	f := newFixture(t)

	cs := &ChangeSet{
		ID:      "cs-9",
		Entries: []Entry{{Operation: "upsert"}},
	}

	audit := f.proc.Process(context.Background(), cs)

	assert.Equal(t, 1, audit.EntriesFailed)
	require.Len(t, audit.Errors, 1)
	assert.Contains(t, audit.Errors[0], "unknown operation")
}

func TestProcess_ErrorListBounded(t *testing.T) {
	f := newFixture(t)

	entries := make([]Entry, 0, maxAuditErrors+10)
	for i := 0; i < maxAuditErrors+10; i++ {
		entries = append(entries, Entry{
			Operation:  OpCreate,
			EntityType: "ProductKnowledge",
			Properties: map[string]any{"wrong": true},
		})
	}

	audit := f.proc.Process(context.Background(), &ChangeSet{ID: "cs-10", Entries: entries})

	assert.Equal(t, maxAuditErrors+10, audit.EntriesFailed)
	assert.Len(t, audit.Errors, maxAuditErrors)
}
