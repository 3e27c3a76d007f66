package fkregistry_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/knowledge-engine/domain/fkregistry"
	"github.com/emergent-company/knowledge-engine/internal/testutil"
	"github.com/emergent-company/knowledge-engine/pkg/apperror"
)

func newTestRegistry(t *testing.T) (*fkregistry.Registry, *testutil.MemGraphStore, *testutil.MemVectorStore) {
	t.Helper()
	graph := testutil.NewMemGraphStore()
	vector := testutil.NewMemVectorStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return fkregistry.NewRegistry(graph, vector, log, 3), graph, vector
}

func strptr(s string) *string { return &s }

func TestWriteWithFK_DualWriteSuccess(t *testing.T) {
	reg, graph, vector := newTestRegistry(t)
	nodeID := uuid.New()

	res, err := reg.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType:      "BrandKnowledge",
		NodeID:          nodeID,
		Properties:      map[string]any{"content": "Warm tones for fall"},
		OrgID:           strptr("org-1"),
		SemanticContent: strptr("Warm tones for fall"),
		Embedding:       []float32{0.1, 0.2, 0.3},
		VectorPayload:   map[string]any{"season": "fall"},
	})
	require.NoError(t, err)

	assert.Equal(t, fkregistry.SyncStatusSynced, res.Mapping.SyncStatus)
	assert.Equal(t, 1, res.Mapping.Version)
	require.NotNil(t, res.Mapping.LastSyncAt)
	require.NotNil(t, res.Vector)

	// Exactly one point, FK back-reference equals the node id
	assert.Equal(t, 1, vector.Len())
	require.NotNil(t, res.Vector.FKID)
	assert.Equal(t, nodeID, *res.Vector.FKID)

	// Payload carries entity type, semantic text, extras and org scope
	assert.Equal(t, "BrandKnowledge", res.Vector.Payload["entity_type"])
	assert.Equal(t, "Warm tones for fall", res.Vector.Payload["text"])
	assert.Equal(t, "fall", res.Vector.Payload["season"])
	assert.Equal(t, "org-1", res.Vector.Payload["org_id"])

	node, ok := graph.GetNode(nodeID)
	require.True(t, ok)
	assert.Equal(t, "BrandKnowledge", node.EntityType)
}

func TestWriteWithFK_NoEmbedding(t *testing.T) {
	reg, _, vector := newTestRegistry(t)
	nodeID := uuid.New()

	res, err := reg.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType: "BrandKnowledge",
		NodeID:     nodeID,
		Properties: map[string]any{"content": "no semantics"},
	})
	require.NoError(t, err)

	assert.Nil(t, res.Vector)
	assert.Equal(t, fkregistry.SyncStatusSynced, res.Mapping.SyncStatus)
	assert.Empty(t, res.Mapping.VectorIDs)
	assert.Equal(t, 0, vector.Len())
}

func TestWriteWithFK_GraphFailurePropagates(t *testing.T) {
	reg, graph, vector := newTestRegistry(t)
	graph.CreateErr = errors.New("graph store down")

	_, err := reg.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType: "BrandKnowledge",
		NodeID:     uuid.New(),
		Properties: map[string]any{"content": "x"},
		Embedding:  []float32{0.1},
	})
	require.Error(t, err)
	assert.Equal(t, 0, vector.Upserts, "vector must not be touched when the graph write fails")

	_, ok := reg.GetMapping(uuid.New())
	assert.False(t, ok)
}

func TestWriteWithFK_VectorExhaustionMarksPending(t *testing.T) {
	reg, graph, vector := newTestRegistry(t)
	vector.FailAlways = true
	nodeID := uuid.New()

	res, err := reg.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType:      "BrandKnowledge",
		NodeID:          nodeID,
		Properties:      map[string]any{"content": "x"},
		SemanticContent: strptr("x"),
		Embedding:       []float32{0.1},
	})
	require.NoError(t, err, "vector exhaustion must not fail the call")

	assert.Equal(t, 3, vector.Upserts, "three sequential attempts")
	assert.Nil(t, res.Vector)
	assert.Equal(t, fkregistry.SyncStatusPendingVector, res.Mapping.SyncStatus)
	assert.Nil(t, res.Mapping.LastSyncAt)

	// Graph node still readable, pending status signaled to the graph store
	node, ok := graph.GetNode(nodeID)
	require.True(t, ok)
	assert.Equal(t, fkregistry.SyncStatusPendingVector, node.SyncStatus)
	assert.Equal(t, fkregistry.SyncStatusPendingVector, graph.MarkedSync[nodeID])

	pending := reg.GetPendingSync()
	require.Len(t, pending, 1)
	assert.Equal(t, nodeID, pending[0].GraphNodeID)
}

func TestWriteWithFK_TransientVectorFailureRecovers(t *testing.T) {
	reg, _, vector := newTestRegistry(t)
	vector.FailNext = 2 // third attempt succeeds
	nodeID := uuid.New()

	res, err := reg.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType: "BrandKnowledge",
		NodeID:     nodeID,
		Properties: map[string]any{"content": "x"},
		Embedding:  []float32{0.1},
	})
	require.NoError(t, err)

	assert.Equal(t, fkregistry.SyncStatusSynced, res.Mapping.SyncStatus)
	require.NotNil(t, res.Vector)
	assert.Equal(t, 3, vector.Upserts)
	assert.Empty(t, reg.GetPendingSync())
}

func TestUpdateWithFK_ReusesPointAndIncrementsVersion(t *testing.T) {
	reg, _, vector := newTestRegistry(t)
	nodeID := uuid.New()

	res, err := reg.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType:      "BrandKnowledge",
		NodeID:          nodeID,
		Properties:      map[string]any{"content": "v1"},
		SemanticContent: strptr("v1"),
		Embedding:       []float32{0.1},
	})
	require.NoError(t, err)
	originalPointID := res.Vector.ID

	for i, content := range []string{"v2", "v3"} {
		updated, err := reg.UpdateWithFK(context.Background(), nodeID,
			map[string]any{"content": content}, strptr(content), []float32{0.2}, nil)
		require.NoError(t, err)

		assert.Equal(t, i+2, updated.Mapping.Version)
		require.NotNil(t, updated.Vector)
		assert.Equal(t, originalPointID, updated.Vector.ID, "point id must be reused, never duplicated")
		assert.Equal(t, content, updated.Vector.Payload["text"])
	}

	assert.Equal(t, 1, vector.Len(), "exactly one point per node")
}

func TestUpdateWithFK_AllocatesPointWhenNoneExists(t *testing.T) {
	reg, _, vector := newTestRegistry(t)
	nodeID := uuid.New()

	_, err := reg.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType: "BrandKnowledge",
		NodeID:     nodeID,
		Properties: map[string]any{"content": "v1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, vector.Len())

	res, err := reg.UpdateWithFK(context.Background(), nodeID,
		map[string]any{"content": "v2"}, strptr("v2"), []float32{0.3}, nil)
	require.NoError(t, err)

	require.NotNil(t, res.Vector)
	assert.Equal(t, 1, vector.Len())
	assert.Equal(t, []uuid.UUID{res.Vector.ID}, res.Mapping.VectorIDs)
}

func TestUpdateWithFK_NotFound(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	_, err := reg.UpdateWithFK(context.Background(), uuid.New(),
		map[string]any{"content": "x"}, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestUpdateWithFK_VectorFailurePreservesPreviousIDs(t *testing.T) {
	reg, _, vector := newTestRegistry(t)
	nodeID := uuid.New()

	res, err := reg.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType: "BrandKnowledge",
		NodeID:     nodeID,
		Properties: map[string]any{"content": "v1"},
		Embedding:  []float32{0.1},
	})
	require.NoError(t, err)
	pointID := res.Vector.ID

	vector.FailAlways = true
	updated, err := reg.UpdateWithFK(context.Background(), nodeID,
		map[string]any{"content": "v2"}, strptr("v2"), []float32{0.2}, nil)
	require.NoError(t, err)

	assert.Equal(t, fkregistry.SyncStatusPendingVector, updated.Mapping.SyncStatus)
	assert.Equal(t, 2, updated.Mapping.Version)
	assert.Equal(t, []uuid.UUID{pointID}, updated.Mapping.VectorIDs,
		"previous vector ids are preserved for reconciliation")
}

func TestDeleteWithFK_Cascade(t *testing.T) {
	reg, graph, vector := newTestRegistry(t)
	nodeID := uuid.New()

	_, err := reg.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType: "BrandKnowledge",
		NodeID:     nodeID,
		Properties: map[string]any{"content": "x"},
		Embedding:  []float32{0.1},
	})
	require.NoError(t, err)

	existed, err := reg.DeleteWithFK(context.Background(), nodeID)
	require.NoError(t, err)
	assert.True(t, existed)

	_, ok := reg.GetMapping(nodeID)
	assert.False(t, ok)
	_, ok = graph.GetNode(nodeID)
	assert.False(t, ok)
	assert.Equal(t, 0, vector.Len())
}

func TestDeleteWithFK_MissingNode(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	existed, err := reg.DeleteWithFK(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, existed, "graph deletion result is the authoritative existence signal")
}

// Two concurrent updates on one node must end in a documented, non-corrupting
// state: last-write-wins on the mapping, version in {2,3}, never a torn record.
func TestUpdateWithFK_ConcurrentUpdatesSameNode(t *testing.T) {
	reg, _, vector := newTestRegistry(t)
	nodeID := uuid.New()

	_, err := reg.WriteWithFK(context.Background(), fkregistry.WriteParams{
		EntityType: "BrandKnowledge",
		NodeID:     nodeID,
		Properties: map[string]any{"content": "v1"},
		Embedding:  []float32{0.1},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, content := range []string{"racer-a", "racer-b"} {
		wg.Add(1)
		go func(c string) {
			defer wg.Done()
			_, err := reg.UpdateWithFK(context.Background(), nodeID,
				map[string]any{"content": c}, strptr(c), []float32{0.2}, nil)
			assert.NoError(t, err)
		}(content)
	}
	wg.Wait()

	mapping, ok := reg.GetMapping(nodeID)
	require.True(t, ok)
	assert.Contains(t, []int{2, 3}, mapping.Version)
	assert.Equal(t, fkregistry.SyncStatusSynced, mapping.SyncStatus)
	require.Len(t, mapping.VectorIDs, 1)
	assert.Equal(t, 1, vector.Len(), "no duplicate points under racing updates")
}
