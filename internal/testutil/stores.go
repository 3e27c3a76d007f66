// Package testutil provides in-memory store fakes for service-level tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emergent-company/knowledge-engine/domain/fkregistry"
)

// MemGraphStore is an in-memory GraphStore fake. CreateErr, when set, makes
// every CreateNode fail; UpdateErr and DeleteErr behave likewise.
type MemGraphStore struct {
	mu         sync.Mutex
	nodes      map[uuid.UUID]*fkregistry.GraphNode
	CreateErr  error
	UpdateErr  error
	DeleteErr  error
	MarkedSync map[uuid.UUID]fkregistry.SyncStatus
}

// NewMemGraphStore creates an empty in-memory graph store.
func NewMemGraphStore() *MemGraphStore {
	return &MemGraphStore{
		nodes:      make(map[uuid.UUID]*fkregistry.GraphNode),
		MarkedSync: make(map[uuid.UUID]fkregistry.SyncStatus),
	}
}

func (s *MemGraphStore) CreateNode(ctx context.Context, entityType string, nodeID uuid.UUID, properties map[string]any, orgID *string) (*fkregistry.GraphNode, error) {
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[nodeID]; exists {
		return nil, fmt.Errorf("node %s already exists", nodeID)
	}
	now := time.Now().UTC()
	props := make(map[string]any, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	node := &fkregistry.GraphNode{
		ID:         nodeID,
		EntityType: entityType,
		Properties: props,
		OrgID:      orgID,
		SyncStatus: fkregistry.SyncStatusSynced,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.nodes[nodeID] = node
	cp := *node
	return &cp, nil
}

func (s *MemGraphStore) UpdateNode(ctx context.Context, nodeID uuid.UUID, properties map[string]any) (*fkregistry.GraphNode, error) {
	if s.UpdateErr != nil {
		return nil, s.UpdateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[nodeID]
	if !ok {
		return nil, nil
	}
	for k, v := range properties {
		node.Properties[k] = v
	}
	node.UpdatedAt = time.Now().UTC()
	cp := *node
	cp.Properties = make(map[string]any, len(node.Properties))
	for k, v := range node.Properties {
		cp.Properties[k] = v
	}
	return &cp, nil
}

func (s *MemGraphStore) DeleteNode(ctx context.Context, nodeID uuid.UUID) (bool, error) {
	if s.DeleteErr != nil {
		return false, s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[nodeID]
	delete(s.nodes, nodeID)
	return ok, nil
}

func (s *MemGraphStore) MarkSyncStatus(ctx context.Context, nodeID uuid.UUID, status fkregistry.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MarkedSync[nodeID] = status
	if node, ok := s.nodes[nodeID]; ok {
		node.SyncStatus = status
	}
	return nil
}

// GetNode returns the stored node, if any.
func (s *MemGraphStore) GetNode(nodeID uuid.UUID) (*fkregistry.GraphNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[nodeID]
	if !ok {
		return nil, false
	}
	cp := *node
	return &cp, true
}

// Len reports the number of stored nodes.
func (s *MemGraphStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// MemVectorStore is an in-memory VectorStore fake. FailNext makes the next N
// upserts fail; FailAlways makes every upsert fail.
type MemVectorStore struct {
	mu         sync.Mutex
	points     map[uuid.UUID]*fkregistry.VectorPoint
	FailNext   int
	FailAlways bool
	Upserts    int
}

// NewMemVectorStore creates an empty in-memory vector store.
func NewMemVectorStore() *MemVectorStore {
	return &MemVectorStore{points: make(map[uuid.UUID]*fkregistry.VectorPoint)}
}

func (s *MemVectorStore) UpsertPoint(ctx context.Context, pointID uuid.UUID, vector []float32, payload map[string]any, fkID *uuid.UUID) (*fkregistry.VectorPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Upserts++
	if s.FailAlways {
		return nil, fmt.Errorf("vector store unavailable")
	}
	if s.FailNext > 0 {
		s.FailNext--
		return nil, fmt.Errorf("vector store unavailable")
	}
	pl := make(map[string]any, len(payload))
	for k, v := range payload {
		pl[k] = v
	}
	point := &fkregistry.VectorPoint{
		ID:      pointID,
		Vector:  append([]float32(nil), vector...),
		Payload: pl,
		FKID:    fkID,
	}
	s.points[pointID] = point
	cp := *point
	return &cp, nil
}

func (s *MemVectorStore) DeletePoint(ctx context.Context, pointID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.points, pointID)
	// Idempotent: missing points count as deleted
	return true, nil
}

// GetPoint returns the stored point, if any.
func (s *MemVectorStore) GetPoint(pointID uuid.UUID) (*fkregistry.VectorPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	point, ok := s.points[pointID]
	if !ok {
		return nil, false
	}
	cp := *point
	return &cp, true
}

// Len reports the number of stored points.
func (s *MemVectorStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

var (
	_ fkregistry.GraphStore  = (*MemGraphStore)(nil)
	_ fkregistry.VectorStore = (*MemVectorStore)(nil)
)
