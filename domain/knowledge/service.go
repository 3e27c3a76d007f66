package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emergent-company/knowledge-engine/domain/entitytypes"
	"github.com/emergent-company/knowledge-engine/domain/fkregistry"
	"github.com/emergent-company/knowledge-engine/pkg/apperror"
	"github.com/emergent-company/knowledge-engine/pkg/logger"
)

// identitySeparator joins the idempotency identity parts. A control character
// keeps "a"+"bc" and "ab"+"c" from colliding.
const identitySeparator = "\x1f"

// Service is the governed write entry point. It layers idempotency dedup and
// schema validation on top of the consistency registry; all store I/O is
// delegated, no retries happen here.
type Service struct {
	types *entitytypes.Registry
	fk    *fkregistry.Registry
	log   *slog.Logger

	mu       sync.Mutex
	receipts map[string]*cachedWrite
}

type cachedWrite struct {
	hash     string
	response WriteResponse
}

// NewService creates a knowledge write service.
func NewService(types *entitytypes.Registry, fk *fkregistry.Registry, log *slog.Logger) *Service {
	return &Service{
		types:    types,
		fk:       fk,
		log:      log.With(logger.Scope("knowledge.svc")),
		receipts: make(map[string]*cachedWrite),
	}
}

// Write performs one governed knowledge write.
//
// Resubmission with the same idempotency identity and an unchanged payload
// hash returns the original response; a changed hash is a hard conflict and
// mutates nothing. Validation failures are rejected before any store I/O.
func (s *Service) Write(ctx context.Context, req *WriteRequest, userID *string, embedding []float32) (*WriteResponse, error) {
	if !s.types.IsWritable(req.EntityType) {
		return nil, apperror.ErrTypeNotWritable.WithMessage(
			fmt.Sprintf("entity type '%s' is unknown or deprecated", req.EntityType))
	}

	hash := computePropertiesHash(req.Properties)
	identity := s.identityFor(req)

	if identity != "" {
		s.mu.Lock()
		cached, ok := s.receipts[identity]
		s.mu.Unlock()
		if ok {
			if cached.hash == hash {
				resp := cached.response
				return &resp, nil
			}
			return nil, apperror.ErrIdempotencyConflict.WithDetails(map[string]any{
				"idempotency_key": deref(req.IdempotencyKey),
				"entity_type":     req.EntityType,
			})
		}
	}

	if err := s.validateProperties(req.EntityType, req.Properties); err != nil {
		return nil, err
	}

	nodeID := uuid.New()
	result, err := s.fk.WriteWithFK(ctx, fkregistry.WriteParams{
		EntityType:      req.EntityType,
		NodeID:          nodeID,
		Properties:      req.Properties,
		OrgID:           req.OrgID,
		SemanticContent: req.SemanticContent,
		Embedding:       embedding,
		VectorPayload:   req.VectorPayload,
	})
	if err != nil {
		return nil, err
	}

	receipt := WriteReceipt{
		WriteID:        uuid.New(),
		GraphNodeID:    nodeID,
		EntityType:     req.EntityType,
		OrgID:          req.OrgID,
		Visibility:     req.Visibility,
		IdempotencyKey: req.IdempotencyKey,
		Source:         req.Source,
		UserID:         userID,
		Timestamp:      time.Now().UTC(),
		SyncStatus:     result.Mapping.SyncStatus,
		PropertiesHash: hash,
	}

	response := WriteResponse{
		GraphNodeID: nodeID,
		Version:     result.Mapping.Version,
		Receipt:     receipt,
	}

	if identity != "" {
		s.mu.Lock()
		s.receipts[identity] = &cachedWrite{hash: hash, response: response}
		s.mu.Unlock()
	}

	s.log.Info("knowledge write",
		slog.String("entity_type", req.EntityType),
		slog.String("graph_node_id", nodeID.String()),
		slog.String("sync_status", string(receipt.SyncStatus)),
	)

	resp := response
	return &resp, nil
}

// GetReceipt returns the cached receipt for an idempotency identity, if any.
func (s *Service) GetReceipt(entityType string, orgID *string, idempotencyKey string) (WriteReceipt, bool) {
	identity := entityType + identitySeparator + deref(orgID) + identitySeparator + idempotencyKey
	s.mu.Lock()
	defer s.mu.Unlock()
	cached, ok := s.receipts[identity]
	if !ok {
		return WriteReceipt{}, false
	}
	return cached.response.Receipt, true
}

// identityFor builds the repeatable write identity: entity type + org scope +
// idempotency key. Requests without a key are never deduplicated.
func (s *Service) identityFor(req *WriteRequest) string {
	if req.IdempotencyKey == nil || *req.IdempotencyKey == "" {
		return ""
	}
	return req.EntityType + identitySeparator + deref(req.OrgID) + identitySeparator + *req.IdempotencyKey
}

// validateProperties enforces the entity type's schema: every declared
// property must be present and carry a compatible JSON type.
func (s *Service) validateProperties(entityType string, properties map[string]any) error {
	def, ok := s.types.Get(entityType)
	if !ok {
		return apperror.ErrTypeNotWritable.WithMessage(
			fmt.Sprintf("entity type '%s' is not registered", entityType))
	}

	for field, propType := range def.Schema {
		value, present := properties[field]
		if !present {
			return apperror.NewValidation(field, "required property is missing")
		}
		if !typeMatches(propType, value) {
			return apperror.NewValidation(field,
				fmt.Sprintf("expected %s, got %T", propType, value))
		}
	}
	return nil
}

func typeMatches(propType entitytypes.PropertyType, value any) bool {
	if value == nil {
		return false
	}
	switch propType {
	case entitytypes.PropertyString:
		_, ok := value.(string)
		return ok
	case entitytypes.PropertyNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case entitytypes.PropertyBoolean:
		_, ok := value.(bool)
		return ok
	case entitytypes.PropertyObject:
		_, ok := value.(map[string]any)
		return ok
	case entitytypes.PropertyArray:
		_, ok := value.([]any)
		return ok
	default:
		return true
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
