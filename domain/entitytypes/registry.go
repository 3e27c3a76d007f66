package entitytypes

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/emergent-company/knowledge-engine/pkg/apperror"
	"github.com/emergent-company/knowledge-engine/pkg/logger"
)

// Registry is the in-process governance table for entity types. It performs
// no I/O; reads dominate writes, so the definition table sits behind an RWMutex.
type Registry struct {
	mu        sync.RWMutex
	defs      map[string]Definition
	coreTypes map[string]struct{}
	log       *slog.Logger
}

// NewRegistry creates a Registry pre-seeded with the given core definitions.
// Core definitions are registered under OriginCore and their IDs become
// protected for the lifetime of the registry.
func NewRegistry(log *slog.Logger, coreDefs ...Definition) *Registry {
	r := &Registry{
		defs:      make(map[string]Definition),
		coreTypes: make(map[string]struct{}),
		log:       log.With(logger.Scope("entitytypes.registry")),
	}
	for _, def := range coreDefs {
		def.RegisteredBy = OriginCore
		if def.Status == "" {
			def.Status = StatusActive
		}
		r.defs[def.ID] = def
		r.coreTypes[def.ID] = struct{}{}
	}
	return r
}

// Get returns the definition for id, if registered.
func (r *Registry) Get(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// Register adds or idempotently overwrites a definition.
//
// It fails with a validation error when ID or Label is empty, and with a
// collision error when the ID belongs to a protected core type and the
// origin is not core, or when an active entry is already held by a
// different origin. Re-registration by the same origin overwrites in place;
// a deprecated entry may be claimed by a new origin.
func (r *Registry) Register(def Definition) error {
	if def.ID == "" {
		return apperror.NewValidation("id", "entity type id must not be empty")
	}
	if def.Label == "" {
		return apperror.NewValidation("label", "entity type label must not be empty")
	}
	if def.Status == "" {
		def.Status = StatusActive
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, protected := r.coreTypes[def.ID]; protected && def.RegisteredBy != OriginCore {
		return apperror.ErrTypeCollision.WithMessage(
			fmt.Sprintf("entity type '%s' is a protected core type", def.ID))
	}

	if existing, ok := r.defs[def.ID]; ok {
		if existing.RegisteredBy != def.RegisteredBy && existing.Status != StatusDeprecated {
			return apperror.ErrTypeCollision.WithMessage(
				fmt.Sprintf("entity type '%s' is already registered by '%s'", def.ID, existing.RegisteredBy)).
				WithDetails(map[string]any{"registered_by": existing.RegisteredBy})
		}
	}

	r.defs[def.ID] = def
	r.log.Debug("entity type registered",
		slog.String("id", def.ID),
		slog.String("origin", def.RegisteredBy),
	)
	return nil
}

// Deprecate flips a definition to deprecated, preserving all other fields.
// Core types cannot be deprecated. The bool reports whether the id was known.
func (r *Registry) Deprecate(id string) (Definition, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, protected := r.coreTypes[id]; protected {
		return Definition{}, false, apperror.ErrProtectedType.WithMessage(
			fmt.Sprintf("core entity type '%s' cannot be deprecated", id))
	}

	def, ok := r.defs[id]
	if !ok {
		return Definition{}, false, nil
	}

	def.Status = StatusDeprecated
	r.defs[id] = def
	r.log.Info("entity type deprecated", slog.String("id", id))
	return def, true, nil
}

// IsWritable reports whether the type exists and is active.
func (r *Registry) IsWritable(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return ok && def.Status == StatusActive
}
