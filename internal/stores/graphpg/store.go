package graphpg

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/emergent-company/knowledge-engine/domain/fkregistry"
	"github.com/emergent-company/knowledge-engine/internal/database"
	"github.com/emergent-company/knowledge-engine/pkg/apperror"
	"github.com/emergent-company/knowledge-engine/pkg/logger"
	"github.com/emergent-company/knowledge-engine/pkg/pgutils"
)

// nodeRow is the persistence shape of a graph node.
type nodeRow struct {
	bun.BaseModel `bun:"table:kb.graph_nodes,alias:gn"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid"`
	EntityType string         `bun:"entity_type,notnull"`
	Properties map[string]any `bun:"properties,type:jsonb,notnull,default:'{}'"`
	OrgID      *string        `bun:"org_id"`
	SyncStatus string         `bun:"sync_status,notnull,default:'synced'"`
	CreatedAt  time.Time      `bun:"created_at,notnull,default:now()"`
	UpdatedAt  time.Time      `bun:"updated_at,notnull,default:now()"`
}

func (r *nodeRow) toDomain() *fkregistry.GraphNode {
	return &fkregistry.GraphNode{
		ID:         r.ID,
		EntityType: r.EntityType,
		Properties: r.Properties,
		OrgID:      r.OrgID,
		SyncStatus: fkregistry.SyncStatus(r.SyncStatus),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// Store is the Postgres-backed graph store.
type Store struct {
	db  bun.IDB
	log *slog.Logger
}

// NewStore creates a Postgres graph store.
func NewStore(db bun.IDB, log *slog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With(logger.Scope("graphpg")),
	}
}

var _ fkregistry.GraphStore = (*Store)(nil)

// CreateNode inserts a new node row.
func (s *Store) CreateNode(ctx context.Context, entityType string, nodeID uuid.UUID, properties map[string]any, orgID *string) (*fkregistry.GraphNode, error) {
	if properties == nil {
		properties = map[string]any{}
	}
	now := time.Now().UTC()
	row := &nodeRow{
		ID:         nodeID,
		EntityType: entityType,
		Properties: properties,
		OrgID:      orgID,
		SyncStatus: string(fkregistry.SyncStatusSynced),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := s.db.NewInsert().
		Model(row).
		Exec(ctx)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return nil, apperror.ErrConflict.
				WithMessage("graph node already exists: " + nodeID.String()).
				WithInternal(err)
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	return row.toDomain(), nil
}

// UpdateNode merge-updates node properties inside a transaction so a
// concurrent writer cannot interleave between the read and the write.
// Returns (nil, nil) when the node does not exist.
func (s *Store) UpdateNode(ctx context.Context, nodeID uuid.UUID, properties map[string]any) (*fkregistry.GraphNode, error) {
	tx, err := database.BeginSafeTx(ctx, s.db)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	row := new(nodeRow)
	err = tx.NewSelect().
		Model(row).
		Where("id = ?", nodeID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	if row.Properties == nil {
		row.Properties = map[string]any{}
	}
	for k, v := range properties {
		row.Properties[k] = v
	}
	row.UpdatedAt = time.Now().UTC()

	_, err = tx.NewUpdate().
		Model(row).
		Column("properties", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	return row.toDomain(), nil
}

// DeleteNode removes a node and reports whether a row was deleted.
func (s *Store) DeleteNode(ctx context.Context, nodeID uuid.UUID) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*nodeRow)(nil)).
		Where("id = ?", nodeID).
		Exec(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return affected > 0, nil
}

// MarkSyncStatus updates the node's sync status column.
func (s *Store) MarkSyncStatus(ctx context.Context, nodeID uuid.UUID, status fkregistry.SyncStatus) error {
	_, err := s.db.NewUpdate().
		Model((*nodeRow)(nil)).
		Set("sync_status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", nodeID).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}
