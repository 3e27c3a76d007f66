package changeset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emergent-company/knowledge-engine/domain/fkregistry"
	"github.com/emergent-company/knowledge-engine/domain/knowledge"
	"github.com/emergent-company/knowledge-engine/pkg/apperror"
	"github.com/emergent-company/knowledge-engine/pkg/embeddings"
	"github.com/emergent-company/knowledge-engine/pkg/logger"
)

// maxAuditErrors bounds the per-batch error list so a pathological import
// cannot grow the audit without limit.
const maxAuditErrors = 50

// Processor executes changesets entry by entry. Creates run first, then
// updates, then deletes; grouping by operation avoids order-dependent false
// conflicts between a create and a same-batch update of the same key.
type Processor struct {
	writes     *knowledge.Service
	fk         *fkregistry.Registry
	embeddings *embeddings.Service
	log        *slog.Logger
}

// NewProcessor creates a batch changeset processor.
func NewProcessor(writes *knowledge.Service, fk *fkregistry.Registry, emb *embeddings.Service, log *slog.Logger) *Processor {
	return &Processor{
		writes:     writes,
		fk:         fk,
		embeddings: emb,
		log:        log.With(logger.Scope("changeset.proc")),
	}
}

// Process runs every entry of the changeset and records each outcome
// independently. One failing entry never aborts the batch.
func (p *Processor) Process(ctx context.Context, cs *ChangeSet) *Audit {
	audit := &Audit{
		ChangeSetID:  cs.ID,
		Source:       cs.Source,
		EntriesTotal: len(cs.Entries),
		StartedAt:    time.Now().UTC(),
	}

	type indexed struct {
		i     int
		entry Entry
	}
	var creates, updates, deletes []indexed
	for i, entry := range cs.Entries {
		switch entry.Operation {
		case OpCreate:
			creates = append(creates, indexed{i, entry})
		case OpUpdate:
			updates = append(updates, indexed{i, entry})
		case OpDelete:
			deletes = append(deletes, indexed{i, entry})
		default:
			audit.EntriesFailed++
			p.recordError(audit, i, fmt.Errorf("unknown operation %q", entry.Operation))
		}
	}

	for _, it := range creates {
		p.processCreate(ctx, audit, it.i, it.entry)
	}
	for _, it := range updates {
		p.processUpdate(ctx, audit, it.i, it.entry)
	}
	for _, it := range deletes {
		p.processDelete(ctx, audit, it.i, it.entry)
	}

	audit.CompletedAt = time.Now().UTC()

	p.log.Info("changeset processed",
		slog.String("changeset_id", cs.ID),
		slog.Int("total", audit.EntriesTotal),
		slog.Int("processed", audit.EntriesProcessed),
		slog.Int("failed", audit.EntriesFailed),
		slog.Int("skipped", audit.EntriesSkipped),
	)

	return audit
}

func (p *Processor) processCreate(ctx context.Context, audit *Audit, i int, entry Entry) {
	embedding, err := p.resolveEmbedding(ctx, entry.SemanticContent)
	if err != nil {
		audit.EntriesFailed++
		p.recordError(audit, i, err)
		return
	}

	resp, err := p.writes.Write(ctx, &knowledge.WriteRequest{
		EntityType:      entry.EntityType,
		Properties:      entry.Properties,
		OrgID:           entry.OrgID,
		Visibility:      entry.Visibility,
		IdempotencyKey:  entry.IdempotencyKey,
		Source:          audit.Source,
		SemanticContent: entry.SemanticContent,
		VectorPayload:   entry.VectorPayload,
	}, nil, embedding)
	if err != nil {
		if errors.Is(err, apperror.ErrIdempotencyConflict) {
			audit.EntriesSkipped++
			return
		}
		audit.EntriesFailed++
		p.recordError(audit, i, err)
		return
	}

	audit.EntriesProcessed++
	audit.CreatedNodeIDs = append(audit.CreatedNodeIDs, resp.GraphNodeID)
}

func (p *Processor) processUpdate(ctx context.Context, audit *Audit, i int, entry Entry) {
	if entry.GraphNodeID == nil {
		audit.EntriesFailed++
		p.recordError(audit, i, errors.New("update entry requires graph_node_id"))
		return
	}

	embedding, err := p.resolveEmbedding(ctx, entry.SemanticContent)
	if err != nil {
		audit.EntriesFailed++
		p.recordError(audit, i, err)
		return
	}

	_, err = p.fk.UpdateWithFK(ctx, *entry.GraphNodeID, entry.Properties, entry.SemanticContent, embedding, entry.VectorPayload)
	if err != nil {
		audit.EntriesFailed++
		p.recordError(audit, i, err)
		return
	}

	audit.EntriesProcessed++
}

func (p *Processor) processDelete(ctx context.Context, audit *Audit, i int, entry Entry) {
	if entry.GraphNodeID == nil {
		audit.EntriesFailed++
		p.recordError(audit, i, errors.New("delete entry requires graph_node_id"))
		return
	}

	existed, err := p.fk.DeleteWithFK(ctx, *entry.GraphNodeID)
	if err != nil {
		audit.EntriesFailed++
		p.recordError(audit, i, err)
		return
	}
	if !existed {
		// Nothing to delete: already gone counts as skipped, not failed
		audit.EntriesSkipped++
		return
	}

	audit.EntriesProcessed++
}

func (p *Processor) resolveEmbedding(ctx context.Context, semanticContent *string) ([]float32, error) {
	if semanticContent == nil || *semanticContent == "" || !p.embeddings.IsEnabled() {
		return nil, nil
	}
	embedding, err := p.embeddings.EmbedQuery(ctx, *semanticContent)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	return embedding, nil
}

func (p *Processor) recordError(audit *Audit, i int, err error) {
	if len(audit.Errors) >= maxAuditErrors {
		return
	}
	audit.Errors = append(audit.Errors, fmt.Sprintf("entry %d: %v", i, err))
}
