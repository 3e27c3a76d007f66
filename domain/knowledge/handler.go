package knowledge

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/knowledge-engine/domain/fkregistry"
	"github.com/emergent-company/knowledge-engine/pkg/apperror"
	"github.com/emergent-company/knowledge-engine/pkg/embeddings"
)

// Handler handles HTTP requests for governed knowledge writes
type Handler struct {
	svc        *Service
	fk         *fkregistry.Registry
	embeddings *embeddings.Service
}

// NewHandler creates a new knowledge handler
func NewHandler(svc *Service, fk *fkregistry.Registry, emb *embeddings.Service) *Handler {
	return &Handler{svc: svc, fk: fk, embeddings: emb}
}

// Write handles POST /api/knowledge
// @Summary      Write a knowledge entity
// @Description  Creates a graph node and its vector counterpart under idempotent, schema-governed semantics
// @Tags         knowledge
// @Accept       json
// @Produce      json
// @Param        request body WriteRequest true "Write request"
// @Success      201 {object} WriteResponse "Write result with receipt"
// @Failure      403 {object} apperror.Error "Entity type not writable"
// @Failure      409 {object} apperror.Error "Idempotency conflict"
// @Failure      422 {object} apperror.Error "Validation failed"
// @Router       /api/knowledge [post]
func (h *Handler) Write(c echo.Context) error {
	var req WriteRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.EntityType == "" {
		return apperror.NewBadRequest("entity_type is required")
	}

	embedding, err := h.resolveEmbedding(c, req.SemanticContent)
	if err != nil {
		return err
	}

	resp, err := h.svc.Write(c.Request().Context(), &req, nil, embedding)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, resp)
}

// Update handles PATCH /api/knowledge/:nodeId
// @Summary      Update a knowledge entity
// @Description  Merge-updates graph properties and refreshes the vector counterpart
// @Tags         knowledge
// @Produce      json
// @Param        nodeId path string true "Graph node ID (UUID)"
// @Success      200 {object} fkregistry.WriteResult "Update result"
// @Failure      404 {object} apperror.Error "Node not found"
// @Router       /api/knowledge/{nodeId} [patch]
func (h *Handler) Update(c echo.Context) error {
	nodeID, err := uuid.Parse(c.Param("nodeId"))
	if err != nil {
		return apperror.NewBadRequest("nodeId must be a UUID")
	}

	var req struct {
		Properties      map[string]any `json:"properties"`
		SemanticContent *string        `json:"semantic_content,omitempty"`
		VectorPayload   map[string]any `json:"vector_payload,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	embedding, err := h.resolveEmbedding(c, req.SemanticContent)
	if err != nil {
		return err
	}

	result, err := h.fk.UpdateWithFK(c.Request().Context(), nodeID, req.Properties, req.SemanticContent, embedding, req.VectorPayload)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Delete handles DELETE /api/knowledge/:nodeId
// @Summary      Delete a knowledge entity
// @Description  Deletes mapped vector points best-effort, then the graph node
// @Tags         knowledge
// @Param        nodeId path string true "Graph node ID (UUID)"
// @Success      204 "Deleted"
// @Failure      404 {object} apperror.Error "Node not found"
// @Router       /api/knowledge/{nodeId} [delete]
func (h *Handler) Delete(c echo.Context) error {
	nodeID, err := uuid.Parse(c.Param("nodeId"))
	if err != nil {
		return apperror.NewBadRequest("nodeId must be a UUID")
	}

	existed, err := h.fk.DeleteWithFK(c.Request().Context(), nodeID)
	if err != nil {
		return err
	}
	if !existed {
		return apperror.NewNotFound("graph node", nodeID.String())
	}

	return c.NoContent(http.StatusNoContent)
}

// GetMapping handles GET /api/knowledge/:nodeId/mapping
// @Summary      Get the FK mapping for a node
// @Tags         knowledge
// @Produce      json
// @Param        nodeId path string true "Graph node ID (UUID)"
// @Success      200 {object} fkregistry.FKMapping "FK mapping"
// @Failure      404 {object} apperror.Error "Mapping not found"
// @Router       /api/knowledge/{nodeId}/mapping [get]
func (h *Handler) GetMapping(c echo.Context) error {
	nodeID, err := uuid.Parse(c.Param("nodeId"))
	if err != nil {
		return apperror.NewBadRequest("nodeId must be a UUID")
	}

	mapping, ok := h.fk.GetMapping(nodeID)
	if !ok {
		return apperror.NewNotFound("fk mapping", nodeID.String())
	}

	return c.JSON(http.StatusOK, mapping)
}

// GetPendingSync handles GET /api/knowledge/pending-sync
// @Summary      List nodes awaiting vector reconciliation
// @Description  Reconciliation candidates for an external sweeper
// @Tags         knowledge
// @Produce      json
// @Success      200 {array} fkregistry.FKMapping "Pending mappings"
// @Router       /api/knowledge/pending-sync [get]
func (h *Handler) GetPendingSync(c echo.Context) error {
	pending := h.fk.GetPendingSync()
	if pending == nil {
		pending = []fkregistry.FKMapping{}
	}
	return c.JSON(http.StatusOK, pending)
}

// resolveEmbedding turns semantic content into a vector when an embedding
// client is configured. The service layer never talks to the embedder.
func (h *Handler) resolveEmbedding(c echo.Context, semanticContent *string) ([]float32, error) {
	if semanticContent == nil || *semanticContent == "" || !h.embeddings.IsEnabled() {
		return nil, nil
	}
	embedding, err := h.embeddings.EmbedQuery(c.Request().Context(), *semanticContent)
	if err != nil {
		return nil, apperror.NewInternal("embedding generation failed", err)
	}
	return embedding, nil
}
