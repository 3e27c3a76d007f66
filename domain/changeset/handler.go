package changeset

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/knowledge-engine/pkg/apperror"
)

// Handler handles HTTP requests for batch changeset ingestion
type Handler struct {
	proc *Processor
}

// NewHandler creates a new changeset handler
func NewHandler(proc *Processor) *Handler {
	return &Handler{proc: proc}
}

// Process handles POST /api/knowledge/changesets
// @Summary      Process a changeset
// @Description  Runs every entry of a create/update/delete batch with per-entry failure semantics
// @Tags         changesets
// @Accept       json
// @Produce      json
// @Param        request body ChangeSet true "Changeset"
// @Success      200 {object} Audit "Per-batch audit"
// @Failure      400 {object} apperror.Error "Bad request"
// @Router       /api/knowledge/changesets [post]
func (h *Handler) Process(c echo.Context) error {
	var cs ChangeSet
	if err := c.Bind(&cs); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if cs.ID == "" {
		cs.ID = uuid.NewString()
	}

	audit := h.proc.Process(c.Request().Context(), &cs)
	return c.JSON(http.StatusOK, audit)
}
