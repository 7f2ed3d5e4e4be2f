package handlers

import (
	"context"
	"net/http"

	"districtgraph/application/services"
	"districtgraph/domain/core/entities"
	pkgerrors "districtgraph/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GroupReader loads groups
type GroupReader interface {
	GetGroup(ctx context.Context, id string) (*entities.Group, error)
}

// Auditor runs the adjacency audit
type Auditor interface {
	Audit(ctx context.Context) (*services.AuditReport, error)
}

// GroupHandler handles group and audit requests
type GroupHandler struct {
	groups  GroupReader
	auditor Auditor
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(groups GroupReader, auditor Auditor, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{
		groups:  groups,
		auditor: auditor,
		errors:  errorHandler,
		logger:  logger,
	}
}

// GetGroup handles GET /groups/{groupID}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.GetGroup(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, group)
}

// Audit handles GET /audit
func (h *GroupHandler) Audit(w http.ResponseWriter, r *http.Request) {
	report, err := h.auditor.Audit(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, report)
}
