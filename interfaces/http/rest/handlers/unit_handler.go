package handlers

import (
	"context"
	"fmt"
	"net/http"

	"districtgraph/application/services"
	"districtgraph/domain/core/entities"
	"districtgraph/domain/core/valueobjects"
	pkgerrors "districtgraph/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UnitEngine is what the unit endpoints need from the application layer
type UnitEngine interface {
	CreateUnit(ctx context.Context, unit *entities.Unit) (*entities.Unit, error)
	GetUnit(ctx context.Context, id string) (*entities.Unit, error)
	DeleteUnit(ctx context.Context, id string) error
	ReconcileUnit(ctx context.Context, incoming *entities.Unit) (*services.ReconcileResult, error)
	MergeUnitList(ctx context.Context, ids []string, demographics valueobjects.Demographics) (*services.MergeResult, error)
}

// UnitHandler handles unit-related HTTP requests
type UnitHandler struct {
	engine UnitEngine
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewUnitHandler creates a new unit handler
func NewUnitHandler(engine UnitEngine, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *UnitHandler {
	return &UnitHandler{
		engine: engine,
		errors: errorHandler,
		logger: logger,
	}
}

// UnitRequest is the body of create and update calls
type UnitRequest struct {
	UnitID             string         `json:"unitId,omitempty" validate:"omitempty,max=128"`
	GroupID            string         `json:"groupId,omitempty" validate:"omitempty,max=128"`
	StateID            string         `json:"stateId,omitempty" validate:"omitempty,max=128"`
	CanonicalName      string         `json:"canonicalName,omitempty" validate:"omitempty,max=256"`
	AdjacentIDs        []string       `json:"adjacentIds" validate:"omitempty,dive,required,max=128"`
	EnclosingIDs       []string       `json:"enclosingIds,omitempty" validate:"omitempty,dive,required,max=128"`
	Ghost              bool           `json:"ghost"`
	MultipleBorder     bool           `json:"multipleBorder"`
	Coordinates        string         `json:"coordinates,omitempty"`
	ElectionData       map[string]int `json:"electionData,omitempty" validate:"omitempty,dive,keys,required,endkeys,gte=0"`
	LogBag             map[int]string `json:"logBag,omitempty"`
	Demographics       map[string]int `json:"demographics,omitempty" validate:"omitempty,dive,keys,required,endkeys,gte=0"`
	RecomputeAggregate bool           `json:"recomputeAggregate"`
}

func (req UnitRequest) toEntity() *entities.Unit {
	unit := &entities.Unit{
		ID:                 req.UnitID,
		GroupID:            req.GroupID,
		StateID:            req.StateID,
		CanonicalName:      req.CanonicalName,
		AdjacentIDs:        valueobjects.NewIDSet(req.AdjacentIDs...),
		EnclosingIDs:       valueobjects.NewIDSet(req.EnclosingIDs...),
		Ghost:              req.Ghost,
		MultipleBorder:     req.MultipleBorder,
		Coordinates:        req.Coordinates,
		ElectionData:       req.ElectionData,
		LogBag:             req.LogBag,
		RecomputeAggregate: req.RecomputeAggregate,
	}
	if req.Demographics != nil {
		unit.Demographics = valueobjects.Demographics(req.Demographics)
	}
	return unit
}

// MergeRequestBody is the body of POST /units/merge
type MergeRequestBody struct {
	UnitIDs      []string       `json:"unitIds" validate:"required,len=2,dive,required,max=128"`
	Demographics map[string]int `json:"demographics,omitempty" validate:"omitempty,dive,keys,required,endkeys,gte=0"`
}

// CreateUnit handles POST /units
func (h *UnitHandler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req UnitRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	unit, err := h.engine.CreateUnit(r.Context(), req.toEntity())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/units/"+unit.ID)
	respondJSON(w, h.logger, http.StatusCreated, unit)
}

// GetUnit handles GET /units/{unitID}
func (h *UnitHandler) GetUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.engine.GetUnit(r.Context(), chi.URLParam(r, "unitID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, unit)
}

// UpdateUnit handles PUT /units/{unitID} by reconciling the unit
func (h *UnitHandler) UpdateUnit(w http.ResponseWriter, r *http.Request) {
	unitID := chi.URLParam(r, "unitID")

	var req UnitRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if req.UnitID != "" && req.UnitID != unitID {
		h.errors.Handle(w, r, pkgerrors.NewInvalidArgumentError(
			fmt.Sprintf("body unitId %q does not match path %q", req.UnitID, unitID)))
		return
	}
	req.UnitID = unitID

	result, err := h.engine.ReconcileUnit(r.Context(), req.toEntity())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, result)
}

// DeleteUnit handles DELETE /units/{unitID}
func (h *UnitHandler) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteUnit(r.Context(), chi.URLParam(r, "unitID")); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MergeUnits handles POST /units/merge
func (h *UnitHandler) MergeUnits(w http.ResponseWriter, r *http.Request) {
	var req MergeRequestBody
	if err := decodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var demographics valueobjects.Demographics
	if req.Demographics != nil {
		demographics = valueobjects.Demographics(req.Demographics)
	}

	result, err := h.engine.MergeUnitList(r.Context(), req.UnitIDs, demographics)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, result)
}
