package services

import (
	"districtgraph/application/ports"

	"go.uber.org/zap"
)

// Engine bundles the services that share one pair of stores. The embedded
// services expose their operations directly on the engine.
type Engine struct {
	*UnitService
	*AdjacencyReconciler
	*MergeCoordinator
	*SymmetryAuditor

	Propagator *DemographicPropagator
}

// NewEngine wires every service over the given stores with the same options
func NewEngine(
	unitRepo ports.UnitRepository,
	groupRepo ports.GroupRepository,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	propagator := NewDemographicPropagator(groupRepo, logger, opts...)

	return &Engine{
		UnitService:         NewUnitService(unitRepo, groupRepo, propagator, logger, opts...),
		AdjacencyReconciler: NewAdjacencyReconciler(unitRepo, propagator, logger, opts...),
		MergeCoordinator:    NewMergeCoordinator(unitRepo, propagator, logger, opts...),
		SymmetryAuditor:     NewSymmetryAuditor(unitRepo, logger, opts...),
		Propagator:          propagator,
	}
}
