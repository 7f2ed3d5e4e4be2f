package services

import (
	"context"
	"fmt"

	"districtgraph/application/ports"
	"districtgraph/domain/core/entities"
	"districtgraph/domain/core/valueobjects"
	"districtgraph/domain/events"
	pkgerrors "districtgraph/pkg/errors"

	"go.uber.org/zap"
)

// ReconcileResult describes what a reconcile did
type ReconcileResult struct {
	Unit       *entities.Unit    `json:"unit"`
	Removed    []string          `json:"removed"`
	Added      []string          `json:"added"`
	Outcomes   []NeighborOutcome `json:"outcomes"`
	Propagated bool              `json:"propagated"`
}

// AdjacencyReconciler persists an edited unit and repairs the neighbour
// records its adjacency change affects, so that adjacency stays symmetric.
//
// There is no mutual exclusion: two edits touching the same neighbour race
// and the last write to that neighbour wins. Callers must keep at most one
// structural edit per unit in flight.
type AdjacencyReconciler struct {
	unitRepo   ports.UnitRepository
	propagator *DemographicPropagator
	instrumentation
}

// NewAdjacencyReconciler creates a new adjacency reconciler
func NewAdjacencyReconciler(
	unitRepo ports.UnitRepository,
	propagator *DemographicPropagator,
	logger *zap.Logger,
	opts ...Option,
) *AdjacencyReconciler {
	return &AdjacencyReconciler{
		unitRepo:        unitRepo,
		propagator:      propagator,
		instrumentation: newInstrumentation(logger, opts),
	}
}

// ReconcileUnit applies an edited unit. Neighbours dropped from its adjacency
// lose the back reference, neighbours added gain it, and the unit itself is
// persisted last. A store failure aborts the remaining steps; neighbour writes
// already applied stay applied.
func (r *AdjacencyReconciler) ReconcileUnit(ctx context.Context, incoming *entities.Unit) (*ReconcileResult, error) {
	var result *ReconcileResult
	err := r.run(ctx, "ReconcileUnit", func(ctx context.Context) error {
		var err error
		result, err = r.reconcile(ctx, incoming)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *AdjacencyReconciler) reconcile(ctx context.Context, incoming *entities.Unit) (*ReconcileResult, error) {
	unit := incoming.Clone()
	unit.Normalize()
	if err := unit.Validate(); err != nil {
		return nil, err
	}

	stored, err := r.unitRepo.Get(ctx, unit.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load unit")
	}

	if unit.GroupID == "" {
		unit.GroupID = stored.GroupID
	} else if unit.GroupID != stored.GroupID {
		return nil, pkgerrors.NewInvalidArgumentError(
			fmt.Sprintf("unit %q belongs to group %q; groups change only through merge", unit.ID, stored.GroupID))
	}
	if unit.StateID == "" {
		unit.StateID = stored.StateID
	}

	result := &ReconcileResult{
		Removed:  []string{},
		Added:    []string{},
		Outcomes: []NeighborOutcome{},
	}

	storedAdjacent := stored.AdjacentIDs.Normalized()
	changed := !storedAdjacent.Equal(unit.AdjacentIDs)
	if changed {
		removed := storedAdjacent.Minus(unit.AdjacentIDs)
		added := unit.AdjacentIDs.Minus(storedAdjacent)
		result.Removed = removed.Strings()
		result.Added = added.Strings()

		r.logger.Debug("Reconciling adjacency",
			zap.String("unitID", unit.ID),
			zap.Strings("removed", result.Removed),
			zap.Strings("added", result.Added),
		)

		// The removed phase completes before the added phase starts
		outcomes, err := r.rewire(ctx, unit.ID, removed, PhaseRemoved)
		result.Outcomes = append(result.Outcomes, outcomes...)
		if err != nil {
			return nil, err
		}

		outcomes, err = r.rewire(ctx, unit.ID, added, PhaseAdded)
		result.Outcomes = append(result.Outcomes, outcomes...)
		if err != nil {
			return nil, err
		}
	}

	if unit.HasSnapshot() {
		if _, err := r.propagator.propagateInto(ctx, unit); err != nil {
			return nil, err
		}
		result.Propagated = true
	}

	saved, err := r.unitRepo.Put(ctx, unit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to persist unit")
	}
	result.Unit = saved

	if changed {
		r.publish(ctx, events.NewUnitAdjacencyReconciled(
			saved.ID, result.Added, result.Removed, skipped(result.Outcomes), r.now()))
	}

	r.logger.Info("Unit reconciled",
		zap.String("unitID", saved.ID),
		zap.Bool("adjacencyChanged", changed),
		zap.Int("neighborsTouched", len(result.Outcomes)),
		zap.Bool("propagated", result.Propagated),
	)

	return result, nil
}

// rewire adds or removes unitID on every neighbour in ids. Neighbours are
// resolved in one batch; ids that do not resolve are skipped.
func (r *AdjacencyReconciler) rewire(ctx context.Context, unitID string, ids valueobjects.IDSet, phase Phase) ([]NeighborOutcome, error) {
	if ids.Len() == 0 {
		return nil, nil
	}

	neighbors, err := r.unitRepo.GetMany(ctx, ids.Strings())
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to resolve %s neighbors", phase)
	}

	outcomes := make([]NeighborOutcome, 0, ids.Len())
	for _, id := range ids {
		outcome := NeighborOutcome{NeighborID: id, Phase: phase}

		neighbor, ok := neighbors[id]
		if !ok {
			outcome.Status = StatusSkippedNotFound
			outcomes = append(outcomes, outcome)
			r.recordOutcome(ctx, outcome)
			continue
		}

		var modified bool
		if phase == PhaseRemoved {
			modified = neighbor.RemoveAdjacent(unitID)
		} else {
			modified = neighbor.AddAdjacent(unitID)
		}

		if !modified {
			outcome.Status = StatusUnchanged
			outcomes = append(outcomes, outcome)
			r.recordOutcome(ctx, outcome)
			continue
		}

		if _, err := r.unitRepo.Put(ctx, neighbor); err != nil {
			return outcomes, pkgerrors.Wrapf(err, "failed to persist neighbor %q", id)
		}
		outcome.Status = StatusApplied
		outcomes = append(outcomes, outcome)
		r.recordOutcome(ctx, outcome)
	}

	return outcomes, nil
}
