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

// MergeRequest asks for AbsorbedID to be folded into PrimaryID. A non-nil
// Demographics is the snapshot of the merged unit and is propagated into the
// primary's group.
type MergeRequest struct {
	PrimaryID    string
	AbsorbedID   string
	Demographics valueobjects.Demographics
}

// MergeResult describes a completed merge
type MergeResult struct {
	Unit            *entities.Unit    `json:"unit"`
	AbsorbedID      string            `json:"absorbedId"`
	GainedNeighbors []string          `json:"gainedNeighbors"`
	Outcomes        []NeighborOutcome `json:"outcomes"`
	Propagated      bool              `json:"propagated"`
}

// MergeCoordinator collapses two adjacent units into one. The primary
// survives, inherits the absorbed unit's neighbours and keeps its own group;
// the absorbed unit is deleted.
type MergeCoordinator struct {
	unitRepo   ports.UnitRepository
	propagator *DemographicPropagator
	instrumentation
}

// NewMergeCoordinator creates a new merge coordinator
func NewMergeCoordinator(
	unitRepo ports.UnitRepository,
	propagator *DemographicPropagator,
	logger *zap.Logger,
	opts ...Option,
) *MergeCoordinator {
	return &MergeCoordinator{
		unitRepo:        unitRepo,
		propagator:      propagator,
		instrumentation: newInstrumentation(logger, opts),
	}
}

// MergeUnitList merges a list-shaped request: exactly two ids, primary first
func (m *MergeCoordinator) MergeUnitList(ctx context.Context, ids []string, demographics valueobjects.Demographics) (*MergeResult, error) {
	if len(ids) != 2 {
		return nil, pkgerrors.NewInvalidArgumentError(
			fmt.Sprintf("merge needs exactly two unit ids, got %d", len(ids)))
	}
	return m.MergeUnits(ctx, MergeRequest{
		PrimaryID:    ids[0],
		AbsorbedID:   ids[1],
		Demographics: demographics,
	})
}

// MergeUnits folds the absorbed unit into the primary. Every resolvable
// neighbour of the absorbed unit is pointed at the primary instead; neighbours
// that do not resolve are skipped. A store failure aborts the remaining steps
// without rolling back neighbour writes already applied.
func (m *MergeCoordinator) MergeUnits(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	var result *MergeResult
	err := m.run(ctx, "MergeUnits", func(ctx context.Context) error {
		var err error
		result, err = m.merge(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (m *MergeCoordinator) merge(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	if req.PrimaryID == "" || req.AbsorbedID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("primary and absorbed unit ids are required")
	}
	if req.PrimaryID == req.AbsorbedID {
		return nil, pkgerrors.NewInvalidArgumentError(
			fmt.Sprintf("unit %q cannot be merged with itself", req.PrimaryID))
	}
	if req.Demographics != nil {
		if err := req.Demographics.Validate(); err != nil {
			return nil, pkgerrors.NewInvalidArgumentError(err.Error())
		}
	}

	primary, err := m.unitRepo.Get(ctx, req.PrimaryID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load primary unit")
	}
	absorbed, err := m.unitRepo.Get(ctx, req.AbsorbedID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load absorbed unit")
	}

	// The primary is handled in memory and never loaded as a neighbour
	neighborIDs := absorbed.AdjacentIDs.Clone()
	neighborIDs.Remove(primary.ID)
	neighborIDs.Remove(absorbed.ID)

	result := &MergeResult{
		AbsorbedID:      absorbed.ID,
		GainedNeighbors: []string{},
		Outcomes:        make([]NeighborOutcome, 0, neighborIDs.Len()),
	}

	var neighbors map[string]*entities.Unit
	if neighborIDs.Len() > 0 {
		neighbors, err = m.unitRepo.GetMany(ctx, neighborIDs.Strings())
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to resolve neighbors of absorbed unit")
		}
	}

	for _, id := range neighborIDs {
		outcome := NeighborOutcome{NeighborID: id, Phase: PhaseMerge}

		neighbor, ok := neighbors[id]
		if !ok {
			outcome.Status = StatusSkippedNotFound
			result.Outcomes = append(result.Outcomes, outcome)
			m.recordOutcome(ctx, outcome)
			continue
		}

		if primary.AddAdjacent(id) {
			result.GainedNeighbors = append(result.GainedNeighbors, id)
		}
		addedPrimary := neighbor.AddAdjacent(primary.ID)
		removedAbsorbed := neighbor.RemoveAdjacent(absorbed.ID)

		if !addedPrimary && !removedAbsorbed {
			outcome.Status = StatusUnchanged
			result.Outcomes = append(result.Outcomes, outcome)
			m.recordOutcome(ctx, outcome)
			continue
		}

		if _, err := m.unitRepo.Put(ctx, neighbor); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to persist neighbor %q", id)
		}
		outcome.Status = StatusApplied
		result.Outcomes = append(result.Outcomes, outcome)
		m.recordOutcome(ctx, outcome)
	}

	primary.RemoveAdjacent(absorbed.ID)

	if err := m.unitRepo.Delete(ctx, absorbed.ID); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to delete absorbed unit")
	}

	if req.Demographics != nil {
		primary.Demographics = req.Demographics.Clone()
		primary.RecomputeAggregate = true
		if _, err := m.propagator.propagateInto(ctx, primary); err != nil {
			return nil, err
		}
		result.Propagated = true
	}

	saved, err := m.unitRepo.Put(ctx, primary)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to persist primary unit")
	}
	result.Unit = saved

	m.publish(ctx, events.NewUnitsMerged(saved.ID, absorbed.ID, result.GainedNeighbors, m.now()))

	m.logger.Info("Units merged",
		zap.String("primaryID", saved.ID),
		zap.String("absorbedID", absorbed.ID),
		zap.Int("gainedNeighbors", len(result.GainedNeighbors)),
		zap.Int("skipped", len(skipped(result.Outcomes))),
		zap.Bool("propagated", result.Propagated),
	)

	return result, nil
}
