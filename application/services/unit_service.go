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

// UnitService covers the unit lifecycle outside reconcile and merge: first
// insertion, reads and deletion.
type UnitService struct {
	unitRepo   ports.UnitRepository
	groupRepo  ports.GroupRepository
	propagator *DemographicPropagator
	instrumentation
}

// NewUnitService creates a new unit service
func NewUnitService(
	unitRepo ports.UnitRepository,
	groupRepo ports.GroupRepository,
	propagator *DemographicPropagator,
	logger *zap.Logger,
	opts ...Option,
) *UnitService {
	return &UnitService{
		unitRepo:        unitRepo,
		groupRepo:       groupRepo,
		propagator:      propagator,
		instrumentation: newInstrumentation(logger, opts),
	}
}

// CreateUnit inserts a new unit. A missing id is generated. The unit's group
// is created when the store does not have it yet, and every resolvable
// neighbour gains a back reference to the new unit.
func (s *UnitService) CreateUnit(ctx context.Context, unit *entities.Unit) (*entities.Unit, error) {
	var created *entities.Unit
	err := s.run(ctx, "CreateUnit", func(ctx context.Context) error {
		var err error
		created, err = s.create(ctx, unit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *UnitService) create(ctx context.Context, input *entities.Unit) (*entities.Unit, error) {
	if input == nil {
		return nil, pkgerrors.NewInvalidArgumentError("unit cannot be nil")
	}
	unit := input.Clone()
	unit.Normalize()
	if unit.ID == "" {
		unit.ID = valueobjects.NewUnitID()
	}
	if err := unit.Validate(); err != nil {
		return nil, err
	}
	if unit.GroupID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("group id is required")
	}

	_, err := s.unitRepo.Get(ctx, unit.ID)
	switch {
	case err == nil:
		return nil, pkgerrors.NewConflictError(fmt.Sprintf("unit %q already exists", unit.ID))
	case !pkgerrors.IsNotFound(err):
		return nil, pkgerrors.Wrap(err, "failed to check for existing unit")
	}

	group, groupCreated, err := s.propagator.ResolveGroup(ctx, unit.GroupID, unit.StateID)
	if err != nil {
		return nil, err
	}

	switch {
	case unit.HasSnapshot():
		if err := s.propagator.PropagateDemographics(ctx, unit, group); err != nil {
			return nil, err
		}
	case groupCreated:
		// No snapshot: the new group starts with empty totals
		if _, err := s.groupRepo.Put(ctx, group); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to create group")
		}
	}

	saved, err := s.unitRepo.Put(ctx, unit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to persist unit")
	}

	outcomes, err := s.notifyNeighbors(ctx, saved)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewUnitCreated(saved.ID, saved.GroupID, saved.AdjacentIDs.Strings(), s.now()))

	s.logger.Info("Unit created",
		zap.String("unitID", saved.ID),
		zap.String("groupID", saved.GroupID),
		zap.Bool("groupCreated", groupCreated),
		zap.Int("neighbors", len(outcomes)),
		zap.Int("skipped", len(skipped(outcomes))),
	)

	return saved, nil
}

// notifyNeighbors adds the new unit to each neighbour that lacks it
func (s *UnitService) notifyNeighbors(ctx context.Context, unit *entities.Unit) ([]NeighborOutcome, error) {
	if unit.AdjacentIDs.Len() == 0 {
		return nil, nil
	}

	neighbors, err := s.unitRepo.GetMany(ctx, unit.AdjacentIDs.Strings())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to resolve neighbors")
	}

	outcomes := make([]NeighborOutcome, 0, unit.AdjacentIDs.Len())
	for _, id := range unit.AdjacentIDs {
		outcome := NeighborOutcome{NeighborID: id, Phase: PhaseCreate}

		neighbor, ok := neighbors[id]
		switch {
		case !ok:
			outcome.Status = StatusSkippedNotFound
		case !neighbor.AddAdjacent(unit.ID):
			outcome.Status = StatusUnchanged
		default:
			if _, err := s.unitRepo.Put(ctx, neighbor); err != nil {
				return outcomes, pkgerrors.Wrapf(err, "failed to persist neighbor %q", id)
			}
			outcome.Status = StatusApplied
		}

		outcomes = append(outcomes, outcome)
		s.recordOutcome(ctx, outcome)
	}
	return outcomes, nil
}

// GetUnit retrieves a unit by its ID
func (s *UnitService) GetUnit(ctx context.Context, id string) (*entities.Unit, error) {
	if id == "" {
		return nil, pkgerrors.NewInvalidArgumentError("unit id cannot be empty")
	}
	unit, err := s.unitRepo.Get(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get unit")
	}
	return unit, nil
}

// GetGroup retrieves a group by its ID
func (s *UnitService) GetGroup(ctx context.Context, id string) (*entities.Group, error) {
	if id == "" {
		return nil, pkgerrors.NewInvalidArgumentError("group id cannot be empty")
	}
	group, err := s.groupRepo.Get(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get group")
	}
	return group, nil
}

// DeleteUnit removes a unit. Neighbours keep their references to it; the
// auditor reports them as dangling.
func (s *UnitService) DeleteUnit(ctx context.Context, id string) error {
	return s.run(ctx, "DeleteUnit", func(ctx context.Context) error {
		if id == "" {
			return pkgerrors.NewInvalidArgumentError("unit id cannot be empty")
		}
		if err := s.unitRepo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(err, "failed to delete unit")
		}

		s.publish(ctx, events.NewUnitDeleted(id, s.now()))
		s.logger.Info("Unit deleted", zap.String("unitID", id))
		return nil
	})
}
