package services

import (
	"context"
	"fmt"

	"districtgraph/application/ports"
	"districtgraph/domain/core/entities"
	"districtgraph/domain/events"
	pkgerrors "districtgraph/pkg/errors"

	"go.uber.org/zap"
)

// DemographicPropagator folds a unit's demographic snapshot into its group.
// The snapshot replaces the group totals; it is never added to them.
type DemographicPropagator struct {
	groupRepo ports.GroupRepository
	instrumentation
}

// NewDemographicPropagator creates a new demographic propagator
func NewDemographicPropagator(
	groupRepo ports.GroupRepository,
	logger *zap.Logger,
	opts ...Option,
) *DemographicPropagator {
	return &DemographicPropagator{
		groupRepo:       groupRepo,
		instrumentation: newInstrumentation(logger, opts),
	}
}

// ResolveGroup returns the stored group, or a new unsaved group seeded with
// groupID and stateID when the store does not know it. created reports which.
func (p *DemographicPropagator) ResolveGroup(ctx context.Context, groupID, stateID string) (group *entities.Group, created bool, err error) {
	if groupID == "" {
		return nil, false, pkgerrors.NewInvalidArgumentError("group id cannot be empty")
	}

	group, err = p.groupRepo.Get(ctx, groupID)
	switch {
	case err == nil:
		return group, false, nil
	case pkgerrors.IsNotFound(err):
		p.logger.Debug("Group not stored, creating lazily",
			zap.String("groupID", groupID),
			zap.String("stateID", stateID),
		)
		return entities.NewGroup(groupID, stateID), true, nil
	default:
		return nil, false, pkgerrors.Wrap(err, "failed to resolve group")
	}
}

// PropagateDemographics overwrites group's totals with a copy of the unit's
// snapshot and persists the group. group is updated in place.
func (p *DemographicPropagator) PropagateDemographics(ctx context.Context, unit *entities.Unit, group *entities.Group) error {
	return p.run(ctx, "PropagateDemographics", func(ctx context.Context) error {
		if unit == nil || group == nil {
			return pkgerrors.NewInvalidArgumentError("unit and group are required")
		}
		if !unit.HasSnapshot() {
			return pkgerrors.NewInvalidArgumentError(
				fmt.Sprintf("unit %q carries no demographic snapshot", unit.ID))
		}
		if err := unit.Demographics.Validate(); err != nil {
			return pkgerrors.NewInvalidArgumentError(err.Error())
		}

		group.ReplaceTotals(unit.Demographics)

		saved, err := p.groupRepo.Put(ctx, group)
		if err != nil {
			return pkgerrors.Wrap(err, "failed to persist group totals")
		}
		*group = *saved

		p.logger.Debug("Replaced group demographic totals",
			zap.String("groupID", group.ID),
			zap.String("unitID", unit.ID),
			zap.Int("total", group.DemographicTotals.Total()),
		)

		p.recorder.RecordPropagation(ctx, group.ID)
		p.publish(ctx, events.NewGroupDemographicsReplaced(
			group.ID, unit.ID, group.DemographicTotals.Clone(), p.now()))
		return nil
	})
}

// propagateInto resolves the unit's group and propagates the snapshot
func (p *DemographicPropagator) propagateInto(ctx context.Context, unit *entities.Unit) (*entities.Group, error) {
	group, _, err := p.ResolveGroup(ctx, unit.GroupID, unit.StateID)
	if err != nil {
		return nil, err
	}
	if err := p.PropagateDemographics(ctx, unit, group); err != nil {
		return nil, err
	}
	return group, nil
}
