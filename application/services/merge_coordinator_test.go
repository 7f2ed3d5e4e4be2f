package services

import (
	"context"
	"testing"

	"districtgraph/application/ports"
	"districtgraph/domain/core/entities"
	"districtgraph/domain/core/valueobjects"
	pkgerrors "districtgraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mergeFixture(t *testing.T) *engine {
	return newEngine(t,
		unit("P", "Q", "R", "X"),
		unit("Q", "P"),
		unit("R", "P", "X"),
		unit("S", "X"),
		unit("X", "R", "S", "P"),
	)
}

func TestMergeUnits_RewiresNeighborsAndDeletesAbsorbed(t *testing.T) {
	ctx := context.Background()
	e := mergeFixture(t)

	result, err := e.merger.MergeUnits(ctx, MergeRequest{PrimaryID: "P", AbsorbedID: "X"})
	require.NoError(t, err)

	assert.Equal(t, "X", result.AbsorbedID)
	assert.Equal(t, []string{"S"}, result.GainedNeighbors)
	assert.Equal(t, []string{"Q", "R", "S"}, result.Unit.AdjacentIDs.Sorted())
	assert.False(t, result.Propagated)

	_, err = e.units.Get(ctx, "X")
	assert.True(t, pkgerrors.IsNotFound(err))

	assert.Equal(t, []string{"Q", "R", "S"}, e.get(t, "P").AdjacentIDs.Sorted())
	assert.Equal(t, []string{"P"}, e.get(t, "R").AdjacentIDs.Strings())
	assert.Equal(t, []string{"P"}, e.get(t, "S").AdjacentIDs.Strings())
	assert.Equal(t, []string{"P"}, e.get(t, "Q").AdjacentIDs.Strings())
	assert.Zero(t, e.units.putsTo("Q"))

	report, err := e.auditor.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "%+v", report)
}

func TestMergeUnits_PreservesNeighborUnion(t *testing.T) {
	ctx := context.Background()
	e := mergeFixture(t)
	before := append(e.get(t, "P").AdjacentIDs.Clone(), e.get(t, "X").AdjacentIDs...)

	result, err := e.merger.MergeUnits(ctx, MergeRequest{PrimaryID: "P", AbsorbedID: "X"})
	require.NoError(t, err)

	for _, id := range valueobjects.NewIDSet(before...) {
		if id == "P" || id == "X" {
			continue
		}
		assert.True(t, result.Unit.IsAdjacentTo(id), "lost neighbour %s", id)
	}
	assert.False(t, result.Unit.IsAdjacentTo("P"))
	assert.False(t, result.Unit.IsAdjacentTo("X"))
}

func TestMergeUnits_PropagatesDemographicsIntoPrimaryGroup(t *testing.T) {
	ctx := context.Background()
	e := mergeFixture(t)
	snapshot := valueobjects.Demographics{valueobjects.White: 10, valueobjects.Others: 5}

	result, err := e.merger.MergeUnitList(ctx, []string{"P", "X"}, snapshot)
	require.NoError(t, err)
	assert.True(t, result.Propagated)

	group, err := e.groups.Get(ctx, "G")
	require.NoError(t, err)
	assert.Equal(t, snapshot, group.DemographicTotals)
	assert.Equal(t, "S", group.StateID)
	assert.Nil(t, e.get(t, "P").Demographics)
}

func TestMergeUnits_SkipsUnresolvedNeighbors(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, unit("P", "X"), unit("X", "P", "GONE"))

	result, err := e.merger.MergeUnits(ctx, MergeRequest{PrimaryID: "P", AbsorbedID: "X"})
	require.NoError(t, err)

	assert.Equal(t, []NeighborOutcome{
		{NeighborID: "GONE", Phase: PhaseMerge, Status: StatusSkippedNotFound},
	}, result.Outcomes)
	assert.Empty(t, result.Unit.AdjacentIDs)
}

func TestMergeUnitList_Validation(t *testing.T) {
	e := mergeFixture(t)

	tests := []struct {
		name string
		ids  []string
	}{
		{name: "no ids", ids: nil},
		{name: "one id", ids: []string{"P"}},
		{name: "three ids", ids: []string{"P", "X", "Q"}},
		{name: "empty id", ids: []string{"P", ""}},
		{name: "same id", ids: []string{"P", "P"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.merger.MergeUnitList(context.Background(), tt.ids, nil)
			assert.True(t, pkgerrors.IsInvalidArgument(err), "got %v", err)
		})
	}
	assert.Zero(t, e.units.putsTo("P"))
}

func TestMergeUnits_RejectsNegativeDemographics(t *testing.T) {
	e := mergeFixture(t)

	_, err := e.merger.MergeUnits(context.Background(), MergeRequest{
		PrimaryID:    "P",
		AbsorbedID:   "X",
		Demographics: valueobjects.Demographics{valueobjects.Asian: -2},
	})

	assert.True(t, pkgerrors.IsInvalidArgument(err))
}

func TestMergeUnits_MissingUnitIsNotFound(t *testing.T) {
	e := mergeFixture(t)

	_, err := e.merger.MergeUnits(context.Background(), MergeRequest{PrimaryID: "P", AbsorbedID: "NOPE"})
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = e.merger.MergeUnits(context.Background(), MergeRequest{PrimaryID: "NOPE", AbsorbedID: "X"})
	assert.True(t, pkgerrors.IsNotFound(err))

	e.get(t, "X")
}

func TestMergeUnits_DeleteFailureAborts(t *testing.T) {
	ctx := ports.WithFreshReads(context.Background())
	repo := new(MockUnitRepository)
	propagator := NewDemographicPropagator(new(MockGroupRepository), zap.NewNop())
	merger := NewMergeCoordinator(repo, propagator, zap.NewNop())

	repo.On("Get", ctx, "P").Return(unit("P", "X"), nil)
	repo.On("Get", ctx, "X").Return(unit("X", "P", "S"), nil)
	repo.On("GetMany", ctx, []string{"S"}).Return(map[string]*entities.Unit{"S": unit("S", "X")}, nil)
	repo.On("Put", ctx, unitWithID("S")).Return(nil)
	repo.On("Delete", ctx, "X").Return(pkgerrors.NewStoreFailureError("delete", assert.AnError))

	_, err := merger.MergeUnits(ctx, MergeRequest{PrimaryID: "P", AbsorbedID: "X"})

	assert.True(t, pkgerrors.IsStoreFailure(err))
	repo.AssertCalled(t, "Put", ctx, mock.MatchedBy(func(u *entities.Unit) bool {
		return u.ID == "S" && u.IsAdjacentTo("P") && !u.IsAdjacentTo("X")
	}))
	repo.AssertNotCalled(t, "Put", ctx, unitWithID("P"))
	repo.AssertExpectations(t)
}
