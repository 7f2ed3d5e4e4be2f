package services

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"districtgraph/application/ports"
	"districtgraph/domain/core/entities"
	"districtgraph/domain/core/valueobjects"
	"districtgraph/infrastructure/cache"
	"districtgraph/infrastructure/persistence/decorators"
	"districtgraph/infrastructure/persistence/memory"
	pkgerrors "districtgraph/pkg/errors"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReconcileUnit_SwapsNeighbors(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t,
		unit("A", "B", "C"),
		unit("B", "A"),
		unit("C", "A"),
		unit("D"),
	)

	result, err := e.reconciler.ReconcileUnit(ctx, unit("A", "C", "D"))
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, result.Removed)
	assert.Equal(t, []string{"D"}, result.Added)
	assert.Equal(t, []NeighborOutcome{
		{NeighborID: "B", Phase: PhaseRemoved, Status: StatusApplied},
		{NeighborID: "D", Phase: PhaseAdded, Status: StatusApplied},
	}, result.Outcomes)
	assert.False(t, result.Propagated)

	assert.Empty(t, e.get(t, "B").AdjacentIDs)
	assert.Equal(t, []string{"A"}, e.get(t, "C").AdjacentIDs.Strings())
	assert.Equal(t, []string{"A"}, e.get(t, "D").AdjacentIDs.Strings())
	assert.Equal(t, []string{"C", "D"}, e.get(t, "A").AdjacentIDs.Sorted())
	assert.Zero(t, e.units.putsTo("C"), "unaffected neighbour must not be rewritten")
	e.assertSymmetric(t)
}

func TestReconcileUnit_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, unit("A", "B", "C"), unit("B", "A"), unit("C", "A"), unit("D"))

	_, err := e.reconciler.ReconcileUnit(ctx, unit("A", "C", "D"))
	require.NoError(t, err)
	e.units.reset()

	result, err := e.reconciler.ReconcileUnit(ctx, unit("A", "D", "C"))
	require.NoError(t, err)

	assert.Empty(t, result.Outcomes)
	assert.Equal(t, 1, e.units.putsTo("A"))
	for _, id := range []string{"B", "C", "D"} {
		assert.Zero(t, e.units.putsTo(id), id)
	}
}

func TestReconcileUnit_ReorderedListIsUnchanged(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, unit("A", "C", "B"), unit("B", "A"), unit("C", "A"))

	result, err := e.reconciler.ReconcileUnit(ctx, unit("A", "B", "C"))
	require.NoError(t, err)

	assert.Empty(t, result.Removed)
	assert.Empty(t, result.Added)
	assert.Empty(t, result.Outcomes)
	assert.Zero(t, e.units.putsTo("B"))
	assert.Zero(t, e.units.putsTo("C"))
	assert.Equal(t, 1, e.units.putsTo("A"))
}

func TestReconcileUnit_RepeatedIncomingIDs(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, unit("A", "B", "C", "D"), unit("B", "A"), unit("C", "A"), unit("D", "A"))
	incoming := unit("A")
	incoming.AdjacentIDs = valueobjects.IDSet{"B", "B", "C"}

	result, err := e.reconciler.ReconcileUnit(ctx, incoming)
	require.NoError(t, err)

	assert.Equal(t, []string{"D"}, result.Removed)
	assert.Empty(t, result.Added)
	assert.Equal(t, []NeighborOutcome{
		{NeighborID: "D", Phase: PhaseRemoved, Status: StatusApplied},
	}, result.Outcomes)
	assert.Equal(t, valueobjects.IDSet{"B", "C"}, e.get(t, "A").AdjacentIDs)
	assert.Empty(t, e.get(t, "D").AdjacentIDs)
	assert.Zero(t, e.units.putsTo("B"))
	e.assertSymmetric(t)
}

func TestReconcileUnit_DiffsAgainstStoreNotCache(t *testing.T) {
	ctx := context.Background()
	c := cache.NewInMemoryCache(time.Hour)
	defer c.Close()
	// The cached copy of A predates its link to B
	require.NoError(t, c.Set(ctx, "unit:A", []byte(`{"unitId":"A","groupId":"G","adjacentIds":[]}`), 60))
	units := decorators.NewCachingUnitRepository(memory.NewUnitStore(unit("A", "B"), unit("B", "A")), c, 60, zap.NewNop())
	reconciler := NewAdjacencyReconciler(units, NewDemographicPropagator(memory.NewGroupStore(), zap.NewNop()), zap.NewNop())

	result, err := reconciler.ReconcileUnit(ctx, unit("A"))
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, result.Removed)
	b, err := units.Get(ctx, "B")
	require.NoError(t, err)
	assert.Empty(t, b.AdjacentIDs)
}

func TestReconcileUnit_UnknownUnitIsNotFound(t *testing.T) {
	e := newEngine(t)

	_, err := e.reconciler.ReconcileUnit(context.Background(), unit("ghost", "A"))

	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Zero(t, e.units.putsTo("ghost"))
}

func TestReconcileUnit_RejectsInvalidInput(t *testing.T) {
	e := newEngine(t, unit("A"))
	negative := unit("A")
	negative.RecomputeAggregate = true
	negative.Demographics = valueobjects.Demographics{valueobjects.White: -1}

	flagOnly := unit("A")
	flagOnly.RecomputeAggregate = true

	tests := []struct {
		name     string
		incoming *entities.Unit
	}{
		{name: "nil unit", incoming: nil},
		{name: "recompute without demographics", incoming: flagOnly},
		{name: "empty id", incoming: unit("", "B")},
		{name: "self adjacency", incoming: unit("A", "B", "A")},
		{name: "negative demographics", incoming: negative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.reconciler.ReconcileUnit(context.Background(), tt.incoming)
			assert.True(t, pkgerrors.IsInvalidArgument(err), "got %v", err)
		})
	}
}

func TestReconcileUnit_SkipsUnresolvedNeighbors(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, unit("A"), unit("B"))

	result, err := e.reconciler.ReconcileUnit(ctx, unit("A", "B", "Z"))
	require.NoError(t, err)

	assert.Equal(t, []NeighborOutcome{
		{NeighborID: "B", Phase: PhaseAdded, Status: StatusApplied},
		{NeighborID: "Z", Phase: PhaseAdded, Status: StatusSkippedNotFound},
	}, result.Outcomes)
	// The unit keeps the unresolved id verbatim
	assert.Equal(t, []string{"B", "Z"}, e.get(t, "A").AdjacentIDs.Sorted())
	assert.Equal(t, []string{"A"}, e.get(t, "B").AdjacentIDs.Strings())
}

func TestReconcileUnit_NeighborAlreadyMatchingIsUnchanged(t *testing.T) {
	ctx := context.Background()
	// B already lists A although A does not list B
	e := newEngine(t, unit("A"), unit("B", "A"))

	result, err := e.reconciler.ReconcileUnit(ctx, unit("A", "B"))
	require.NoError(t, err)

	assert.Equal(t, []NeighborOutcome{
		{NeighborID: "B", Phase: PhaseAdded, Status: StatusUnchanged},
	}, result.Outcomes)
	assert.Zero(t, e.units.putsTo("B"))
}

func TestReconcileUnit_GroupIsInheritedAndCannotChange(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, unit("A"))

	incoming := unit("A")
	incoming.GroupID = ""
	result, err := e.reconciler.ReconcileUnit(ctx, incoming)
	require.NoError(t, err)
	assert.Equal(t, "G", result.Unit.GroupID)

	moved := unit("A")
	moved.GroupID = "OTHER"
	_, err = e.reconciler.ReconcileUnit(ctx, moved)
	assert.True(t, pkgerrors.IsInvalidArgument(err))
	assert.Equal(t, "G", e.get(t, "A").GroupID)
}

func TestReconcileUnit_PropagatesFlaggedSnapshot(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, unit("A", "B"), unit("B", "A"))

	incoming := unit("A", "B")
	incoming.RecomputeAggregate = true
	incoming.Demographics = valueobjects.Demographics{valueobjects.White: 7}

	result, err := e.reconciler.ReconcileUnit(ctx, incoming)
	require.NoError(t, err)
	assert.True(t, result.Propagated)
	assert.Empty(t, result.Outcomes)

	group, err := e.groups.Get(ctx, "G")
	require.NoError(t, err)
	assert.Equal(t, valueobjects.Demographics{valueobjects.White: 7}, group.DemographicTotals)

	stored := e.get(t, "A")
	assert.Nil(t, stored.Demographics)
	assert.False(t, stored.RecomputeAggregate)
}

func TestReconcileUnit_DoesNotMutateInput(t *testing.T) {
	e := newEngine(t, unit("A", "B"), unit("B", "A"))
	incoming := unit("A")
	incoming.GroupID = ""

	_, err := e.reconciler.ReconcileUnit(context.Background(), incoming)
	require.NoError(t, err)

	assert.Empty(t, incoming.GroupID)
}

func TestReconcileUnit_StoreFailureAborts(t *testing.T) {
	ctx := ports.WithFreshReads(context.Background())
	repo := new(MockUnitRepository)
	groups := new(MockGroupRepository)
	propagator := NewDemographicPropagator(groups, zap.NewNop())
	reconciler := NewAdjacencyReconciler(repo, propagator, zap.NewNop())

	storeErr := pkgerrors.NewStoreFailureError("put", assert.AnError)

	repo.On("Get", ctx, "A").Return(unit("A", "B", "C"), nil)
	repo.On("GetMany", ctx, []string{"B", "C"}).Return(map[string]*entities.Unit{
		"B": unit("B", "A"),
		"C": unit("C", "A"),
	}, nil)
	repo.On("Put", ctx, unitWithID("B")).Return(storeErr)

	result, err := reconciler.ReconcileUnit(ctx, unit("A"))

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, pkgerrors.IsStoreFailure(err))
	repo.AssertNotCalled(t, "Put", ctx, unitWithID("C"))
	repo.AssertNotCalled(t, "Put", ctx, unitWithID("A"))
	repo.AssertExpectations(t)
}

func TestReconcileUnit_PublishFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, unit("A"), unit("B"))
	publisher := new(MockEventPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(assert.AnError)
	reconciler := NewAdjacencyReconciler(e.units, e.propagator, zap.NewNop(), WithPublisher(publisher))

	_, err := reconciler.ReconcileUnit(ctx, unit("A", "B"))

	require.NoError(t, err)
	publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestReconcileUnit_RandomSequencesStaySymmetric(t *testing.T) {
	ctx := context.Background()
	ids := []string{"U0", "U1", "U2", "U3", "U4", "U5", "U6", "U7"}
	seed := make([]*entities.Unit, 0, len(ids))
	for _, id := range ids {
		seed = append(seed, unit(id))
	}
	e := newEngine(t, seed...)
	rng := rand.New(rand.NewSource(42))

	for step := 0; step < 200; step++ {
		target := ids[rng.Intn(len(ids))]
		var adjacent []string
		for _, id := range ids {
			if id != target && rng.Intn(3) == 0 {
				adjacent = append(adjacent, id)
			}
		}

		_, err := e.reconciler.ReconcileUnit(ctx, unit(target, adjacent...))
		require.NoError(t, err)

		got := e.get(t, target).AdjacentIDs
		if diff := cmp.Diff(valueobjects.NewIDSet(adjacent...).Sorted(), got.Sorted()); diff != "" {
			t.Fatalf("step %d: unit %s adjacency mismatch (-want +got):\n%s", step, target, diff)
		}
		e.assertSymmetric(t)
	}
}
