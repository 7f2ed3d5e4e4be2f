package memory

import (
	"context"
	"sync"
	"testing"

	"districtgraph/domain/core/entities"
	"districtgraph/domain/core/valueobjects"
	pkgerrors "districtgraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitStore_GetMissingIsNotFound(t *testing.T) {
	store := NewUnitStore()

	_, err := store.Get(context.Background(), "nope")

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestUnitStore_PutDropsRequestFieldsAndCopies(t *testing.T) {
	ctx := context.Background()
	store := NewUnitStore()
	unit := &entities.Unit{
		ID:                 "A",
		GroupID:            "G",
		AdjacentIDs:        valueobjects.NewIDSet("B"),
		Demographics:       valueobjects.Demographics{"white": 3},
		RecomputeAggregate: true,
	}

	saved, err := store.Put(ctx, unit)
	require.NoError(t, err)
	unit.AdjacentIDs.Add("C")
	saved.AdjacentIDs.Add("D")

	got, err := store.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, valueobjects.IDSet{"B"}, got.AdjacentIDs)
	assert.Nil(t, got.Demographics)
	assert.False(t, got.RecomputeAggregate)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUnitStore_PutPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := NewUnitStore()

	first, err := store.Put(ctx, &entities.Unit{ID: "A"})
	require.NoError(t, err)
	second, err := store.Put(ctx, &entities.Unit{ID: "A", CanonicalName: "Ward 1"})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "Ward 1", second.CanonicalName)
}

func TestUnitStore_GetManySkipsUnknown(t *testing.T) {
	store := NewUnitStore(&entities.Unit{ID: "A"}, &entities.Unit{ID: "B"})

	found, err := store.GetMany(context.Background(), []string{"A", "Z", "B"})

	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Contains(t, found, "A")
	assert.NotContains(t, found, "Z")
}

func TestUnitStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewUnitStore(&entities.Unit{ID: "A"})

	require.NoError(t, store.Delete(ctx, "A"))
	require.NoError(t, store.Delete(ctx, "A"))
	assert.Equal(t, 0, store.Len())
}

func TestUnitStore_ListIsSorted(t *testing.T) {
	store := NewUnitStore(&entities.Unit{ID: "C"}, &entities.Unit{ID: "A"}, &entities.Unit{ID: "B"})

	units, err := store.List(context.Background())

	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{units[0].ID, units[1].ID, units[2].ID})
}

func TestUnitStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewUnitStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			_, _ = store.Put(ctx, &entities.Unit{ID: id})
			_, _ = store.Get(ctx, id)
			_, _ = store.List(ctx)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 26, store.Len())
}

func TestGroupStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewGroupStore()

	_, err := store.Get(ctx, "G")
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = store.Put(ctx, &entities.Group{ID: "G", DemographicTotals: valueobjects.Demographics{"white": 3}})
	require.NoError(t, err)

	got, err := store.Get(ctx, "G")
	require.NoError(t, err)
	assert.Equal(t, 3, got.DemographicTotals["white"])
}
