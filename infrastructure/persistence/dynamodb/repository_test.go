package dynamodb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"districtgraph/domain/core/entities"
	"districtgraph/domain/core/valueobjects"
	pkgerrors "districtgraph/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testTable = "districtgraph-test"

// fakeDynamo serves GetItem, BatchGetItem, DeleteItem and Scan from a map
// keyed by PK. UpdateItem records its input and echoes the attributes the
// test prepared.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	batchCalls   int
	withholdOnce bool
	updates      []*dynamodb.UpdateItemInput
	updateResult map[string]types.AttributeValue
	scanPageSize int
	err          error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDynamo) seedUnit(t *testing.T, u *entities.Unit) {
	t.Helper()
	av, err := attributevalue.MarshalMap(toUnitItem(u))
	require.NoError(t, err)
	f.items[unitPK(u.ID)] = av
}

func pkOf(key map[string]types.AttributeValue) string {
	return key["PK"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[pkOf(in.Key)]}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{Attributes: f.updateResult}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, pkOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++

	keys := in.RequestItems[testTable].Keys
	if len(keys) > batchGetLimit {
		return nil, fmt.Errorf("too many keys: %d", len(keys))
	}

	out := &dynamodb.BatchGetItemOutput{
		Responses:       map[string][]map[string]types.AttributeValue{},
		UnprocessedKeys: map[string]types.KeysAndAttributes{},
	}
	if f.withholdOnce && len(keys) > 1 {
		f.withholdOnce = false
		out.UnprocessedKeys[testTable] = types.KeysAndAttributes{Keys: keys[1:]}
		keys = keys[:1]
	}
	for _, key := range keys {
		if item, ok := f.items[pkOf(key)]; ok {
			out.Responses[testTable] = append(out.Responses[testTable], item)
		}
	}
	return out, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var pks []string
	for pk := range f.items {
		if strings.HasPrefix(pk, "UNIT#") {
			pks = append(pks, pk)
		}
	}
	// stable pages
	for i := 1; i < len(pks); i++ {
		for j := i; j > 0 && pks[j] < pks[j-1]; j-- {
			pks[j], pks[j-1] = pks[j-1], pks[j]
		}
	}

	start := 0
	if in.ExclusiveStartKey != nil {
		last := pkOf(in.ExclusiveStartKey)
		for i, pk := range pks {
			if pk == last {
				start = i + 1
			}
		}
	}
	end := len(pks)
	if f.scanPageSize > 0 && start+f.scanPageSize < end {
		end = start + f.scanPageSize
	}

	out := &dynamodb.ScanOutput{}
	for _, pk := range pks[start:end] {
		out.Items = append(out.Items, f.items[pk])
	}
	if end < len(pks) {
		out.LastEvaluatedKey = buildKey(pks[end-1])
	}
	return out, nil
}

func newTestUnitRepo(f *fakeDynamo) *UnitRepository {
	return NewUnitRepository(f, testTable, zap.NewNop())
}

func TestUnitRepository_GetMissingIsNotFound(t *testing.T) {
	repo := newTestUnitRepo(newFakeDynamo())

	_, err := repo.Get(context.Background(), "A")

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestUnitRepository_GetMapsStoredItem(t *testing.T) {
	f := newFakeDynamo()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.seedUnit(t, &entities.Unit{
		ID:             "A",
		GroupID:        "G",
		StateID:        "S",
		CanonicalName:  "Precinct A",
		AdjacentIDs:    valueobjects.NewIDSet("B", "C"),
		EnclosingIDs:   valueobjects.NewIDSet("Z"),
		Ghost:          true,
		MultipleBorder: true,
		Coordinates:    "[[0,0],[1,1]]",
		ElectionData:   map[string]int{"pres2016D": 120},
		LogBag:         map[int]string{1: "split", 2: "merged"},
		CreatedAt:      created,
		UpdatedAt:      created,
	})
	repo := newTestUnitRepo(f)

	got, err := repo.Get(context.Background(), "A")
	require.NoError(t, err)

	assert.Equal(t, "G", got.GroupID)
	assert.Equal(t, "Precinct A", got.CanonicalName)
	assert.Equal(t, []string{"B", "C"}, got.AdjacentIDs.Strings())
	assert.Equal(t, []string{"Z"}, got.EnclosingIDs.Strings())
	assert.True(t, got.Ghost)
	assert.True(t, got.MultipleBorder)
	assert.Equal(t, map[string]int{"pres2016D": 120}, got.ElectionData)
	assert.Equal(t, map[int]string{1: "split", 2: "merged"}, got.LogBag)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Nil(t, got.Demographics)
}

func TestUnitRepository_PutBuildsUpsert(t *testing.T) {
	f := newFakeDynamo()
	unit := &entities.Unit{
		ID:                 "A",
		GroupID:            "G",
		AdjacentIDs:        valueobjects.NewIDSet("B"),
		Demographics:       valueobjects.Demographics{"white": 1},
		RecomputeAggregate: true,
	}
	echo, err := attributevalue.MarshalMap(toUnitItem(unit))
	require.NoError(t, err)
	f.updateResult = echo
	repo := newTestUnitRepo(f)

	saved, err := repo.Put(context.Background(), unit)
	require.NoError(t, err)

	require.Len(t, f.updates, 1)
	in := f.updates[0]
	assert.Equal(t, testTable, *in.TableName)
	assert.Equal(t, "UNIT#A", pkOf(in.Key))
	assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
	assert.Contains(t, *in.UpdateExpression, "if_not_exists")

	var names []string
	for _, name := range in.ExpressionAttributeNames {
		names = append(names, name)
	}
	assert.Contains(t, names, "AdjacentIDs")
	assert.Contains(t, names, "CreatedAt")
	assert.NotContains(t, names, "Demographics")
	assert.NotContains(t, names, "RecomputeAggregate")

	assert.Equal(t, "A", saved.ID)
	assert.Equal(t, []string{"B"}, saved.AdjacentIDs.Strings())
}

func TestUnitRepository_PutRejectsEmptyID(t *testing.T) {
	repo := newTestUnitRepo(newFakeDynamo())

	_, err := repo.Put(context.Background(), &entities.Unit{})

	assert.True(t, pkgerrors.IsInvalidArgument(err))
}

func TestUnitRepository_GetManyChunksAndSkipsUnknown(t *testing.T) {
	f := newFakeDynamo()
	var ids []string
	for i := 0; i < 250; i++ {
		id := fmt.Sprintf("U%03d", i)
		ids = append(ids, id)
		if i%2 == 0 {
			f.seedUnit(t, &entities.Unit{ID: id, GroupID: "G"})
		}
	}
	repo := newTestUnitRepo(f)

	found, err := repo.GetMany(context.Background(), append(ids, "U000"))
	require.NoError(t, err)

	assert.Len(t, found, 125)
	assert.Contains(t, found, "U000")
	assert.NotContains(t, found, "U001")
	assert.Equal(t, 3, f.batchCalls)
}

func TestUnitRepository_GetManyRetriesUnprocessedKeys(t *testing.T) {
	f := newFakeDynamo()
	f.withholdOnce = true
	f.seedUnit(t, &entities.Unit{ID: "A", GroupID: "G"})
	f.seedUnit(t, &entities.Unit{ID: "B", GroupID: "G"})
	f.seedUnit(t, &entities.Unit{ID: "C", GroupID: "G"})
	repo := newTestUnitRepo(f)

	found, err := repo.GetMany(context.Background(), []string{"A", "B", "C"})
	require.NoError(t, err)

	assert.Len(t, found, 3)
	assert.Equal(t, 2, f.batchCalls)
}

func TestUnitRepository_GetManyEmpty(t *testing.T) {
	f := newFakeDynamo()
	repo := newTestUnitRepo(f)

	found, err := repo.GetMany(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, found)
	assert.Zero(t, f.batchCalls)
}

func TestUnitRepository_ListPaginates(t *testing.T) {
	f := newFakeDynamo()
	f.scanPageSize = 2
	for _, id := range []string{"A", "B", "C", "D", "E"} {
		f.seedUnit(t, &entities.Unit{ID: id, GroupID: "G"})
	}
	f.items[groupPK("G")] = map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: groupPK("G")},
	}
	repo := newTestUnitRepo(f)

	units, err := repo.List(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, ids)
}

func TestUnitRepository_DeleteIsIdempotent(t *testing.T) {
	f := newFakeDynamo()
	f.seedUnit(t, &entities.Unit{ID: "A", GroupID: "G"})
	repo := newTestUnitRepo(f)

	require.NoError(t, repo.Delete(context.Background(), "A"))
	require.NoError(t, repo.Delete(context.Background(), "A"))

	_, err := repo.Get(context.Background(), "A")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStoreError_ClassifiesAPIErrors(t *testing.T) {
	f := newFakeDynamo()
	f.err = &smithy.GenericAPIError{
		Code:    "ProvisionedThroughputExceededException",
		Message: "slow down",
		Fault:   smithy.FaultClient,
	}
	repo := newTestUnitRepo(f)

	_, err := repo.Get(context.Background(), "A")

	require.True(t, pkgerrors.IsStoreFailure(err))
	appErr := pkgerrors.GetAppError(err)
	assert.Equal(t, "ProvisionedThroughputExceededException", appErr.Code)
	assert.Equal(t, true, appErr.Details["throttled"])
}

func TestGroupRepository_GetAndPut(t *testing.T) {
	ctx := context.Background()
	f := newFakeDynamo()
	repo := NewGroupRepository(f, testTable, zap.NewNop())

	_, err := repo.Get(ctx, "G")
	assert.True(t, pkgerrors.IsNotFound(err))

	echo, err := attributevalue.MarshalMap(groupItem{
		PK:                groupPK("G"),
		SK:                metadataSK,
		EntityType:        entityTypeGroup,
		GroupID:           "G",
		StateID:           "S",
		DemographicTotals: map[string]int{"white": 10, "others": 5},
	})
	require.NoError(t, err)
	f.updateResult = echo
	f.items[groupPK("G")] = echo

	group := entities.NewGroup("G", "S")
	group.ReplaceTotals(valueobjects.Demographics{"white": 10, "others": 5})
	saved, err := repo.Put(ctx, group)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.Demographics{"white": 10, "others": 5}, saved.DemographicTotals)
	assert.Equal(t, "GROUP#G", pkOf(f.updates[0].Key))

	got, err := repo.Get(ctx, "G")
	require.NoError(t, err)
	assert.Equal(t, "S", got.StateID)
	assert.Equal(t, valueobjects.Demographics{"white": 10, "others": 5}, got.DemographicTotals)
}
