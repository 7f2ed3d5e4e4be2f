package dynamodb

import (
	"context"
	"strconv"
	"sync"
	"time"

	"districtgraph/application/ports"
	"districtgraph/domain/core/entities"
	"districtgraph/domain/core/valueobjects"
	pkgerrors "districtgraph/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxBatchAttempts   = 3
	batchConcurrency   = 4
	unprocessedBackoff = 50 * time.Millisecond
)

// unitItem is the stored shape of a unit. Demographics and the recompute
// flag are request scoped and have no attribute.
type unitItem struct {
	PK             string            `dynamodbav:"PK"`
	SK             string            `dynamodbav:"SK"`
	EntityType     string            `dynamodbav:"EntityType"`
	UnitID         string            `dynamodbav:"UnitID"`
	GroupID        string            `dynamodbav:"GroupID"`
	StateID        string            `dynamodbav:"StateID"`
	CanonicalName  string            `dynamodbav:"CanonicalName"`
	AdjacentIDs    []string          `dynamodbav:"AdjacentIDs"`
	EnclosingIDs   []string          `dynamodbav:"EnclosingIDs"`
	Ghost          bool              `dynamodbav:"Ghost"`
	MultipleBorder bool              `dynamodbav:"MultipleBorder"`
	Coordinates    string            `dynamodbav:"Coordinates"`
	ElectionData   map[string]int    `dynamodbav:"ElectionData"`
	LogBag         map[string]string `dynamodbav:"LogBag"`
	CreatedAt      time.Time         `dynamodbav:"CreatedAt"`
	UpdatedAt      time.Time         `dynamodbav:"UpdatedAt"`
}

func toUnitItem(u *entities.Unit) unitItem {
	item := unitItem{
		PK:             unitPK(u.ID),
		SK:             metadataSK,
		EntityType:     entityTypeUnit,
		UnitID:         u.ID,
		GroupID:        u.GroupID,
		StateID:        u.StateID,
		CanonicalName:  u.CanonicalName,
		AdjacentIDs:    u.AdjacentIDs.Strings(),
		EnclosingIDs:   u.EnclosingIDs.Strings(),
		Ghost:          u.Ghost,
		MultipleBorder: u.MultipleBorder,
		Coordinates:    u.Coordinates,
		ElectionData:   u.ElectionData,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	if len(u.LogBag) > 0 {
		item.LogBag = make(map[string]string, len(u.LogBag))
		for seq, msg := range u.LogBag {
			item.LogBag[strconv.Itoa(seq)] = msg
		}
	}
	return item
}

func (item unitItem) toEntity() *entities.Unit {
	u := &entities.Unit{
		ID:             item.UnitID,
		GroupID:        item.GroupID,
		StateID:        item.StateID,
		CanonicalName:  item.CanonicalName,
		AdjacentIDs:    valueobjects.NewIDSet(item.AdjacentIDs...),
		EnclosingIDs:   valueobjects.NewIDSet(item.EnclosingIDs...),
		Ghost:          item.Ghost,
		MultipleBorder: item.MultipleBorder,
		Coordinates:    item.Coordinates,
		ElectionData:   item.ElectionData,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
	if len(item.LogBag) > 0 {
		u.LogBag = make(map[int]string, len(item.LogBag))
		for key, msg := range item.LogBag {
			seq, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			u.LogBag[seq] = msg
		}
	}
	return u
}

func parseUnit(av map[string]types.AttributeValue) (*entities.Unit, error) {
	var item unitItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, err
	}
	return item.toEntity(), nil
}

// UnitRepository implements ports.UnitRepository on DynamoDB
type UnitRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

var _ ports.UnitRepository = (*UnitRepository)(nil)

// NewUnitRepository creates a new DynamoDB unit repository
func NewUnitRepository(client API, tableName string, logger *zap.Logger) *UnitRepository {
	return &UnitRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Get retrieves a unit by its ID
func (r *UnitRepository) Get(ctx context.Context, id string) (*entities.Unit, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      tableName(r.tableName),
		Key:            buildKey(unitPK(id)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storeError("get unit", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError("unit", id)
	}

	unit, err := parseUnit(result.Item)
	if err != nil {
		return nil, storeError("parse unit", err)
	}
	return unit, nil
}

// GetMany resolves ids in chunks of 100 keys, fetched concurrently. Unknown
// ids are absent from the result.
func (r *UnitRepository) GetMany(ctx context.Context, ids []string) (map[string]*entities.Unit, error) {
	unique := valueobjects.NewIDSet(ids...)
	found := make(map[string]*entities.Unit, unique.Len())
	if unique.Len() == 0 {
		return found, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for start := 0; start < unique.Len(); start += batchGetLimit {
		end := start + batchGetLimit
		if end > unique.Len() {
			end = unique.Len()
		}
		chunk := unique[start:end]

		g.Go(func() error {
			units, err := r.batchGet(gctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, u := range units {
				found[u.ID] = u
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Debug("Resolved units",
		zap.Int("requested", unique.Len()),
		zap.Int("found", len(found)),
	)
	return found, nil
}

func (r *UnitRepository) batchGet(ctx context.Context, ids []string) ([]*entities.Unit, error) {
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, buildKey(unitPK(id)))
	}

	var units []*entities.Unit
	for attempt := 0; attempt < maxBatchAttempts && len(keys) > 0; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, storeError("batch get units", ctx.Err())
			case <-time.After(time.Duration(attempt) * unprocessedBackoff):
			}
		}

		result, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				r.tableName: {Keys: keys, ConsistentRead: aws.Bool(true)},
			},
		})
		if err != nil {
			return nil, storeError("batch get units", err)
		}

		for _, av := range result.Responses[r.tableName] {
			unit, err := parseUnit(av)
			if err != nil {
				return nil, storeError("parse unit", err)
			}
			units = append(units, unit)
		}

		keys = nil
		if pending, ok := result.UnprocessedKeys[r.tableName]; ok {
			keys = pending.Keys
		}
	}

	if len(keys) > 0 {
		return nil, pkgerrors.NewStoreFailureError("batch get units", nil).
			WithDetail("unprocessedKeys", len(keys))
	}
	return units, nil
}

// Put upserts a unit. CreatedAt is set on first write only.
func (r *UnitRepository) Put(ctx context.Context, unit *entities.Unit) (*entities.Unit, error) {
	if unit == nil || unit.ID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("unit id cannot be empty")
	}

	now := r.now()
	item := toUnitItem(unit)

	update := expression.
		Set(expression.Name("EntityType"), expression.Value(item.EntityType)).
		Set(expression.Name("UnitID"), expression.Value(item.UnitID)).
		Set(expression.Name("GroupID"), expression.Value(item.GroupID)).
		Set(expression.Name("StateID"), expression.Value(item.StateID)).
		Set(expression.Name("CanonicalName"), expression.Value(item.CanonicalName)).
		Set(expression.Name("AdjacentIDs"), expression.Value(item.AdjacentIDs)).
		Set(expression.Name("EnclosingIDs"), expression.Value(item.EnclosingIDs)).
		Set(expression.Name("Ghost"), expression.Value(item.Ghost)).
		Set(expression.Name("MultipleBorder"), expression.Value(item.MultipleBorder)).
		Set(expression.Name("Coordinates"), expression.Value(item.Coordinates)).
		Set(expression.Name("ElectionData"), expression.Value(item.ElectionData)).
		Set(expression.Name("LogBag"), expression.Value(item.LogBag)).
		Set(expression.Name("UpdatedAt"), expression.Value(now)).
		Set(expression.Name("CreatedAt"), expression.IfNotExists(expression.Name("CreatedAt"), expression.Value(now)))

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return nil, storeError("build unit update", err)
	}

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 tableName(r.tableName),
		Key:                       buildKey(item.PK),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, storeError("put unit", err)
	}

	saved, err := parseUnit(result.Attributes)
	if err != nil {
		return nil, storeError("parse unit", err)
	}

	r.logger.Debug("Unit saved",
		zap.String("unitID", saved.ID),
		zap.Int("adjacent", saved.AdjacentIDs.Len()),
	)
	return saved, nil
}

// Delete removes a unit. Deleting an unknown id succeeds.
func (r *UnitRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: tableName(r.tableName),
		Key:       buildKey(unitPK(id)),
	})
	if err != nil {
		return storeError("delete unit", err)
	}
	return nil
}

// List scans the table for every unit item
func (r *UnitRepository) List(ctx context.Context) ([]*entities.Unit, error) {
	filter := expression.Name("EntityType").Equal(expression.Value(entityTypeUnit))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, storeError("build unit scan", err)
	}

	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 tableName(r.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var units []*entities.Unit
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storeError("scan units", err)
		}
		for _, av := range page.Items {
			unit, err := parseUnit(av)
			if err != nil {
				return nil, storeError("parse unit", err)
			}
			units = append(units, unit)
		}
	}

	r.logger.Debug("Listed units", zap.Int("count", len(units)))
	return units, nil
}
