package dynamodb

import (
	"context"
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
)

type groupItem struct {
	PK                string         `dynamodbav:"PK"`
	SK                string         `dynamodbav:"SK"`
	EntityType        string         `dynamodbav:"EntityType"`
	GroupID           string         `dynamodbav:"GroupID"`
	StateID           string         `dynamodbav:"StateID"`
	DemographicTotals map[string]int `dynamodbav:"DemographicTotals"`
	CreatedAt         time.Time      `dynamodbav:"CreatedAt"`
	UpdatedAt         time.Time      `dynamodbav:"UpdatedAt"`
}

func parseGroup(av map[string]types.AttributeValue) (*entities.Group, error) {
	var item groupItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, err
	}
	totals := valueobjects.Demographics(item.DemographicTotals).Clone()
	return &entities.Group{
		ID:                item.GroupID,
		StateID:           item.StateID,
		DemographicTotals: totals,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}, nil
}

// GroupRepository implements ports.GroupRepository on DynamoDB
type GroupRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

var _ ports.GroupRepository = (*GroupRepository)(nil)

// NewGroupRepository creates a new DynamoDB group repository
func NewGroupRepository(client API, tableName string, logger *zap.Logger) *GroupRepository {
	return &GroupRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Get retrieves a group by its ID
func (r *GroupRepository) Get(ctx context.Context, id string) (*entities.Group, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      tableName(r.tableName),
		Key:            buildKey(groupPK(id)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storeError("get group", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError("group", id)
	}

	group, err := parseGroup(result.Item)
	if err != nil {
		return nil, storeError("parse group", err)
	}
	return group, nil
}

// Put upserts a group. The totals attribute is overwritten as a whole.
func (r *GroupRepository) Put(ctx context.Context, group *entities.Group) (*entities.Group, error) {
	if group == nil || group.ID == "" {
		return nil, pkgerrors.NewInvalidArgumentError("group id cannot be empty")
	}

	now := r.now()
	totals := map[string]int(group.DemographicTotals.Clone())

	update := expression.
		Set(expression.Name("EntityType"), expression.Value(entityTypeGroup)).
		Set(expression.Name("GroupID"), expression.Value(group.ID)).
		Set(expression.Name("StateID"), expression.Value(group.StateID)).
		Set(expression.Name("DemographicTotals"), expression.Value(totals)).
		Set(expression.Name("UpdatedAt"), expression.Value(now)).
		Set(expression.Name("CreatedAt"), expression.IfNotExists(expression.Name("CreatedAt"), expression.Value(now)))

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return nil, storeError("build group update", err)
	}

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 tableName(r.tableName),
		Key:                       buildKey(groupPK(group.ID)),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, storeError("put group", err)
	}

	saved, err := parseGroup(result.Attributes)
	if err != nil {
		return nil, storeError("parse group", err)
	}

	r.logger.Debug("Group saved",
		zap.String("groupID", saved.ID),
		zap.Int("total", saved.DemographicTotals.Total()),
	)
	return saved, nil
}
