// Package dynamodb stores units and groups in a single DynamoDB table.
//
// Items are keyed PK = "UNIT#<id>" or "GROUP#<id>" with SK = "METADATA" and
// carry an EntityType attribute so scans can pick one kind.
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "districtgraph/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

const (
	metadataSK = "METADATA"

	entityTypeUnit  = "UNIT"
	entityTypeGroup = "GROUP"

	// DynamoDB caps BatchGetItem at 100 keys
	batchGetLimit = 100
)

// API is the subset of the DynamoDB client the repositories use
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

func unitPK(id string) string  { return "UNIT#" + id }
func groupPK(id string) string { return "GROUP#" + id }

func buildKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: metadataSK},
	}
}

func tableName(name string) *string {
	return aws.String(name)
}

// storeError translates a DynamoDB failure into the engine's error taxonomy
func storeError(operation string, err error) error {
	if err == nil {
		return nil
	}

	appErr := pkgerrors.NewStoreFailureError(operation, err)

	var ae smithy.APIError
	if errors.As(err, &ae) {
		appErr.WithCode(ae.ErrorCode()).
			WithDetail("fault", ae.ErrorFault().String())

		switch ae.ErrorCode() {
		case "ResourceNotFoundException":
			appErr.Message = fmt.Sprintf("%s: table not found", appErr.Message)
		case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
			appErr.WithDetail("throttled", true)
		}
		return appErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		appErr.WithCode("CONTEXT_DONE")
	}
	return appErr
}
