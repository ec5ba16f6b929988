package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"spark_server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
)

// DynamoAPI is the DynamoDB access surface the services depend on. Tests
// substitute fakes for it.
type DynamoAPI interface {
	GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error)
	PutItem(ctx context.Context, tableName string, item interface{}) error
	UpdateItem(ctx context.Context, tableName, updateExpression string, key, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string) (map[string]types.AttributeValue, error)
	DeleteItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) error
	QueryItems(ctx context.Context, tableName, keyConditionExpression string, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string, limit int32) ([]map[string]types.AttributeValue, error)
	QueryItemsWithIndex(ctx context.Context, tableName, indexName, keyConditionExpression string, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string, limit int32) ([]map[string]types.AttributeValue, error)
	QueryItemsWithOptions(ctx context.Context, tableName, keyConditionExpression string, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string, limit int32, latestFirst bool) ([]map[string]types.AttributeValue, error)
	ScanWithFilter(ctx context.Context, tableName string, filterFunc func(map[string]types.AttributeValue) bool, excludeFields map[string]string, result interface{}) error
	BatchWriteItems(ctx context.Context, tableName string, writeRequests []types.WriteRequest) error
	TransactWriteItems(ctx context.Context, items []types.TransactWriteItem) error
}

type DynamoService struct {
	Client *dynamodb.Client
}

var _ DynamoAPI = (*DynamoService)(nil)

// InitializeDynamoDBClient initializes the DynamoDB client
func InitializeDynamoDBClient(region string) (*dynamodb.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if endpoint := os.Getenv("DYNAMODB_ENDPOINT"); endpoint != "" {
		return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		}), nil
	}
	return dynamodb.NewFromConfig(cfg), nil
}

const maxReadRetries = 3

// retryRead retries idempotent reads with exponential backoff. Writes are
// never retried here: a failed commit may have partially landed at the store
// layer, so callers surface the failure and let the client re-issue.
func retryRead(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxReadRetries), ctx)
	return backoff.Retry(op, policy)
}

// GetItem retrieves an item from DynamoDB. A missing item is (nil, nil), not
// an error.
func (ds *DynamoService) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	var item map[string]types.AttributeValue
	err := retryRead(ctx, func() error {
		output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &tableName,
			Key:       key,
		})
		if err != nil {
			return err
		}
		item = output.Item
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get item from table '%s': %v", models.ErrTransientStore, tableName, err)
	}
	return item, nil
}

func (ds *DynamoService) PutItem(ctx context.Context, tableName string, item interface{}) error {
	marshaledItem, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item for table '%s': %w", tableName, err)
	}

	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &tableName,
		Item:      marshaledItem,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to put item in table '%s': %v", models.ErrTransientStore, tableName, err)
	}
	return nil
}

func (ds *DynamoService) UpdateItem(
	ctx context.Context,
	tableName, updateExpression string,
	key, expressionAttributeValues map[string]types.AttributeValue,
	expressionAttributeNames map[string]string,
) (map[string]types.AttributeValue, error) {
	if len(key) == 0 {
		return nil, errors.New("update failed: key cannot be empty")
	}
	if updateExpression == "" {
		return nil, errors.New("update failed: updateExpression cannot be empty")
	}

	// REMOVE expressions legitimately carry no attribute values
	var expAttrValues map[string]types.AttributeValue
	if len(expressionAttributeValues) > 0 {
		expAttrValues = expressionAttributeValues
	}

	output, err := ds.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &tableName,
		Key:                       key,
		UpdateExpression:          &updateExpression,
		ExpressionAttributeValues: expAttrValues,
		ExpressionAttributeNames:  expressionAttributeNames,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to update item in table '%s': %v", models.ErrTransientStore, tableName, err)
	}

	if output.Attributes == nil {
		return map[string]types.AttributeValue{}, nil
	}
	return output.Attributes, nil
}

// DeleteItem removes an item from DynamoDB
func (ds *DynamoService) DeleteItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) error {
	_, err := ds.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &tableName,
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete item from table '%s': %v", models.ErrTransientStore, tableName, err)
	}
	return nil
}

// QueryItems queries items from DynamoDB using a KeyConditionExpression
func (ds *DynamoService) QueryItems(
	ctx context.Context,
	tableName, keyConditionExpression string,
	expressionAttributeValues map[string]types.AttributeValue,
	expressionAttributeNames map[string]string,
	limit int32,
) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	err := retryRead(ctx, func() error {
		output, err := ds.Client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 &tableName,
			KeyConditionExpression:    &keyConditionExpression,
			ExpressionAttributeValues: expressionAttributeValues,
			ExpressionAttributeNames:  expressionAttributeNames,
			Limit:                     &limit,
		})
		if err != nil {
			return err
		}
		items = output.Items
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query items from table '%s': %v", models.ErrTransientStore, tableName, err)
	}
	return items, nil
}

// QueryItemsWithIndex queries items from DynamoDB using a Global Secondary Index (GSI)
func (ds *DynamoService) QueryItemsWithIndex(
	ctx context.Context,
	tableName, indexName, keyConditionExpression string,
	expressionAttributeValues map[string]types.AttributeValue,
	expressionAttributeNames map[string]string,
	limit int32,
) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	err := retryRead(ctx, func() error {
		output, err := ds.Client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 &tableName,
			IndexName:                 &indexName,
			KeyConditionExpression:    &keyConditionExpression,
			ExpressionAttributeValues: expressionAttributeValues,
			ExpressionAttributeNames:  expressionAttributeNames,
			Limit:                     &limit,
		})
		if err != nil {
			return err
		}
		items = output.Items
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query GSI '%s': %v", models.ErrTransientStore, indexName, err)
	}
	return items, nil
}

// QueryItemsWithOptions queries DynamoDB with sort-order and limit options
func (ds *DynamoService) QueryItemsWithOptions(
	ctx context.Context,
	tableName, keyConditionExpression string,
	expressionAttributeValues map[string]types.AttributeValue,
	expressionAttributeNames map[string]string,
	limit int32,
	latestFirst bool,
) ([]map[string]types.AttributeValue, error) {
	scanIndexForward := !latestFirst

	var items []map[string]types.AttributeValue
	err := retryRead(ctx, func() error {
		output, err := ds.Client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 &tableName,
			KeyConditionExpression:    &keyConditionExpression,
			ExpressionAttributeValues: expressionAttributeValues,
			ExpressionAttributeNames:  expressionAttributeNames,
			Limit:                     &limit,
			ScanIndexForward:          &scanIndexForward,
		})
		if err != nil {
			return err
		}
		items = output.Items
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query table '%s': %v", models.ErrTransientStore, tableName, err)
	}
	return items, nil
}

// ScanWithFilter scans a table, excluding rows whose fields match
// excludeFields and applying an optional callback filter.
func (ds *DynamoService) ScanWithFilter(
	ctx context.Context,
	tableName string,
	filterFunc func(map[string]types.AttributeValue) bool,
	excludeFields map[string]string,
	result interface{},
) error {
	var filterExpressions []string
	expressionAttributeNames := map[string]string{}
	expressionAttributeValues := map[string]types.AttributeValue{}

	for key, value := range excludeFields {
		expressionAttributeNames["#"+key] = key
		expressionAttributeValues[":"+key] = &types.AttributeValueMemberS{Value: value}
		filterExpressions = append(filterExpressions, fmt.Sprintf("#%s <> :%s", key, key))
	}

	scanInput := &dynamodb.ScanInput{TableName: &tableName}
	if len(filterExpressions) > 0 {
		filterExpression := stringJoin(filterExpressions, " AND ")
		scanInput.FilterExpression = &filterExpression
		scanInput.ExpressionAttributeNames = expressionAttributeNames
		scanInput.ExpressionAttributeValues = expressionAttributeValues
	}

	var output *dynamodb.ScanOutput
	err := retryRead(ctx, func() error {
		var err error
		output, err = ds.Client.Scan(ctx, scanInput)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: failed to scan table '%s': %v", models.ErrTransientStore, tableName, err)
	}

	var filteredItems []map[string]types.AttributeValue
	for _, item := range output.Items {
		if filterFunc == nil || filterFunc(item) {
			filteredItems = append(filteredItems, item)
		}
	}

	if err := attributevalue.UnmarshalListOfMaps(filteredItems, result); err != nil {
		return fmt.Errorf("failed to unmarshal scan result: %w", err)
	}
	return nil
}

func stringJoin(parts []string, delimiter string) string {
	result := ""
	for i, part := range parts {
		if i > 0 {
			result += delimiter
		}
		result += part
	}
	return result
}

// BatchWriteItems writes multiple items to DynamoDB in chunks of 25
func (ds *DynamoService) BatchWriteItems(
	ctx context.Context,
	tableName string,
	writeRequests []types.WriteRequest,
) error {
	const maxBatchSize = 25

	for i := 0; i < len(writeRequests); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(writeRequests) {
			end = len(writeRequests)
		}

		batchInput := &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				tableName: writeRequests[i:end],
			},
		}

		_, err := ds.Client.BatchWriteItem(ctx, batchInput)
		if err != nil {
			return fmt.Errorf("%w: failed to batch write items to table '%s': %v", models.ErrTransientStore, tableName, err)
		}
	}
	return nil
}

// TransactWriteItems commits a set of writes as one all-or-nothing unit.
// Conditional check failures surface as models.ErrConflict so callers can
// resolve check-then-act races instead of crashing.
func (ds *DynamoService) TransactWriteItems(ctx context.Context, items []types.TransactWriteItem) error {
	_, err := ds.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			for _, reason := range canceled.CancellationReasons {
				if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
					return fmt.Errorf("%w: transaction condition failed: %v", models.ErrConflict, err)
				}
			}
		}
		return fmt.Errorf("%w: failed to commit transaction: %v", models.ErrTransientStore, err)
	}
	return nil
}
