package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"spark_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory DynamoAPI for tests. It stores marshaled items
// keyed per table and understands the specific key conditions and update
// expressions the services issue; anything else fails loudly.
type fakeDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue

	transactions [][]types.TransactWriteItem
	transactErr  error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: make(map[string]map[string]map[string]types.AttributeValue)}
}

var _ DynamoAPI = (*fakeDynamo)(nil)

// tableKeys mirrors the key schema of each table.
var tableKeys = map[string][]string{
	models.UserProfilesTable:   {"userId"},
	models.InteractionsTable:   {"PK", "SK"},
	models.MatchesTable:        {"pairKey"},
	models.ConversationsTable:  {"conversationId"},
	models.MessagesTable:       {"conversationId", "createdAt"},
	models.DiscoveryQueueTable: {"ownerId", "candidateId"},
	models.DiscoveryCacheTable: {"ownerId", "cacheKey"},
	models.ReportsTable:        {"reportId"},
}

func avString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return fmt.Sprintf("%t", v.Value)
	default:
		return ""
	}
}

func (f *fakeDynamo) keyString(table string, item map[string]types.AttributeValue) string {
	attrs, ok := tableKeys[table]
	if !ok {
		panic("fakeDynamo: unknown table " + table)
	}
	parts := make([]string, len(attrs))
	for i, attr := range attrs {
		parts[i] = avString(item[attr])
	}
	return strings.Join(parts, "/")
}

func (f *fakeDynamo) table(name string) map[string]map[string]types.AttributeValue {
	if f.tables[name] == nil {
		f.tables[name] = make(map[string]map[string]types.AttributeValue)
	}
	return f.tables[name]
}

// seed stores an item directly, bypassing the public API.
func (f *fakeDynamo) seed(table string, item interface{}) {
	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table(table)[f.keyString(table, marshaled)] = marshaled
}

func (f *fakeDynamo) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

func (f *fakeDynamo) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.table(tableName)[f.keyString(tableName, key)]
	if !ok {
		return nil, nil
	}
	return item, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, tableName string, item interface{}) error {
	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table(tableName)[f.keyString(tableName, marshaled)] = marshaled
	return nil
}

// UpdateItem applies the handful of update expressions the services use by
// substituting placeholder values attribute by attribute.
func (f *fakeDynamo) UpdateItem(ctx context.Context, tableName, updateExpression string, key, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string) (map[string]types.AttributeValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	table := f.table(tableName)
	ks := f.keyString(tableName, key)
	item, ok := table[ks]
	if !ok {
		item = make(map[string]types.AttributeValue)
		for k, v := range key {
			item[k] = v
		}
		table[ks] = item
	}

	expr := strings.TrimPrefix(updateExpression, "SET ")
	if idx := strings.Index(expr, " REMOVE "); idx >= 0 {
		for _, attr := range strings.Split(expr[idx+len(" REMOVE "):], ",") {
			delete(item, strings.TrimSpace(attr))
		}
		expr = expr[:idx]
	}
	for _, assignment := range strings.Split(expr, ",") {
		parts := strings.SplitN(assignment, "=", 2)
		if len(parts) != 2 {
			continue
		}
		attr := strings.TrimSpace(parts[0])
		if name, ok := expressionAttributeNames[attr]; ok {
			attr = name
		}
		placeholder := strings.TrimSpace(parts[1])
		if value, ok := expressionAttributeValues[placeholder]; ok {
			item[attr] = value
		}
	}
	return item, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.table(tableName), f.keyString(tableName, key))
	return nil
}

// QueryItems understands the partition-key conditions the services issue.
func (f *fakeDynamo) QueryItems(ctx context.Context, tableName, keyConditionExpression string, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string, limit int32) ([]map[string]types.AttributeValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var results []map[string]types.AttributeValue
	for _, item := range f.table(tableName) {
		match := false
		switch tableName {
		case models.InteractionsTable:
			match = avString(item["PK"]) == avString(expressionAttributeValues[":user"])
		case models.DiscoveryQueueTable:
			match = avString(item["ownerId"]) == avString(expressionAttributeValues[":owner"])
		case models.DiscoveryCacheTable:
			match = avString(item["ownerId"]) == avString(expressionAttributeValues[":owner"]) &&
				strings.HasPrefix(avString(item["cacheKey"]), avString(expressionAttributeValues[":prefix"]))
		case models.MessagesTable:
			match = avString(item["conversationId"]) == avString(expressionAttributeValues[":conversationId"])
		default:
			return nil, fmt.Errorf("fakeDynamo: unsupported query on table %s", tableName)
		}
		if match {
			results = append(results, item)
			if limit > 0 && len(results) == int(limit) {
				break
			}
		}
	}
	return results, nil
}

func (f *fakeDynamo) QueryItemsWithIndex(ctx context.Context, tableName, indexName, keyConditionExpression string, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string, limit int32) ([]map[string]types.AttributeValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var results []map[string]types.AttributeValue
	for _, item := range f.table(tableName) {
		match := false
		switch indexName {
		case models.GenderGeohashIndex:
			hash := avString(item["geohash"])
			match = avString(item["gender"]) == avString(expressionAttributeValues[":gender"]) &&
				hash != "" &&
				hash >= avString(expressionAttributeValues[":lower"]) &&
				hash <= avString(expressionAttributeValues[":upper"])
		case models.MatchUser1Index:
			match = avString(item["user1"]) == avString(expressionAttributeValues[":user"])
		case models.MatchUser2Index:
			match = avString(item["user2"]) == avString(expressionAttributeValues[":user"])
		default:
			return nil, fmt.Errorf("fakeDynamo: unsupported index %s", indexName)
		}
		if match {
			results = append(results, item)
		}
	}
	return results, nil
}

func (f *fakeDynamo) QueryItemsWithOptions(ctx context.Context, tableName, keyConditionExpression string, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string, limit int32, latestFirst bool) ([]map[string]types.AttributeValue, error) {
	return f.QueryItems(ctx, tableName, keyConditionExpression, expressionAttributeValues, expressionAttributeNames, limit)
}

func (f *fakeDynamo) ScanWithFilter(ctx context.Context, tableName string, filterFunc func(map[string]types.AttributeValue) bool, excludeFields map[string]string, result interface{}) error {
	f.mu.Lock()
	var filtered []map[string]types.AttributeValue
	for _, item := range f.table(tableName) {
		excluded := false
		for field, value := range excludeFields {
			if avString(item[field]) == value {
				excluded = true
			}
		}
		if excluded {
			continue
		}
		if filterFunc == nil || filterFunc(item) {
			filtered = append(filtered, item)
		}
	}
	f.mu.Unlock()
	return attributevalue.UnmarshalListOfMaps(filtered, result)
}

func (f *fakeDynamo) BatchWriteItems(ctx context.Context, tableName string, writeRequests []types.WriteRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := f.table(tableName)
	for _, req := range writeRequests {
		if req.PutRequest != nil {
			table[f.keyString(tableName, req.PutRequest.Item)] = req.PutRequest.Item
		}
		if req.DeleteRequest != nil {
			delete(table, f.keyString(tableName, req.DeleteRequest.Key))
		}
	}
	return nil
}

// TransactWriteItems applies puts, deletes, and the match-table updates,
// enforcing the condition expressions the services rely on.
func (f *fakeDynamo) TransactWriteItems(ctx context.Context, items []types.TransactWriteItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.transactions = append(f.transactions, items)
	if f.transactErr != nil {
		return f.transactErr
	}

	// Check all conditions before applying anything.
	for _, item := range items {
		if item.Put != nil && item.Put.ConditionExpression != nil {
			table := f.table(*item.Put.TableName)
			exists := table[f.keyString(*item.Put.TableName, item.Put.Item)] != nil
			if strings.Contains(*item.Put.ConditionExpression, "attribute_not_exists") && exists {
				return fmt.Errorf("%w: condition failed", models.ErrConflict)
			}
		}
		if item.Update != nil && item.Update.ConditionExpression != nil {
			table := f.table(*item.Update.TableName)
			current := table[f.keyString(*item.Update.TableName, item.Update.Key)]
			cond := *item.Update.ConditionExpression
			if strings.Contains(cond, "attribute_exists") && current == nil {
				return fmt.Errorf("%w: condition failed", models.ErrConflict)
			}
			if current != nil {
				if strings.Contains(cond, "unmatched = :true") && avString(current["unmatched"]) != "true" {
					return fmt.Errorf("%w: condition failed", models.ErrConflict)
				}
				if strings.Contains(cond, "unmatched = :false") && avString(current["unmatched"]) != "false" {
					return fmt.Errorf("%w: condition failed", models.ErrConflict)
				}
			}
		}
	}

	for _, item := range items {
		switch {
		case item.Put != nil:
			table := f.table(*item.Put.TableName)
			table[f.keyString(*item.Put.TableName, item.Put.Item)] = item.Put.Item
		case item.Delete != nil:
			delete(f.table(*item.Delete.TableName), f.keyString(*item.Delete.TableName, item.Delete.Key))
		case item.Update != nil:
			f.applyTransactUpdate(item.Update)
		}
	}
	return nil
}

func (f *fakeDynamo) applyTransactUpdate(update *types.Update) {
	table := f.table(*update.TableName)
	ks := f.keyString(*update.TableName, update.Key)
	item := table[ks]
	if item == nil {
		item = make(map[string]types.AttributeValue)
		for k, v := range update.Key {
			item[k] = v
		}
		table[ks] = item
	}

	expr := strings.TrimPrefix(*update.UpdateExpression, "SET ")
	if idx := strings.Index(expr, " REMOVE "); idx >= 0 {
		for _, attr := range strings.Split(expr[idx+len(" REMOVE "):], ",") {
			delete(item, strings.TrimSpace(attr))
		}
		expr = expr[:idx]
	}
	for _, assignment := range strings.Split(expr, ",") {
		parts := strings.SplitN(assignment, "=", 2)
		if len(parts) != 2 {
			continue
		}
		attr := strings.TrimSpace(parts[0])
		placeholder := strings.TrimSpace(parts[1])
		if value, ok := update.ExpressionAttributeValues[placeholder]; ok {
			item[attr] = value
		}
	}
}

// fakeNotifier records push deliveries.
type fakeNotifier struct {
	mu       sync.Mutex
	matches  []string // userIDs notified of a match
	messages []string // userIDs notified of a message
}

var _ MatchNotifier = (*fakeNotifier)(nil)

func (n *fakeNotifier) NotifyMatch(userID, otherUserName, matchID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matches = append(n.matches, userID)
}

func (n *fakeNotifier) NotifyMessage(userID, senderName, text, conversationID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, userID)
}
