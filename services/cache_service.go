package services

import (
	"context"
	"strings"
	"time"

	"spark_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// CacheService is the two-tier discovery cache: a fast in-process tier and a
// durable DynamoDB tier for cross-session reuse. Correctness never depends on
// it; staleness is prevented by prefix invalidation on every interaction or
// match mutation.
type CacheService struct {
	Dynamo DynamoAPI
	Logger zerolog.Logger

	memory *gocache.Cache
}

func NewCacheService(dynamo DynamoAPI, logger zerolog.Logger) *CacheService {
	return &CacheService{
		Dynamo: dynamo,
		Logger: logger,
		memory: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

func memoryKey(ownerID, cacheKey string) string { return ownerID + "|" + cacheKey }

// Get returns the cached payload for (owner, key), consulting the in-memory
// tier first. Expired durable entries are evicted, not returned.
func (cs *CacheService) Get(ctx context.Context, ownerID, cacheKey string) (string, bool) {
	if v, ok := cs.memory.Get(memoryKey(ownerID, cacheKey)); ok {
		return v.(string), true
	}

	key := map[string]types.AttributeValue{
		"ownerId":  &types.AttributeValueMemberS{Value: ownerID},
		"cacheKey": &types.AttributeValueMemberS{Value: cacheKey},
	}
	item, err := cs.Dynamo.GetItem(ctx, models.DiscoveryCacheTable, key)
	if err != nil || item == nil {
		return "", false
	}

	var entry models.CacheEntry
	if err := attributevalue.UnmarshalMap(item, &entry); err != nil {
		return "", false
	}
	if entry.Expired(time.Now()) {
		if err := cs.Dynamo.DeleteItem(ctx, models.DiscoveryCacheTable, key); err != nil {
			cs.Logger.Warn().Err(err).Str("cacheKey", cacheKey).Msg("failed to evict expired cache entry")
		}
		return "", false
	}

	cs.memory.Set(memoryKey(ownerID, cacheKey), entry.Payload, time.Duration(entry.TTLSeconds)*time.Second)
	return entry.Payload, true
}

// Set writes the payload to both tiers.
func (cs *CacheService) Set(ctx context.Context, ownerID, cacheKey, payload string, ttl time.Duration) {
	cs.memory.Set(memoryKey(ownerID, cacheKey), payload, ttl)

	entry := models.CacheEntry{
		OwnerID:    ownerID,
		CacheKey:   cacheKey,
		Payload:    payload,
		Timestamp:  time.Now().Unix(),
		TTLSeconds: int64(ttl.Seconds()),
	}
	if err := cs.Dynamo.PutItem(ctx, models.DiscoveryCacheTable, entry); err != nil {
		cs.Logger.Warn().Err(err).Str("ownerId", ownerID).Msg("failed to persist cache entry")
	}
}

// InvalidateByPrefix drops every entry for ownerID whose key starts with
// prefix, in both tiers. Write paths that mutate interaction or match state
// call this before returning success.
func (cs *CacheService) InvalidateByPrefix(ctx context.Context, ownerID, prefix string) error {
	memPrefix := memoryKey(ownerID, prefix)
	for k := range cs.memory.Items() {
		if strings.HasPrefix(k, memPrefix) {
			cs.memory.Delete(k)
		}
	}

	keyCondition := "ownerId = :owner AND begins_with(cacheKey, :prefix)"
	expressionValues := map[string]types.AttributeValue{
		":owner":  &types.AttributeValueMemberS{Value: ownerID},
		":prefix": &types.AttributeValueMemberS{Value: prefix},
	}

	// Deleting each page before re-querying walks the whole prefix; a single
	// bounded query would leave stale rows behind for owners with more than
	// one page of cached entries.
	const pageLimit = 100
	for {
		items, err := cs.Dynamo.QueryItems(ctx, models.DiscoveryCacheTable, keyCondition, expressionValues, nil, pageLimit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		var deletes []types.WriteRequest
		for _, item := range items {
			deletes = append(deletes, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{
						"ownerId":  item["ownerId"],
						"cacheKey": item["cacheKey"],
					},
				},
			})
		}
		if err := cs.Dynamo.BatchWriteItems(ctx, models.DiscoveryCacheTable, deletes); err != nil {
			return err
		}
		if len(items) < pageLimit {
			return nil
		}
	}
}

// WarmFromDurable loads the durable tier into memory at startup, dropping
// anything already past its ttl.
func (cs *CacheService) WarmFromDurable(ctx context.Context) {
	var entries []models.CacheEntry
	err := cs.Dynamo.ScanWithFilter(ctx, models.DiscoveryCacheTable, nil, nil, &entries)
	if err != nil {
		cs.Logger.Warn().Err(err).Msg("cache warm-up scan failed")
		return
	}

	now := time.Now()
	loaded := 0
	for i := range entries {
		entry := &entries[i]
		if entry.Expired(now) {
			key := map[string]types.AttributeValue{
				"ownerId":  &types.AttributeValueMemberS{Value: entry.OwnerID},
				"cacheKey": &types.AttributeValueMemberS{Value: entry.CacheKey},
			}
			if err := cs.Dynamo.DeleteItem(ctx, models.DiscoveryCacheTable, key); err != nil {
				cs.Logger.Warn().Err(err).Msg("failed to drop expired cache entry during warm-up")
			}
			continue
		}
		remaining := time.Duration(entry.Timestamp+entry.TTLSeconds-now.Unix()) * time.Second
		cs.memory.Set(memoryKey(entry.OwnerID, entry.CacheKey), entry.Payload, remaining)
		loaded++
	}
	cs.Logger.Info().Int("loaded", loaded).Int("scanned", len(entries)).Msg("discovery cache warmed from durable tier")
}
