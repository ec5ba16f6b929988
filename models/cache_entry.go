package models

import "time"

// CacheEntry is the durable tier of the discovery cache. The (ownerId,
// cacheKey) layout lets a whole owner prefix be invalidated with one query.
type CacheEntry struct {
	OwnerID    string `dynamodbav:"ownerId" json:"ownerId"`
	CacheKey   string `dynamodbav:"cacheKey" json:"cacheKey"`
	Payload    string `dynamodbav:"payload" json:"payload"` // JSON
	Timestamp  int64  `dynamodbav:"timestamp" json:"timestamp"`
	TTLSeconds int64  `dynamodbav:"ttlSeconds" json:"ttlSeconds"`
}

// Expired entries are treated as absent and evicted before being returned.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.Unix()-e.Timestamp > e.TTLSeconds
}

// DiscoveryCacheTable is the DynamoDB table name for the durable cache tier
const DiscoveryCacheTable = "DiscoveryCache"
