package models

import "time"

// DiscoveryQueueEntry is one precomputed candidate in a user's ranked queue.
// The (ownerId, candidateId) key makes duplicates impossible at the store.
type DiscoveryQueueEntry struct {
	OwnerID     string  `dynamodbav:"ownerId" json:"ownerId"`
	CandidateID string  `dynamodbav:"candidateId" json:"candidateId"`
	Score       int     `dynamodbav:"score" json:"score"`
	Distance    float64 `dynamodbav:"distance" json:"distance"` // meters
	AddedAt     string  `dynamodbav:"addedAt" json:"addedAt"`
	ExpiresAt   int64   `dynamodbav:"expiresAt" json:"expiresAt"` // epoch seconds, addedAt + 7d
	Shown       bool    `dynamodbav:"shown" json:"shown"`
}

func (e *DiscoveryQueueEntry) Expired(now time.Time) bool {
	return e.ExpiresAt > 0 && e.ExpiresAt <= now.Unix()
}

// DiscoveryQueueTable is the DynamoDB table name for discovery queues
const DiscoveryQueueTable = "DiscoveryQueue"
