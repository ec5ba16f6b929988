package models

import "time"

// Interaction is one like/dislike decision for an ordered pair. The PK/SK
// shape guarantees at most one live record per (user, target).
type Interaction struct {
	PK           string `dynamodbav:"PK" json:"-"` // USER#<userId>
	SK           string `dynamodbav:"SK" json:"-"` // INTERACTION#<targetUserId>
	UserID       string `dynamodbav:"userId" json:"userId"`
	TargetUserID string `dynamodbav:"targetUserId" json:"targetUserId"`
	Type         string `dynamodbav:"type" json:"type"` // like, dislike
	CreatedAt    string `dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAt    int64  `dynamodbav:"expiresAt,omitempty" json:"expiresAt,omitempty"` // epoch seconds, dislikes only
}

// Expired reports whether a dislike has passed its cooldown. Likes never expire.
func (i *Interaction) Expired(now time.Time) bool {
	return i.Type == InteractionTypeDislike && i.ExpiresAt > 0 && i.ExpiresAt <= now.Unix()
}

// UserPK builds the partition key for a user's outgoing interactions.
func UserPK(userID string) string { return "USER#" + userID }

// InteractionSK builds the sort key for an interaction toward a target user.
func InteractionSK(targetUserID string) string { return "INTERACTION#" + targetUserID }

// InteractionsTable is the DynamoDB table name for interactions
const InteractionsTable = "Interactions"
