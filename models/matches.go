package models

// Match is the durable record of a mutual like. Stored once per unordered
// pair under a canonical pair key so existence lookups are order-independent.
type Match struct {
	PairKey         string `dynamodbav:"pairKey" json:"-"` // MATCH#<user1>#<user2>, user1 < user2
	MatchID         string `dynamodbav:"matchId" json:"matchId"`
	User1           string `dynamodbav:"user1" json:"user1"`
	User2           string `dynamodbav:"user2" json:"user2"`
	ConversationID  string `dynamodbav:"conversationId,omitempty" json:"conversationId,omitempty"`
	Unmatched       bool   `dynamodbav:"unmatched" json:"unmatched"`
	CreatedAt       string `dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAt       int64  `dynamodbav:"expiresAt" json:"expiresAt"` // epoch seconds, createdAt + 30d
	AnimationPlayed bool   `dynamodbav:"animationPlayed" json:"animationPlayed"`
}

// CanonicalPair orders two user ids lexicographically.
func CanonicalPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// MatchPairKey builds the canonical pair key for two user ids in any order.
func MatchPairKey(a, b string) string {
	lo, hi := CanonicalPair(a, b)
	return "MATCH#" + lo + "#" + hi
}

// OtherUser returns the counterpart of userID in the match.
func (m *Match) OtherUser(userID string) string {
	if m.User1 == userID {
		return m.User2
	}
	return m.User1
}

// MatchesTable is the DynamoDB table name for matches
const MatchesTable = "Matches"

// GSIs used to list a user's matches from either side of the canonical pair
const (
	MatchUser1Index = "user1-index"
	MatchUser2Index = "user2-index"
)
