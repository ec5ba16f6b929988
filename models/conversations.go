package models

// Conversation is created in the same atomic unit as its Match and removed in
// the same atomic unit as the Match's teardown.
type Conversation struct {
	ConversationID string         `dynamodbav:"conversationId" json:"conversationId"`
	MatchID        string         `dynamodbav:"matchId" json:"matchId"`
	Participants   []string       `dynamodbav:"participants" json:"participants"`
	UnreadCounts   map[string]int `dynamodbav:"unreadCounts" json:"unreadCounts"`
	LastMessage    string         `dynamodbav:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	LastMessageAt  string         `dynamodbav:"lastMessageAt,omitempty" json:"lastMessageAt,omitempty"`
	CreatedAt      string         `dynamodbav:"createdAt" json:"createdAt"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ConversationsTable is the DynamoDB table name for conversations
const ConversationsTable = "Conversations"
