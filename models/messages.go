package models

type Message struct {
	ConversationID string `dynamodbav:"conversationId" json:"conversationId"`
	CreatedAt      string `dynamodbav:"createdAt" json:"createdAt"` // sort key
	MessageID      string `dynamodbav:"messageId" json:"messageId"`
	SenderID       string `dynamodbav:"senderId" json:"senderId"` // empty for system messages
	Content        string `dynamodbav:"content" json:"content"`
	IsUnread       bool   `dynamodbav:"isUnread" json:"isUnread"`
}

// MessagesTable is the DynamoDB table name for messages
const MessagesTable = "Messages"
