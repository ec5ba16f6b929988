package services

import (
	"context"
	"fmt"
	"time"

	"spark_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ChatService covers the conversation surface reachable from a match:
// conversations are created and destroyed only by the match transaction.
type ChatService struct {
	Dynamo   DynamoAPI
	Profiles *ProfileService
	Notifier MatchNotifier
	Logger   zerolog.Logger
}

func conversationKey(conversationID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
	}
}

// GetConversation retrieves a conversation by id. (nil, nil) when absent.
func (s *ChatService) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	item, err := s.Dynamo.GetItem(ctx, models.ConversationsTable, conversationKey(conversationID))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	var conversation models.Conversation
	if err := attributevalue.UnmarshalMap(item, &conversation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conversation, nil
}

// GetMessages fetches messages for a conversation, newest first.
func (s *ChatService) GetMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	keyCondition := "conversationId = :conversationId"
	expressionValues := map[string]types.AttributeValue{
		":conversationId": &types.AttributeValueMemberS{Value: conversationID},
	}

	items, err := s.Dynamo.QueryItemsWithOptions(ctx, models.MessagesTable, keyCondition, expressionValues, nil, int32(limit), true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	var messages []models.Message
	if err := attributevalue.UnmarshalListOfMaps(items, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return messages, nil
}

// SendMessage stores a message, updates the conversation summary and the
// recipient's unread counter, and pushes a notification.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", models.ErrValidation)
	}

	conversation, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, fmt.Errorf("%w: conversation %s", models.ErrNotFound, conversationID)
	}
	if !conversation.HasParticipant(senderID) {
		return nil, fmt.Errorf("%w: sender is not a participant", models.ErrValidation)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	message := models.Message{
		ConversationID: conversationID,
		CreatedAt:      now,
		MessageID:      uuid.NewString(),
		SenderID:       senderID,
		Content:        content,
		IsUnread:       true,
	}
	if err := s.Dynamo.PutItem(ctx, models.MessagesTable, message); err != nil {
		return nil, err
	}

	var recipient string
	for _, p := range conversation.Participants {
		if p != senderID {
			recipient = p
		}
	}

	updateExpression := "SET lastMessage = :last, lastMessageAt = :at, unreadCounts.#u = if_not_exists(unreadCounts.#u, :zero) + :one"
	expressionValues := map[string]types.AttributeValue{
		":last": &types.AttributeValueMemberS{Value: content},
		":at":   &types.AttributeValueMemberS{Value: now},
		":zero": &types.AttributeValueMemberN{Value: "0"},
		":one":  &types.AttributeValueMemberN{Value: "1"},
	}
	expressionNames := map[string]string{"#u": recipient}
	if _, err := s.Dynamo.UpdateItem(ctx, models.ConversationsTable, updateExpression, conversationKey(conversationID), expressionValues, expressionNames); err != nil {
		s.Logger.Warn().Err(err).Str("conversationId", conversationID).Msg("failed to update conversation summary")
	}

	senderName := senderID
	if profile, err := s.Profiles.GetProfile(ctx, senderID); err == nil && profile != nil && profile.Name != "" {
		senderName = profile.Name
	}
	s.Notifier.NotifyMessage(recipient, senderName, content, conversationID)

	return &message, nil
}

// MarkConversationRead resets the caller's unread counter.
func (s *ChatService) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	updateExpression := "SET unreadCounts.#u = :zero"
	expressionValues := map[string]types.AttributeValue{
		":zero": &types.AttributeValueMemberN{Value: "0"},
	}
	expressionNames := map[string]string{"#u": userID}
	_, err := s.Dynamo.UpdateItem(ctx, models.ConversationsTable, updateExpression, conversationKey(conversationID), expressionValues, expressionNames)
	return err
}

// CreateIntroMessage writes the system message seeding a fresh match's
// conversation.
func (s *ChatService) CreateIntroMessage(ctx context.Context, conversationID, content string) error {
	message := models.Message{
		ConversationID: conversationID,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
		MessageID:      uuid.NewString(),
		SenderID:       "",
		Content:        content,
		IsUnread:       true,
	}
	return s.Dynamo.PutItem(ctx, models.MessagesTable, message)
}

// DeleteConversationMessages removes all messages for a conversation. Used
// after an unmatch commits; an orphaned message is unreachable once its
// conversation is gone, so this is best-effort.
func (s *ChatService) DeleteConversationMessages(ctx context.Context, conversationID string) error {
	keyCondition := "conversationId = :conversationId"
	expressionValues := map[string]types.AttributeValue{
		":conversationId": &types.AttributeValueMemberS{Value: conversationID},
	}

	items, err := s.Dynamo.QueryItems(ctx, models.MessagesTable, keyCondition, expressionValues, nil, 1000)
	if err != nil {
		return fmt.Errorf("failed to fetch messages for deletion: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	var deletes []types.WriteRequest
	for _, item := range items {
		deletes = append(deletes, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{
				Key: map[string]types.AttributeValue{
					"conversationId": item["conversationId"],
					"createdAt":      item["createdAt"],
				},
			},
		})
	}
	return s.Dynamo.BatchWriteItems(ctx, models.MessagesTable, deletes)
}
