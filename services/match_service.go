package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spark_server/models"
	"spark_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MatchService drives the pair state machine:
//
//	NoRelation -> OneSidedLike -> Matched -> Unmatched(cooldown) -> OneSidedLike
//
// A match and its conversation are created in one transaction and torn down
// in one transaction; readers never observe one without the other.
type MatchService struct {
	Dynamo       DynamoAPI
	Interactions *InteractionService
	Profiles     *ProfileService
	Chat         *ChatService
	Cache        *CacheService
	Notifier     MatchNotifier
	Logger       zerolog.Logger
}

// LikeOutcome is what the like/dislike endpoints report back to the client.
type LikeOutcome struct {
	IsMatch        bool   `json:"isMatch"`
	MatchID        string `json:"matchId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

func matchKey(userA, userB string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pairKey": &types.AttributeValueMemberS{Value: models.MatchPairKey(userA, userB)},
	}
}

// GetMatchByPair retrieves the canonical match record for two users in any
// order. (nil, nil) when the pair has never matched.
func (ms *MatchService) GetMatchByPair(ctx context.Context, userA, userB string) (*models.Match, error) {
	item, err := ms.Dynamo.GetItem(ctx, models.MatchesTable, matchKey(userA, userB))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	var match models.Match
	if err := attributevalue.UnmarshalMap(item, &match); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}
	return &match, nil
}

// HandleLike records the like and, when it completes a mutual pair, commits
// the match+conversation transaction. Safe to call repeatedly: an existing
// live match is returned unchanged.
func (ms *MatchService) HandleLike(ctx context.Context, userID, targetID string) (*LikeOutcome, error) {
	if err := ms.Interactions.Like(ctx, userID, targetID); err != nil {
		return nil, err
	}

	mutual, err := ms.Interactions.HasMutualLike(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if !mutual {
		return &LikeOutcome{IsMatch: false}, nil
	}

	// Check-then-act: tolerate rapid duplicate like calls. A true
	// cross-worker race is caught by the transaction's condition below.
	existing, err := ms.GetMatchByPair(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !existing.Unmatched {
		return &LikeOutcome{IsMatch: true, MatchID: existing.MatchID, ConversationID: existing.ConversationID}, nil
	}

	outcome, err := ms.createMatch(ctx, userID, targetID, existing)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Lost the race: the earliest-created match is canonical.
			ms.Logger.Warn().Str("userId", userID).Str("targetId", targetID).Msg("concurrent match creation detected, deferring to existing match")
			current, readErr := ms.GetMatchByPair(ctx, userID, targetID)
			if readErr != nil || current == nil || current.Unmatched {
				return nil, err
			}
			return &LikeOutcome{IsMatch: true, MatchID: current.MatchID, ConversationID: current.ConversationID}, nil
		}
		return nil, err
	}
	return outcome, nil
}

func (ms *MatchService) createMatch(ctx context.Context, userID, targetID string, prior *models.Match) (*LikeOutcome, error) {
	user1, user2 := models.CanonicalPair(userID, targetID)
	now := time.Now().UTC()
	matchID := uuid.NewString()
	conversationID := uuid.NewString()

	conversation := models.Conversation{
		ConversationID: conversationID,
		MatchID:        matchID,
		Participants:   []string{user1, user2},
		UnreadCounts:   map[string]int{user1: 0, user2: 0},
		CreatedAt:      now.Format(time.RFC3339),
	}
	conversationItem, err := attributevalue.MarshalMap(conversation)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation: %w", err)
	}

	transaction := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName: tableNamePtr(models.ConversationsTable),
			Item:      conversationItem,
		}},
	}

	if prior == nil {
		match := models.Match{
			PairKey:        models.MatchPairKey(user1, user2),
			MatchID:        matchID,
			User1:          user1,
			User2:          user2,
			ConversationID: conversationID,
			Unmatched:      false,
			CreatedAt:      now.Format(time.RFC3339),
			ExpiresAt:      now.Add(models.MatchTTL).Unix(),
		}
		matchItem, err := attributevalue.MarshalMap(match)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal match: %w", err)
		}
		condition := "attribute_not_exists(pairKey)"
		transaction = append(transaction, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           tableNamePtr(models.MatchesTable),
				Item:                matchItem,
				ConditionExpression: &condition,
			},
		})
	} else {
		// Reactivation: flip the prior unmatched record back to live with a
		// fresh identity and conversation.
		updateExpression := "SET matchId = :matchId, conversationId = :conversationId, unmatched = :false, createdAt = :createdAt, expiresAt = :expiresAt, animationPlayed = :false"
		condition := "unmatched = :true"
		transaction = append(transaction, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           tableNamePtr(models.MatchesTable),
				Key:                 matchKey(user1, user2),
				UpdateExpression:    &updateExpression,
				ConditionExpression: &condition,
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":matchId":        &types.AttributeValueMemberS{Value: matchID},
					":conversationId": &types.AttributeValueMemberS{Value: conversationID},
					":false":          &types.AttributeValueMemberBOOL{Value: false},
					":true":           &types.AttributeValueMemberBOOL{Value: true},
					":createdAt":      &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
					":expiresAt":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(models.MatchTTL).Unix())},
				},
			},
		})
	}

	if err := ms.Dynamo.TransactWriteItems(ctx, transaction); err != nil {
		return nil, err
	}

	ms.Logger.Info().Str("matchId", matchID).Str("user1", user1).Str("user2", user2).Msg("match created 🎉")
	ms.afterMatchCreated(ctx, userID, targetID, matchID, conversationID)

	return &LikeOutcome{IsMatch: true, MatchID: matchID, ConversationID: conversationID}, nil
}

// afterMatchCreated runs the best-effort follow-ups: queue pruning, cache
// invalidation, the intro message, and push notifications. None of these can
// fail the committed match; stale queue entries are also excluded on the next
// rebuild.
func (ms *MatchService) afterMatchCreated(ctx context.Context, userID, targetID, matchID, conversationID string) {
	ms.removeQueueEntries(ctx, userID, targetID)
	ms.invalidateBoth(ctx, userID, targetID)

	userProfile, _ := ms.Profiles.GetProfile(ctx, userID)
	targetProfile, _ := ms.Profiles.GetProfile(ctx, targetID)

	intro := "You have matched! Say Hi!"
	if targetProfile != nil && targetProfile.Name != "" {
		intro = fmt.Sprintf("You have matched with %s! Say Hi!", targetProfile.Name)
	}
	if err := ms.Chat.CreateIntroMessage(ctx, conversationID, intro); err != nil {
		ms.Logger.Warn().Err(err).Str("conversationId", conversationID).Msg("failed to write intro message")
	}

	ms.Notifier.NotifyMatch(userID, profileName(targetProfile, targetID), matchID)
	ms.Notifier.NotifyMatch(targetID, profileName(userProfile, userID), matchID)
}

func profileName(profile *models.UserProfile, fallback string) string {
	if profile != nil && profile.Name != "" {
		return profile.Name
	}
	return fallback
}

// Unmatch tears down the pair's match: one transaction flips the match to
// unmatched, deletes the conversation, and installs the bilateral 24h
// cooldown. Idempotent: no live match means success with no side effects.
func (ms *MatchService) Unmatch(ctx context.Context, userID, targetID string) error {
	match, err := ms.GetMatchByPair(ctx, userID, targetID)
	if err != nil {
		return err
	}
	if match == nil || match.Unmatched {
		return nil
	}

	updateExpression := "SET unmatched = :true REMOVE conversationId"
	condition := "attribute_exists(pairKey) AND unmatched = :false"
	transaction := []types.TransactWriteItem{
		{Update: &types.Update{
			TableName:           tableNamePtr(models.MatchesTable),
			Key:                 matchKey(userID, targetID),
			UpdateExpression:    &updateExpression,
			ConditionExpression: &condition,
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":true":  &types.AttributeValueMemberBOOL{Value: true},
				":false": &types.AttributeValueMemberBOOL{Value: false},
			},
		}},
	}
	if match.ConversationID != "" {
		transaction = append(transaction, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: tableNamePtr(models.ConversationsTable),
				Key: map[string]types.AttributeValue{
					"conversationId": &types.AttributeValueMemberS{Value: match.ConversationID},
				},
			},
		})
	}
	cooldown, err := ms.Interactions.CooldownPuts(userID, targetID, time.Now())
	if err != nil {
		return err
	}
	transaction = append(transaction, cooldown...)

	if err := ms.Dynamo.TransactWriteItems(ctx, transaction); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Another worker unmatched first; the end state is the same.
			return nil
		}
		return err
	}

	if match.ConversationID != "" {
		if err := ms.Chat.DeleteConversationMessages(ctx, match.ConversationID); err != nil {
			ms.Logger.Warn().Err(err).Str("conversationId", match.ConversationID).Msg("failed to delete conversation messages")
		}
	}
	ms.removeQueueEntries(ctx, userID, targetID)
	ms.invalidateBoth(ctx, userID, targetID)

	ms.Logger.Info().Str("matchId", match.MatchID).Str("userId", userID).Str("targetId", targetID).Msg("unmatched")
	return nil
}

// removeQueueEntries drops each party's queue entry for the other.
// Best-effort: a leftover entry is also excluded on the next queue rebuild.
func (ms *MatchService) removeQueueEntries(ctx context.Context, userA, userB string) {
	for _, pair := range [][2]string{{userA, userB}, {userB, userA}} {
		key := map[string]types.AttributeValue{
			"ownerId":     &types.AttributeValueMemberS{Value: pair[0]},
			"candidateId": &types.AttributeValueMemberS{Value: pair[1]},
		}
		if err := ms.Dynamo.DeleteItem(ctx, models.DiscoveryQueueTable, key); err != nil {
			ms.Logger.Warn().Err(err).Str("ownerId", pair[0]).Str("candidateId", pair[1]).Msg("failed to remove discovery queue entry")
		}
	}
}

func (ms *MatchService) invalidateBoth(ctx context.Context, userA, userB string) {
	for _, id := range []string{userA, userB} {
		if err := ms.Cache.InvalidateByPrefix(ctx, id, discoverCachePrefix); err != nil {
			ms.Logger.Warn().Err(err).Str("userId", id).Msg("failed to invalidate discovery cache")
		}
	}
}

// ActiveMatchUserIDs returns the ids currently matched with userID, for the
// discovery exclusion set.
func (ms *MatchService) ActiveMatchUserIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	matches, err := ms.matchesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(matches))
	for i := range matches {
		if !matches[i].Unmatched {
			ids[matches[i].OtherUser(userID)] = struct{}{}
		}
	}
	return ids, nil
}

func (ms *MatchService) matchesForUser(ctx context.Context, userID string) ([]models.Match, error) {
	var matches []models.Match
	for _, side := range []struct{ index, attribute string }{
		{models.MatchUser1Index, "user1"},
		{models.MatchUser2Index, "user2"},
	} {
		keyCondition := fmt.Sprintf("%s = :user", side.attribute)
		expressionValues := map[string]types.AttributeValue{
			":user": &types.AttributeValueMemberS{Value: userID},
		}
		items, err := ms.Dynamo.QueryItemsWithIndex(ctx, models.MatchesTable, side.index, keyCondition, expressionValues, nil, 200)
		if err != nil {
			return nil, err
		}
		var page []models.Match
		if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal matches: %w", err)
		}
		matches = append(matches, page...)
	}
	return matches, nil
}

// ListMatches returns the user's live matches enriched with the counterpart's
// display data.
func (ms *MatchService) ListMatches(ctx context.Context, userID string) ([]map[string]interface{}, error) {
	matches, err := ms.matchesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	enriched := []map[string]interface{}{}
	for i := range matches {
		match := &matches[i]
		if match.Unmatched {
			continue
		}
		otherID := match.OtherUser(userID)

		entry := map[string]interface{}{
			"matchId":         match.MatchID,
			"conversationId":  match.ConversationID,
			"userId":          otherID,
			"createdAt":       match.CreatedAt,
			"animationPlayed": match.AnimationPlayed,
		}
		profileKey := map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: otherID},
		}
		if item, err := ms.Dynamo.GetItem(ctx, models.UserProfilesTable, profileKey); err == nil && item != nil {
			entry["name"] = utils.ExtractString(item, "name")
			entry["isOnline"] = utils.ExtractBool(item, "isOnline")
			if photo := utils.ExtractFirstPhoto(item, "photos"); photo != "" {
				entry["photo"] = photo
			}
		}
		if match.ConversationID != "" {
			if conversation, err := ms.Chat.GetConversation(ctx, match.ConversationID); err == nil && conversation != nil {
				entry["lastMessage"] = conversation.LastMessage
				entry["lastMessageAt"] = conversation.LastMessageAt
				entry["unreadCount"] = conversation.UnreadCounts[userID]
			}
		}
		enriched = append(enriched, entry)
	}
	return enriched, nil
}

// MarkAnimationPlayed records that the client showed the match animation.
// Conditional on the match existing: a plain update would upsert a phantom
// Matches row for a pair that never matched.
func (ms *MatchService) MarkAnimationPlayed(ctx context.Context, userID, targetID string) error {
	updateExpression := "SET animationPlayed = :true"
	condition := "attribute_exists(pairKey)"
	transaction := []types.TransactWriteItem{
		{Update: &types.Update{
			TableName:           tableNamePtr(models.MatchesTable),
			Key:                 matchKey(userID, targetID),
			UpdateExpression:    &updateExpression,
			ConditionExpression: &condition,
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":true": &types.AttributeValueMemberBOOL{Value: true},
			},
		}},
	}
	if err := ms.Dynamo.TransactWriteItems(ctx, transaction); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return fmt.Errorf("%w: no match for this pair", models.ErrNotFound)
		}
		return err
	}
	return nil
}
