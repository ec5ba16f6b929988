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

// discoverCachePrefix scopes an owner's discovery cache keys for invalidation.
const discoverCachePrefix = "discover#"

// InteractionService is the durable ledger of like/dislike decisions per
// ordered pair. Dislikes carry a 24h cooldown and are lazily deleted once
// expired; likes never expire.
type InteractionService struct {
	Dynamo DynamoAPI
	Cache  *CacheService
	Logger zerolog.Logger
}

func interactionKey(userID, targetID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: models.UserPK(userID)},
		"SK": &types.AttributeValueMemberS{Value: models.InteractionSK(targetID)},
	}
}

// GetInteraction retrieves the live interaction userID -> targetID, deleting
// it on the way out if its cooldown has lapsed. (nil, nil) means no live
// record.
func (s *InteractionService) GetInteraction(ctx context.Context, userID, targetID string) (*models.Interaction, error) {
	item, err := s.Dynamo.GetItem(ctx, models.InteractionsTable, interactionKey(userID, targetID))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	var interaction models.Interaction
	if err := attributevalue.UnmarshalMap(item, &interaction); err != nil {
		return nil, fmt.Errorf("failed to unmarshal interaction: %w", err)
	}

	if interaction.Expired(time.Now()) {
		if err := s.Dynamo.DeleteItem(ctx, models.InteractionsTable, interactionKey(userID, targetID)); err != nil {
			s.Logger.Warn().Err(err).Str("userId", userID).Str("targetId", targetID).Msg("failed to delete expired dislike")
		}
		return nil, nil
	}
	return &interaction, nil
}

// Like records a like userID -> targetID. An existing dislike is converted in
// place (the overwrite clears its expiry).
func (s *InteractionService) Like(ctx context.Context, userID, targetID string) error {
	if userID == targetID {
		return fmt.Errorf("%w: cannot like yourself", models.ErrValidation)
	}

	interaction := models.Interaction{
		PK:           models.UserPK(userID),
		SK:           models.InteractionSK(targetID),
		UserID:       userID,
		TargetUserID: targetID,
		Type:         models.InteractionTypeLike,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Dynamo.PutItem(ctx, models.InteractionsTable, interaction); err != nil {
		return err
	}

	if err := s.Cache.InvalidateByPrefix(ctx, userID, discoverCachePrefix); err != nil {
		return fmt.Errorf("failed to invalidate discovery cache: %w", err)
	}
	s.Logger.Debug().Str("userId", userID).Str("targetId", targetID).Msg("like recorded")
	return nil
}

// Dislike records a dislike with a 24h cooldown. A raw dislike over an
// existing like is rejected; the only like -> dislike path is unmatch.
func (s *InteractionService) Dislike(ctx context.Context, userID, targetID string) error {
	if userID == targetID {
		return fmt.Errorf("%w: cannot dislike yourself", models.ErrValidation)
	}

	existing, err := s.GetInteraction(ctx, userID, targetID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Type == models.InteractionTypeLike {
		return fmt.Errorf("%w: cannot dislike a liked profile, unmatch instead", models.ErrValidation)
	}

	if err := s.Dynamo.PutItem(ctx, models.InteractionsTable, newDislike(userID, targetID, time.Now())); err != nil {
		return err
	}

	if err := s.Cache.InvalidateByPrefix(ctx, userID, discoverCachePrefix); err != nil {
		return fmt.Errorf("failed to invalidate discovery cache: %w", err)
	}
	s.Logger.Debug().Str("userId", userID).Str("targetId", targetID).Msg("dislike recorded")
	return nil
}

func newDislike(userID, targetID string, now time.Time) models.Interaction {
	return models.Interaction{
		PK:           models.UserPK(userID),
		SK:           models.InteractionSK(targetID),
		UserID:       userID,
		TargetUserID: targetID,
		Type:         models.InteractionTypeDislike,
		CreatedAt:    now.UTC().Format(time.RFC3339),
		ExpiresAt:    now.Add(models.DislikeCooldown).Unix(),
	}
}

// CooldownPuts builds the bilateral 24h dislike writes installed by an
// unmatch, for inclusion in the unmatch transaction.
func (s *InteractionService) CooldownPuts(userA, userB string, now time.Time) ([]types.TransactWriteItem, error) {
	var items []types.TransactWriteItem
	for _, pair := range [][2]string{{userA, userB}, {userB, userA}} {
		marshaled, err := attributevalue.MarshalMap(newDislike(pair[0], pair[1], now))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal cooldown dislike: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: tableNamePtr(models.InteractionsTable),
				Item:      marshaled,
			},
		})
	}
	return items, nil
}

// HasMutualLike reports whether a live like exists in both directions.
func (s *InteractionService) HasMutualLike(ctx context.Context, userID, targetID string) (bool, error) {
	forward, err := s.GetInteraction(ctx, userID, targetID)
	if err != nil {
		return false, err
	}
	if forward == nil || forward.Type != models.InteractionTypeLike {
		return false, nil
	}

	reverse, err := s.GetInteraction(ctx, targetID, userID)
	if err != nil {
		return false, err
	}
	return reverse != nil && reverse.Type == models.InteractionTypeLike, nil
}

// outgoing fetches all of a user's outgoing interactions, deleting expired
// dislikes as it goes so storage doesn't grow unboundedly.
func (s *InteractionService) outgoing(ctx context.Context, userID string) ([]models.Interaction, error) {
	keyCondition := "PK = :user"
	expressionValues := map[string]types.AttributeValue{
		":user": &types.AttributeValueMemberS{Value: models.UserPK(userID)},
	}

	items, err := s.Dynamo.QueryItems(ctx, models.InteractionsTable, keyCondition, expressionValues, nil, 1000)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch interactions: %w", err)
	}

	var interactions []models.Interaction
	if err := attributevalue.UnmarshalListOfMaps(items, &interactions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal interactions: %w", err)
	}

	now := time.Now()
	live := interactions[:0]
	for i := range interactions {
		interaction := interactions[i]
		if interaction.Expired(now) {
			if err := s.Dynamo.DeleteItem(ctx, models.InteractionsTable, interactionKey(userID, interaction.TargetUserID)); err != nil {
				s.Logger.Warn().Err(err).Str("targetId", interaction.TargetUserID).Msg("failed to delete expired dislike")
			}
			continue
		}
		live = append(live, interaction)
	}
	return live, nil
}

// ExpireStale deletes the user's expired outgoing dislikes. Invoked lazily at
// read time rather than by a background sweep.
func (s *InteractionService) ExpireStale(ctx context.Context, userID string) error {
	_, err := s.outgoing(ctx, userID)
	return err
}

// OutgoingExclusions returns the ids the user has a live interaction toward:
// every liked id and every id under a dislike cooldown.
func (s *InteractionService) OutgoingExclusions(ctx context.Context, userID string) (map[string]struct{}, error) {
	interactions, err := s.outgoing(ctx, userID)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(interactions))
	for i := range interactions {
		excluded[interactions[i].TargetUserID] = struct{}{}
	}
	return excluded, nil
}

// ReportProfile stores a report and installs a standard dislike so the
// reported profile disappears from the reporter's discovery immediately.
func (s *InteractionService) ReportProfile(ctx context.Context, reporterID, targetID, reason string) error {
	if reporterID == targetID {
		return fmt.Errorf("%w: cannot report yourself", models.ErrValidation)
	}
	if reason == "" {
		return fmt.Errorf("%w: report reason is required", models.ErrValidation)
	}

	report := models.Report{
		ReportID:     uuid.NewString(),
		ReporterID:   reporterID,
		TargetUserID: targetID,
		Reason:       reason,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Dynamo.PutItem(ctx, models.ReportsTable, report); err != nil {
		return err
	}

	if err := s.Dynamo.PutItem(ctx, models.InteractionsTable, newDislike(reporterID, targetID, time.Now())); err != nil {
		return err
	}

	if err := s.Cache.InvalidateByPrefix(ctx, reporterID, discoverCachePrefix); err != nil {
		return fmt.Errorf("failed to invalidate discovery cache: %w", err)
	}
	s.Logger.Info().Str("reporterId", reporterID).Str("targetId", targetID).Msg("profile reported")
	return nil
}

func tableNamePtr(name string) *string { return &name }
