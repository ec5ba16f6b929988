package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"spark_server/models"
	"spark_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ProfileStore is the slice of profile storage discovery depends on.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	QueryByHashRange(ctx context.Context, r HashRange, gender string, limit int32) ([]models.UserProfile, error)
	ScanByFilters(ctx context.Context, excludeUserID string, filters models.DiscoveryFilters) ([]models.UserProfile, error)
}

// DiscoveryService serves ranked candidate pages from each user's precomputed
// queue, rebuilding the queue from the spatial index when it runs low.
type DiscoveryService struct {
	Dynamo       DynamoAPI
	Profiles     ProfileStore
	Interactions *InteractionService
	Matches      *MatchService
	Geo          *GeoService
	Scores       *ScoreService
	Cache        *CacheService
	Logger       zerolog.Logger

	// Queue sizing; see config.Config for defaults. QueueTarget never exceeds
	// 100 so a repopulation commits as one transaction.
	QueueTarget    int
	QueueMinUnseen int
	PerRangeLimit  int
	PageSize       int
	CacheReads     bool
	CacheTTL       time.Duration

	validate *validator.Validate
}

func NewDiscoveryService(dynamo DynamoAPI, profiles ProfileStore, interactions *InteractionService, matches *MatchService, geo *GeoService, scores *ScoreService, cache *CacheService, logger zerolog.Logger) *DiscoveryService {
	return &DiscoveryService{
		Dynamo:       dynamo,
		Profiles:     profiles,
		Interactions: interactions,
		Matches:      matches,
		Geo:          geo,
		Scores:       scores,
		Cache:        cache,
		Logger:       logger,

		QueueTarget:    25,
		QueueMinUnseen: 5,
		PerRangeLimit:  50,
		PageSize:       10,
		CacheTTL:       2 * time.Minute,

		validate: validator.New(),
	}
}

// DiscoverProfile is one ranked discovery result.
type DiscoverProfile struct {
	models.UserProfile
	Score          int     `json:"score"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// GetDiscoverProfiles returns one page of ranked candidates for ownerID.
// Pages are zero-based.
func (ds *DiscoveryService) GetDiscoverProfiles(ctx context.Context, ownerID string, filters models.DiscoveryFilters, page int) ([]DiscoverProfile, error) {
	if err := ds.validate.Struct(filters); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	if page < 0 {
		return nil, fmt.Errorf("%w: page must be non-negative", models.ErrValidation)
	}

	owner, err := ds.Profiles.GetProfile(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, ownerID)
	}

	if !owner.HasCoordinates() {
		return ds.basicDiscovery(ctx, owner, filters, page)
	}

	cacheKey := ds.cacheKey(owner, filters, page)
	if ds.CacheReads {
		if payload, ok := ds.Cache.Get(ctx, ownerID, cacheKey); ok {
			var cached []DiscoverProfile
			if err := json.Unmarshal([]byte(payload), &cached); err == nil {
				return cached, nil
			}
		}
	}

	// Expired cooldowns are deleted at read time, not by a background sweep.
	if err := ds.Interactions.ExpireStale(ctx, ownerID); err != nil {
		ds.Logger.Warn().Err(err).Str("ownerId", ownerID).Msg("failed to sweep expired dislikes")
	}

	queue, err := ds.loadQueue(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	unseen := 0
	for i := range queue {
		if !queue[i].Shown {
			unseen++
		}
	}
	if unseen < ds.QueueMinUnseen {
		if err := ds.PopulateQueue(ctx, owner, filters); err != nil {
			return nil, err
		}
		if queue, err = ds.loadQueue(ctx, ownerID); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(queue, func(i, j int) bool { return queue[i].Score > queue[j].Score })

	start := page * ds.PageSize
	if start >= len(queue) {
		return []DiscoverProfile{}, nil
	}
	end := start + ds.PageSize
	if end > len(queue) {
		end = len(queue)
	}

	results := make([]DiscoverProfile, 0, end-start)
	for _, entry := range queue[start:end] {
		profile, err := ds.Profiles.GetProfile(ctx, entry.CandidateID)
		if err != nil || profile == nil {
			continue
		}
		results = append(results, DiscoverProfile{
			UserProfile:    *profile,
			Score:          entry.Score,
			DistanceMeters: entry.Distance,
		})
		ds.markShown(ctx, ownerID, entry.CandidateID)
	}

	if payload, err := json.Marshal(results); err == nil {
		ds.Cache.Set(ctx, ownerID, cacheKey, string(payload), ds.CacheTTL)
	}
	return results, nil
}

// cacheKey scopes cached pages to the owner's coarse location so a significant
// move naturally misses, and to the filter signature so changed filters do too.
func (ds *DiscoveryService) cacheKey(owner *models.UserProfile, filters models.DiscoveryFilters, page int) string {
	cell := owner.Geohash
	if len(cell) > 5 {
		cell = cell[:5]
	}
	return fmt.Sprintf("%s%s#%s#%d", discoverCachePrefix, cell, filters.Signature(), page)
}

// basicDiscovery is the degraded path for owners without coordinates: gender
// and age filtering only, no distance or distance scoring.
func (ds *DiscoveryService) basicDiscovery(ctx context.Context, owner *models.UserProfile, filters models.DiscoveryFilters, page int) ([]DiscoverProfile, error) {
	excluded, err := ds.exclusionSet(ctx, owner.UserID)
	if err != nil {
		return nil, err
	}

	candidates, err := ds.Profiles.ScanByFilters(ctx, owner.UserID, filters)
	if err != nil {
		return nil, err
	}

	var results []DiscoverProfile
	for i := range candidates {
		candidate := &candidates[i]
		if _, skip := excluded[candidate.UserID]; skip {
			continue
		}
		results = append(results, DiscoverProfile{
			UserProfile: *candidate,
			Score:       ds.Scores.Score(owner, candidate, 0),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	start := page * ds.PageSize
	if start >= len(results) {
		return []DiscoverProfile{}, nil
	}
	end := start + ds.PageSize
	if end > len(results) {
		end = len(results)
	}
	return results[start:end], nil
}

// PopulateQueue rebuilds the owner's candidate queue from the spatial index:
// range queries over the covering hash intervals, exclusion and exact-distance
// filtering, scoring, then one transactional write of the top candidates.
func (ds *DiscoveryService) PopulateQueue(ctx context.Context, owner *models.UserProfile, filters models.DiscoveryFilters) error {
	if !owner.HasCoordinates() {
		return fmt.Errorf("%w: cannot populate queue without coordinates", models.ErrValidation)
	}

	var (
		excluded map[string]struct{}
		queued   map[string]struct{}
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		excluded, err = ds.exclusionSet(groupCtx, owner.UserID)
		return err
	})
	group.Go(func() error {
		entries, err := ds.loadQueue(groupCtx, owner.UserID)
		if err != nil {
			return err
		}
		queued = make(map[string]struct{}, len(entries))
		for i := range entries {
			queued[entries[i].CandidateID] = struct{}{}
		}
		return nil
	})
	if err := group.Wait(); err != nil {
		return err
	}

	ranges, err := ds.Geo.QueryBounds(*owner.Latitude, *owner.Longitude, filters.MaxDistanceMeters)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	seen := make(map[string]struct{})
	var entries []models.DiscoveryQueueEntry
	for _, r := range ranges {
		candidates, err := ds.Profiles.QueryByHashRange(ctx, r, filters.Gender, int32(ds.PerRangeLimit))
		if err != nil {
			return err
		}
		for i := range candidates {
			candidate := &candidates[i]
			if candidate.UserID == owner.UserID {
				continue
			}
			if _, dup := seen[candidate.UserID]; dup {
				continue
			}
			seen[candidate.UserID] = struct{}{}
			if _, skip := excluded[candidate.UserID]; skip {
				continue
			}
			if _, skip := queued[candidate.UserID]; skip {
				continue
			}
			if !candidate.HasCoordinates() || !filters.AgeInRange(candidate.Age) {
				continue
			}
			// The hash ranges over-cover the circle; enforce the exact radius.
			distance := utils.CalculateDistance(*owner.Latitude, *owner.Longitude, *candidate.Latitude, *candidate.Longitude)
			if distance > filters.MaxDistanceMeters {
				continue
			}

			entries = append(entries, models.DiscoveryQueueEntry{
				OwnerID:     owner.UserID,
				CandidateID: candidate.UserID,
				Score:       ds.Scores.Score(owner, candidate, distance),
				Distance:    distance,
				AddedAt:     now.Format(time.RFC3339),
				ExpiresAt:   now.Add(models.QueueEntryTTL).Unix(),
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > ds.QueueTarget {
		entries = entries[:ds.QueueTarget]
	}
	if len(entries) == 0 {
		ds.Logger.Debug().Str("ownerId", owner.UserID).Int("ranges", len(ranges)).Msg("queue rebuild found no new candidates")
		return nil
	}

	var transaction []types.TransactWriteItem
	for i := range entries {
		item, err := attributevalue.MarshalMap(entries[i])
		if err != nil {
			return fmt.Errorf("failed to marshal queue entry: %w", err)
		}
		transaction = append(transaction, types.TransactWriteItem{
			Put: &types.Put{
				TableName: tableNamePtr(models.DiscoveryQueueTable),
				Item:      item,
			},
		})
	}
	if err := ds.Dynamo.TransactWriteItems(ctx, transaction); err != nil {
		return err
	}

	ds.Logger.Info().Str("ownerId", owner.UserID).Int("added", len(entries)).Int("ranges", len(ranges)).Msg("discovery queue repopulated")
	return nil
}

// exclusionSet is everyone discovery must never surface for userID: anyone
// with a live outgoing interaction and anyone currently matched.
func (ds *DiscoveryService) exclusionSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	var (
		interacted map[string]struct{}
		matched    map[string]struct{}
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		interacted, err = ds.Interactions.OutgoingExclusions(groupCtx, userID)
		return err
	})
	group.Go(func() error {
		var err error
		matched, err = ds.Matches.ActiveMatchUserIDs(groupCtx, userID)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	for id := range matched {
		interacted[id] = struct{}{}
	}
	return interacted, nil
}

// loadQueue fetches the owner's queue, deleting expired entries on the way.
func (ds *DiscoveryService) loadQueue(ctx context.Context, ownerID string) ([]models.DiscoveryQueueEntry, error) {
	keyCondition := "ownerId = :owner"
	expressionValues := map[string]types.AttributeValue{
		":owner": &types.AttributeValueMemberS{Value: ownerID},
	}

	items, err := ds.Dynamo.QueryItems(ctx, models.DiscoveryQueueTable, keyCondition, expressionValues, nil, 200)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery queue: %w", err)
	}

	var entries []models.DiscoveryQueueEntry
	if err := attributevalue.UnmarshalListOfMaps(items, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal discovery queue: %w", err)
	}

	now := time.Now()
	live := entries[:0]
	for i := range entries {
		entry := entries[i]
		if entry.Expired(now) {
			key := map[string]types.AttributeValue{
				"ownerId":     &types.AttributeValueMemberS{Value: ownerID},
				"candidateId": &types.AttributeValueMemberS{Value: entry.CandidateID},
			}
			if err := ds.Dynamo.DeleteItem(ctx, models.DiscoveryQueueTable, key); err != nil {
				ds.Logger.Warn().Err(err).Str("candidateId", entry.CandidateID).Msg("failed to delete expired queue entry")
			}
			continue
		}
		live = append(live, entry)
	}
	return live, nil
}

// markShown flags a served entry so queue refill pressure is computed from
// genuinely unseen candidates. Best-effort.
func (ds *DiscoveryService) markShown(ctx context.Context, ownerID, candidateID string) {
	key := map[string]types.AttributeValue{
		"ownerId":     &types.AttributeValueMemberS{Value: ownerID},
		"candidateId": &types.AttributeValueMemberS{Value: candidateID},
	}
	updateExpression := "SET shown = :true"
	expressionValues := map[string]types.AttributeValue{
		":true": &types.AttributeValueMemberBOOL{Value: true},
	}
	if _, err := ds.Dynamo.UpdateItem(ctx, models.DiscoveryQueueTable, updateExpression, key, expressionValues, nil); err != nil {
		ds.Logger.Warn().Err(err).Str("candidateId", candidateID).Msg("failed to mark queue entry shown")
	}
}
