package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"spark_server/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

// seedProfile stores a profile with its spatial hash derived, the way the
// profile service would.
func seedProfile(t *testing.T, fake *fakeDynamo, profile models.UserProfile) {
	t.Helper()
	if profile.HasCoordinates() {
		hash, err := NewGeoService().Encode(*profile.Latitude, *profile.Longitude)
		require.NoError(t, err)
		profile.Geohash = hash
	}
	fake.seed(models.UserProfilesTable, profile)
}

func newDiscoveryFixture() (*DiscoveryService, *fakeDynamo) {
	fake := newFakeDynamo()
	profiles := NewProfileService(fake, NewGeoService(), zerolog.Nop())
	interactions := newInteractionService(fake)
	notifier := &fakeNotifier{}
	chat := &ChatService{Dynamo: fake, Profiles: profiles, Notifier: notifier, Logger: zerolog.Nop()}
	matches := &MatchService{
		Dynamo:       fake,
		Interactions: interactions,
		Profiles:     profiles,
		Chat:         chat,
		Cache:        interactions.Cache,
		Notifier:     notifier,
		Logger:       zerolog.Nop(),
	}
	svc := NewDiscoveryService(fake, profiles, interactions, matches, NewGeoService(), NewScoreService(), interactions.Cache, zerolog.Nop())
	return svc, fake
}

var nearbyFilters = models.DiscoveryFilters{
	Gender:            "male",
	MinAge:            25,
	MaxAge:            35,
	MaxDistanceMeters: 500,
}

// Seeds an owner at (32.0, 34.9) and candidates at controlled offsets.
// 0.00009 degrees of latitude is roughly 10 meters.
func seedNearbyScenario(t *testing.T, fake *fakeDynamo) {
	seedProfile(t, fake, models.UserProfile{
		UserID: "alice", Age: 30, Gender: "female", InterestedIn: "male",
		Latitude: ptr(32.0), Longitude: ptr(34.9),
	})
	seedProfile(t, fake, models.UserProfile{
		UserID: "bob", Age: 30, Gender: "male", InterestedIn: "female",
		Latitude: ptr(32.00009), Longitude: ptr(34.9), // ~10m
	})
	seedProfile(t, fake, models.UserProfile{
		UserID: "chad", Age: 31, Gender: "male", InterestedIn: "female",
		Latitude: ptr(32.0009), Longitude: ptr(34.9), // ~100m
	})
	seedProfile(t, fake, models.UserProfile{
		UserID: "dan", Age: 30, Gender: "male", InterestedIn: "female",
		Latitude: ptr(32.0054), Longitude: ptr(34.9), // ~600m, outside the radius
	})
	seedProfile(t, fake, models.UserProfile{
		UserID: "erin", Age: 30, Gender: "female", InterestedIn: "male",
		Latitude: ptr(32.00009), Longitude: ptr(34.9), // close but filtered by gender
	})
	seedProfile(t, fake, models.UserProfile{
		UserID: "frank", Age: 50, Gender: "male", InterestedIn: "female",
		Latitude: ptr(32.00009), Longitude: ptr(34.9), // close but filtered by age
	})
}

func TestGetDiscoverProfiles(t *testing.T) {
	ctx := context.Background()

	t.Run("returns in-radius candidates ranked by score", func(t *testing.T) {
		svc, fake := newDiscoveryFixture()
		seedNearbyScenario(t, fake)

		results, err := svc.GetDiscoverProfiles(ctx, "alice", nearbyFilters, 0)
		require.NoError(t, err)

		require.Len(t, results, 2)
		assert.Equal(t, "bob", results[0].UserID, "the closer candidate ranks first")
		assert.Equal(t, "chad", results[1].UserID)
		assert.Greater(t, results[0].Score, results[1].Score)
		assert.InDelta(t, 10, results[0].DistanceMeters, 5)
		assert.InDelta(t, 100, results[1].DistanceMeters, 10)
	})

	t.Run("persists the rebuilt queue", func(t *testing.T) {
		svc, fake := newDiscoveryFixture()
		seedNearbyScenario(t, fake)

		_, err := svc.GetDiscoverProfiles(ctx, "alice", nearbyFilters, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, fake.count(models.DiscoveryQueueTable))
	})

	t.Run("excludes candidates with a live interaction", func(t *testing.T) {
		svc, fake := newDiscoveryFixture()
		seedNearbyScenario(t, fake)
		require.NoError(t, svc.Interactions.Dislike(ctx, "alice", "bob"))

		results, err := svc.GetDiscoverProfiles(ctx, "alice", nearbyFilters, 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "chad", results[0].UserID)
	})

	t.Run("excludes matched users", func(t *testing.T) {
		svc, fake := newDiscoveryFixture()
		seedNearbyScenario(t, fake)
		fake.seed(models.MatchesTable, models.Match{
			PairKey: models.MatchPairKey("alice", "bob"),
			MatchID: "m1", User1: "alice", User2: "bob",
		})

		results, err := svc.GetDiscoverProfiles(ctx, "alice", nearbyFilters, 0)
		require.NoError(t, err)
		for _, result := range results {
			assert.NotEqual(t, "bob", result.UserID)
		}
	})

	t.Run("a discovery read sweeps lapsed cooldowns", func(t *testing.T) {
		svc, fake := newDiscoveryFixture()
		seedNearbyScenario(t, fake)
		fake.seed(models.InteractionsTable, newDislike("alice", "zed", time.Now().Add(-25*time.Hour)))

		_, err := svc.GetDiscoverProfiles(ctx, "alice", nearbyFilters, 0)
		require.NoError(t, err)
		assert.Zero(t, fake.count(models.InteractionsTable), "the read path deletes expired dislikes")
	})

	t.Run("pages past the end are empty", func(t *testing.T) {
		svc, fake := newDiscoveryFixture()
		seedNearbyScenario(t, fake)

		results, err := svc.GetDiscoverProfiles(ctx, "alice", nearbyFilters, 7)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("rejects invalid filters", func(t *testing.T) {
		svc, fake := newDiscoveryFixture()
		seedNearbyScenario(t, fake)

		bad := nearbyFilters
		bad.Gender = "unknown"
		_, err := svc.GetDiscoverProfiles(ctx, "alice", bad, 0)
		assert.True(t, errors.Is(err, models.ErrValidation))

		bad = nearbyFilters
		bad.MaxDistanceMeters = 0
		_, err = svc.GetDiscoverProfiles(ctx, "alice", bad, 0)
		assert.True(t, errors.Is(err, models.ErrValidation))

		_, err = svc.GetDiscoverProfiles(ctx, "alice", nearbyFilters, -1)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("unknown owner is not found", func(t *testing.T) {
		svc, _ := newDiscoveryFixture()
		_, err := svc.GetDiscoverProfiles(ctx, "ghost", nearbyFilters, 0)
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})
}

func TestBasicDiscovery(t *testing.T) {
	ctx := context.Background()

	t.Run("owner without coordinates gets the degraded path", func(t *testing.T) {
		svc, fake := newDiscoveryFixture()
		seedProfile(t, fake, models.UserProfile{UserID: "alice", Age: 30, Gender: "female", InterestedIn: "male"})
		seedProfile(t, fake, models.UserProfile{UserID: "bob", Age: 30, Gender: "male", InterestedIn: "female"})
		seedProfile(t, fake, models.UserProfile{UserID: "frank", Age: 50, Gender: "male", InterestedIn: "female"})
		require.NoError(t, svc.Interactions.Dislike(ctx, "alice", "carol"))

		results, err := svc.GetDiscoverProfiles(ctx, "alice", nearbyFilters, 0)
		require.NoError(t, err)

		require.Len(t, results, 1)
		assert.Equal(t, "bob", results[0].UserID)
		assert.Zero(t, fake.count(models.DiscoveryQueueTable), "the degraded path builds no queue")
	})
}

func TestPopulateQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps at most QueueTarget entries", func(t *testing.T) {
		svc, fake := newDiscoveryFixture()
		svc.QueueTarget = 3
		seedProfile(t, fake, models.UserProfile{
			UserID: "alice", Age: 30, Gender: "female", InterestedIn: "male",
			Latitude: ptr(32.0), Longitude: ptr(34.9),
		})
		for i := 0; i < 10; i++ {
			seedProfile(t, fake, models.UserProfile{
				UserID: string(rune('b'+i)) + "-user", Age: 28 + i%5, Gender: "male", InterestedIn: "female",
				Latitude: ptr(32.0 + float64(i)*0.00009), Longitude: ptr(34.9),
			})
		}

		owner, err := svc.Profiles.GetProfile(ctx, "alice")
		require.NoError(t, err)
		require.NoError(t, svc.PopulateQueue(ctx, owner, nearbyFilters))

		assert.Equal(t, 3, fake.count(models.DiscoveryQueueTable))
	})

	t.Run("does not duplicate queued candidates", func(t *testing.T) {
		svc, fake := newDiscoveryFixture()
		seedNearbyScenario(t, fake)

		owner, err := svc.Profiles.GetProfile(ctx, "alice")
		require.NoError(t, err)
		require.NoError(t, svc.PopulateQueue(ctx, owner, nearbyFilters))
		first := fake.count(models.DiscoveryQueueTable)
		require.NoError(t, svc.PopulateQueue(ctx, owner, nearbyFilters))

		assert.Equal(t, first, fake.count(models.DiscoveryQueueTable))
	})

	t.Run("requires coordinates", func(t *testing.T) {
		svc, _ := newDiscoveryFixture()
		err := svc.PopulateQueue(ctx, &models.UserProfile{UserID: "alice"}, nearbyFilters)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})
}
