package services

import (
	"context"
	"fmt"

	"spark_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ProfileService owns user profile storage. The spatial hash is recomputed
// whenever coordinates change so the geohash index never lags the location.
type ProfileService struct {
	Dynamo DynamoAPI
	Geo    *GeoService
	Logger zerolog.Logger

	validate *validator.Validate
}

func NewProfileService(dynamo DynamoAPI, geo *GeoService, logger zerolog.Logger) *ProfileService {
	return &ProfileService{Dynamo: dynamo, Geo: geo, Logger: logger, validate: validator.New()}
}

type profileInput struct {
	UserID       string `validate:"required"`
	Age          int    `validate:"gte=18,lte=100"`
	Gender       string `validate:"required,oneof=male female nonbinary"`
	InterestedIn string `validate:"required,oneof=male female nonbinary"`
}

// AddUserProfile validates and stores a new profile, deriving the spatial
// hash when coordinates are present.
func (ps *ProfileService) AddUserProfile(ctx context.Context, profile models.UserProfile) (*models.UserProfile, error) {
	input := profileInput{
		UserID:       profile.UserID,
		Age:          profile.Age,
		Gender:       profile.Gender,
		InterestedIn: profile.InterestedIn,
	}
	if err := ps.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	if profile.HasCoordinates() {
		hash, err := ps.Geo.Encode(*profile.Latitude, *profile.Longitude)
		if err != nil {
			return nil, err
		}
		profile.Geohash = hash
	}

	if err := ps.Dynamo.PutItem(ctx, models.UserProfilesTable, profile); err != nil {
		return nil, err
	}
	ps.Logger.Info().Str("userId", profile.UserID).Msg("profile created")
	return &profile, nil
}

// GetProfile retrieves a user profile by id. (nil, nil) when absent.
func (ps *ProfileService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}
	item, err := ps.Dynamo.GetItem(ctx, models.UserProfilesTable, key)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	var profile models.UserProfile
	if err := attributevalue.UnmarshalMap(item, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}

// UpdateLocation stores new coordinates and the derived spatial hash in one
// update.
func (ps *ProfileService) UpdateLocation(ctx context.Context, userID string, lat, lon float64) (*models.UserProfile, error) {
	hash, err := ps.Geo.Encode(lat, lon)
	if err != nil {
		return nil, err
	}

	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}
	updateExpression := "SET latitude = :lat, longitude = :lon, geohash = :hash"
	expressionValues := map[string]types.AttributeValue{
		":lat":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%f", lat)},
		":lon":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%f", lon)},
		":hash": &types.AttributeValueMemberS{Value: hash},
	}

	updated, err := ps.Dynamo.UpdateItem(ctx, models.UserProfilesTable, updateExpression, key, expressionValues, nil)
	if err != nil {
		return nil, err
	}

	var profile models.UserProfile
	if err := attributevalue.UnmarshalMap(updated, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated profile: %w", err)
	}
	return &profile, nil
}

// allowedProfileUpdates are the mutable fields accepted by UpdateProfile.
// Unknown fields are rejected at the store boundary instead of passed through.
var allowedProfileUpdates = map[string]struct{}{
	"name": {}, "age": {}, "gender": {}, "interestedIn": {}, "interests": {},
	"bio": {}, "isOnline": {}, "photos": {},
}

// UpdateProfile applies a partial update. Coordinates go through
// UpdateLocation so the geohash can never be skipped.
func (ps *ProfileService) UpdateProfile(ctx context.Context, userID string, updates map[string]interface{}) (*models.UserProfile, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", models.ErrValidation)
	}

	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}

	updateExpression := "SET"
	expressionAttributeValues := make(map[string]types.AttributeValue)
	expressionAttributeNames := make(map[string]string)

	for k, v := range updates {
		if _, ok := allowedProfileUpdates[k]; !ok {
			return nil, fmt.Errorf("%w: unknown profile field '%s'", models.ErrValidation, k)
		}
		attr, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: unsupported value for field '%s'", models.ErrValidation, k)
		}
		placeholder := ":" + k
		attributeName := "#" + k
		updateExpression += " " + attributeName + " = " + placeholder + ","
		expressionAttributeValues[placeholder] = attr
		expressionAttributeNames[attributeName] = k
	}
	updateExpression = updateExpression[:len(updateExpression)-1]

	updatedItem, err := ps.Dynamo.UpdateItem(ctx, models.UserProfilesTable, updateExpression, key, expressionAttributeValues, expressionAttributeNames)
	if err != nil {
		return nil, err
	}

	var updatedProfile models.UserProfile
	if err := attributevalue.UnmarshalMap(updatedItem, &updatedProfile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated profile: %w", err)
	}
	return &updatedProfile, nil
}

// SetHasPhoto records a confirmed photo upload.
func (ps *ProfileService) SetHasPhoto(ctx context.Context, userID, photoKey string) error {
	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}
	updateExpression := "SET hasPhoto = :true, photos = list_append(if_not_exists(photos, :empty), :photo)"
	expressionValues := map[string]types.AttributeValue{
		":true":  &types.AttributeValueMemberBOOL{Value: true},
		":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		":photo": &types.AttributeValueMemberL{Value: []types.AttributeValue{&types.AttributeValueMemberS{Value: photoKey}}},
	}
	_, err := ps.Dynamo.UpdateItem(ctx, models.UserProfilesTable, updateExpression, key, expressionValues, nil)
	return err
}

// QueryByHashRange fetches candidates whose spatial hash falls inside the
// range, filtered server-side by gender via the GSI partition key. Age is
// deliberately not filtered here: the store offers one sort key per index,
// and it is spent on the hash range.
func (ps *ProfileService) QueryByHashRange(ctx context.Context, r HashRange, gender string, limit int32) ([]models.UserProfile, error) {
	keyCondition := "gender = :gender AND geohash BETWEEN :lower AND :upper"
	expressionValues := map[string]types.AttributeValue{
		":gender": &types.AttributeValueMemberS{Value: gender},
		":lower":  &types.AttributeValueMemberS{Value: r.Lower},
		":upper":  &types.AttributeValueMemberS{Value: r.Upper},
	}

	items, err := ps.Dynamo.QueryItemsWithIndex(ctx, models.UserProfilesTable, models.GenderGeohashIndex, keyCondition, expressionValues, nil, limit)
	if err != nil {
		return nil, err
	}

	var profiles []models.UserProfile
	if err := attributevalue.UnmarshalListOfMaps(items, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal candidate profiles: %w", err)
	}
	return profiles, nil
}

// ScanByFilters is the degraded discovery path for owners without
// coordinates: a filtered scan by gender and age only.
func (ps *ProfileService) ScanByFilters(ctx context.Context, excludeUserID string, filters models.DiscoveryFilters) ([]models.UserProfile, error) {
	var profiles []models.UserProfile
	err := ps.Dynamo.ScanWithFilter(ctx, models.UserProfilesTable, func(item map[string]types.AttributeValue) bool {
		var candidate models.UserProfile
		if err := attributevalue.UnmarshalMap(item, &candidate); err != nil {
			return false
		}
		return candidate.Gender == filters.Gender && filters.AgeInRange(candidate.Age)
	}, map[string]string{"userId": excludeUserID}, &profiles)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// DeleteUserProfile removes a user profile
func (ps *ProfileService) DeleteUserProfile(ctx context.Context, userID string) error {
	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}
	return ps.Dynamo.DeleteItem(ctx, models.UserProfilesTable, key)
}

// touch for presence: isOnline flips on connect/disconnect
func (ps *ProfileService) SetOnline(ctx context.Context, userID string, online bool) error {
	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}
	updateExpression := "SET isOnline = :online"
	expressionValues := map[string]types.AttributeValue{
		":online": &types.AttributeValueMemberBOOL{Value: online},
	}
	_, err := ps.Dynamo.UpdateItem(ctx, models.UserProfilesTable, updateExpression, key, expressionValues, nil)
	return err
}
