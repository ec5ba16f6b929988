package models

// UserProfile defines the structure for user profiles
type UserProfile struct {
	UserID       string   `dynamodbav:"userId" json:"userId"`
	Name         string   `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Age          int      `dynamodbav:"age" json:"age"`
	Gender       string   `dynamodbav:"gender" json:"gender"`
	InterestedIn string   `dynamodbav:"interestedIn" json:"interestedIn"`
	Interests    []string `dynamodbav:"interests,omitempty" json:"interests,omitempty"`
	Latitude     *float64 `dynamodbav:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude    *float64 `dynamodbav:"longitude,omitempty" json:"longitude,omitempty"`
	Geohash      string   `dynamodbav:"geohash,omitempty" json:"geohash,omitempty"`
	IsOnline     bool     `dynamodbav:"isOnline" json:"isOnline"`
	HasPhoto     bool     `dynamodbav:"hasPhoto" json:"hasPhoto"`
	Photos       []string `dynamodbav:"photos,omitempty" json:"photos,omitempty"`
	Bio          string   `dynamodbav:"bio,omitempty" json:"bio,omitempty"`
}

// HasCoordinates reports whether the profile carries a usable location.
func (p *UserProfile) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// UserProfilesTable is the DynamoDB table name for user profiles
const UserProfilesTable = "UserProfiles"

// GenderGeohashIndex is the GSI used for spatial range queries (PK gender, SK geohash)
const GenderGeohashIndex = "gender-geohash-index"
