package services

import (
	"math"

	"spark_server/models"
)

// ScoreService ranks candidates for discovery. Pure computation, no I/O.
//
// Distance and age gap dominate because they are hard filters elsewhere in
// the pipeline; shared interests are the strongest positive signal; presence
// and profile completeness break ties.
type ScoreService struct{}

func NewScoreService() *ScoreService { return &ScoreService{} }

// Score computes a 0-100 compatibility score for candidate from self's
// perspective at the given exact distance.
func (s *ScoreService) Score(self, candidate *models.UserProfile, distanceMeters float64) int {
	score := 100.0

	score -= math.Min(distanceMeters/1000*2, 30)
	score -= math.Min(math.Abs(float64(self.Age-candidate.Age))*2, 20)
	score += math.Min(float64(sharedInterestCount(self, candidate))*4, 20)

	if candidate.IsOnline {
		score += 10
	}
	if candidate.HasPhoto {
		score += 10
	}
	if len(candidate.Bio) > 20 {
		score += 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(math.Round(score))
}

func sharedInterestCount(a, b *models.UserProfile) int {
	if len(a.Interests) == 0 || len(b.Interests) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a.Interests))
	for _, interest := range a.Interests {
		set[interest] = struct{}{}
	}
	count := 0
	for _, interest := range b.Interests {
		if _, ok := set[interest]; ok {
			count++
		}
	}
	return count
}
