package models

import "time"

// Interaction Types (like, dislike)
const (
	InteractionTypeLike    = "like"
	InteractionTypeDislike = "dislike"
)

// Lifetimes for derived state
const (
	DislikeCooldown = 24 * time.Hour      // dislikes expire and stop excluding
	QueueEntryTTL   = 7 * 24 * time.Hour  // discovery queue entries
	MatchTTL        = 30 * 24 * time.Hour // matches
)
