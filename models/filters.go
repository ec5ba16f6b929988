package models

import (
	"fmt"
	"hash/fnv"
)

// DiscoveryFilters are the caller-supplied preferences for a discovery
// request. Gender is applied server-side (GSI partition key); age is applied
// client-side after the range fetch.
type DiscoveryFilters struct {
	Gender            string  `json:"gender" validate:"required,oneof=male female nonbinary"`
	MinAge            int     `json:"minAge" validate:"gte=18,lte=100"`
	MaxAge            int     `json:"maxAge" validate:"gte=18,lte=100,gtefield=MinAge"`
	MaxDistanceMeters float64 `json:"maxDistanceMeters" validate:"gt=0,lte=100000"`
}

// AgeInRange reports whether age satisfies the filter bounds.
func (f DiscoveryFilters) AgeInRange(age int) bool {
	return age >= f.MinAge && age <= f.MaxAge
}

// Signature folds the filter values into a short stable token used in cache
// keys, so a filter change naturally misses.
func (f DiscoveryFilters) Signature() string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%d|%d|%.0f", f.Gender, f.MinAge, f.MaxAge, f.MaxDistanceMeters)
	return fmt.Sprintf("%08x", h.Sum32())
}
