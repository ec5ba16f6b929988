package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"spark_server/models"

	"github.com/mmcloughlin/geohash"
)

// ProfileGeohashPrecision is the precision profiles are indexed at. A
// precision-8 cell is roughly 38m x 19m, comparable to the smallest
// supported search radius.
const ProfileGeohashPrecision = 8

// HashRange is a contiguous geohash interval, inclusive on both ends.
type HashRange struct {
	Lower string
	Upper string
}

// Contains reports whether hash falls inside the range.
func (r HashRange) Contains(hash string) bool {
	return hash >= r.Lower && hash <= r.Upper
}

// Approximate geohash cell dimensions in meters per precision. Width is the
// equatorial value and shrinks with cos(latitude).
var (
	cellWidthMeters  = map[uint]float64{1: 5009400, 2: 1252300, 3: 156500, 4: 39100, 5: 4890, 6: 1220, 7: 153, 8: 38.2}
	cellHeightMeters = map[uint]float64{1: 4992600, 2: 624100, 3: 156000, 4: 19500, 5: 4890, 6: 610, 7: 152.4, 8: 19}
)

const geohashBase32 = "0123456789bcdefghjkmnpqrstuvwxyz"

type GeoService struct{}

func NewGeoService() *GeoService { return &GeoService{} }

func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return fmt.Errorf("%w: invalid coordinates (%f, %f)", models.ErrValidation, lat, lon)
	}
	return nil
}

// Encode returns the profile-precision spatial hash for a coordinate.
func (g *GeoService) Encode(lat, lon float64) (string, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return "", err
	}
	return geohash.EncodeWithPrecision(lat, lon, ProfileGeohashPrecision), nil
}

// QueryBounds returns hash-interval ranges whose union conservatively covers
// the circle of radiusMeters around the center. Cells are rectangular, so the
// union is a superset of the circle: callers must post-filter with exact
// great-circle distance. A circle straddling a geohash prefix boundary yields
// more than one range.
func (g *GeoService) QueryBounds(lat, lon, radiusMeters float64) ([]HashRange, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", models.ErrValidation)
	}

	precision := coverPrecision(lat, radiusMeters)

	// One cell spans the radius at this precision, so the center cell plus
	// its eight neighbors always contains the circle.
	center := geohash.EncodeWithPrecision(lat, lon, precision)
	cells := append(geohash.Neighbors(center), center)
	sort.Strings(cells)

	// Merge lexicographically consecutive cells into single intervals.
	var ranges []HashRange
	runStart, prev := cells[0], cells[0]
	for _, cell := range cells[1:] {
		if cell == prev {
			continue
		}
		if incrementGeohash(prev) == cell {
			prev = cell
			continue
		}
		ranges = append(ranges, cellRange(runStart, prev))
		runStart, prev = cell, cell
	}
	ranges = append(ranges, cellRange(runStart, prev))
	return ranges, nil
}

// cellRange spans the interval from the first cell to the end of the last,
// padded out to profile precision so BETWEEN comparisons cover every stored
// hash under the prefix.
func cellRange(first, last string) HashRange {
	return HashRange{
		Lower: first,
		Upper: last + strings.Repeat("z", ProfileGeohashPrecision-len(last)),
	}
}

// coverPrecision picks the finest precision whose smallest cell edge still
// covers the radius. Cell width in meters shrinks toward the poles, so the
// equatorial width is scaled by cos(latitude) before comparing.
func coverPrecision(lat, radiusMeters float64) uint {
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	for p := uint(ProfileGeohashPrecision); p > 1; p-- {
		minEdge := math.Min(cellWidthMeters[p]*cosLat, cellHeightMeters[p])
		if minEdge >= radiusMeters {
			return p
		}
	}
	return 1
}

// incrementGeohash returns the lexicographic successor of a geohash at the
// same length, or "" when there is none (all 'z').
func incrementGeohash(hash string) string {
	b := []byte(hash)
	for i := len(b) - 1; i >= 0; i-- {
		idx := strings.IndexByte(geohashBase32, b[i])
		if idx < len(geohashBase32)-1 {
			b[i] = geohashBase32[idx+1]
			return string(b)
		}
		b[i] = geohashBase32[0]
	}
	return ""
}
