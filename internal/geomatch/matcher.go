// Package geomatch finds open complaints near a reported location so
// duplicate public submissions can be surfaced instead of created.
package geomatch

import (
	"math"
	"time"

	"civicpulse/backend/internal/models"
	"civicpulse/backend/internal/storage"
)

// EarthRadiusMeters is the spherical-earth approximation used by the
// haversine distance; no ellipsoid correction is applied.
const EarthRadiusMeters = 6371000

// MaxCandidates caps how many duplicate candidates are returned.
const MaxCandidates = 5

// DefaultMaxAgeDays bounds candidate age when the caller passes zero.
const DefaultMaxAgeDays = 180

// HaversineMeters returns the great-circle distance between two
// lat/lng points in meters.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(a))
}

// AdaptiveRadius derives the submission guard-rail radius from the
// reported GPS accuracy: clamp(accuracy*2, 25, 150) meters. Used to
// check photo EXIF coordinates against the selected spot, not for
// duplicate search.
func AdaptiveRadius(accuracyM float64) float64 {
	r := accuracyM * 2
	if r < 25 {
		return 25
	}
	if r > 150 {
		return 150
	}
	return r
}

// BucketRadius picks the duplicate-search radius from the reported GPS
// accuracy in coarse buckets of 25, 50 or 100 meters.
func BucketRadius(accuracyM float64) float64 {
	switch {
	case accuracyM <= 25:
		return 25
	case accuracyM <= 50:
		return 50
	default:
		return 100
	}
}

// Matcher answers proximity queries against the complaint store.
// It is a pure read: no query mutates anything, and an empty result
// simply means it is safe to create a new complaint.
type Matcher struct {
	Storage storage.Storage
	Now     func() time.Time
}

// NewMatcher creates a Matcher backed by the given storage.
func NewMatcher(s storage.Storage) *Matcher {
	return &Matcher{Storage: s, Now: time.Now}
}

// FindSimilar returns up to MaxCandidates open complaints of the same
// category (case-insensitive) within radiusM meters of the query point
// and no older than maxAgeDays. Resolved complaints never match.
func (m *Matcher) FindSimilar(category string, lat, lng, radiusM float64, maxAgeDays int) ([]models.Complaint, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}
	since := m.Now().AddDate(0, 0, -maxAgeDays)

	candidates, err := m.Storage.FindSimilarComplaints(category, since)
	if err != nil {
		return nil, err
	}

	var matches []models.Complaint
	for _, c := range candidates {
		if HaversineMeters(lat, lng, c.Latitude, c.Longitude) <= radiusM {
			matches = append(matches, c)
			if len(matches) == MaxCandidates {
				break
			}
		}
	}
	return matches, nil
}
