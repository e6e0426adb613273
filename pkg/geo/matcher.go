// Package geo resolves coordinates to the nearest active locality.
package geo

import (
	"errors"
	"math"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/golang/geo/s2"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

// EarthRadiusKm is the sphere radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// ErrNotFound is returned when no locality lies within the search radius.
var ErrNotFound = errors.New("no locality within radius")

type point struct {
	locality models.Locality
	ll       s2.LatLng
}

// Match is a resolved locality and its distance from the query point.
type Match struct {
	Locality   models.Locality
	DistanceKm float64
}

// Matcher holds one snapshot of localities. Build one per batch; it is
// read-only and safe for concurrent use.
type Matcher struct {
	points []point
	all    []models.Locality
	logger ectologger.Logger
}

func NewMatcher(localities []models.Locality, logger ectologger.Logger) *Matcher {
	m := &Matcher{logger: logger}
	for _, l := range localities {
		if !l.IsActive {
			continue
		}
		m.all = append(m.all, l)
		if !l.HasCoordinates() {
			continue
		}
		m.points = append(m.points, point{
			locality: l,
			ll:       s2.LatLngFromDegrees(*l.Latitude, *l.Longitude),
		})
	}
	return m
}

// DistanceKm returns the great-circle distance between two coordinates.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return a.Distance(b).Radians() * EarthRadiusKm
}

// FindNearest returns the closest locality within maxDistanceKm. A non-empty
// jurisdictionHint restricts candidates to that jurisdiction code.
func (m *Matcher) FindNearest(lat, lng float64, jurisdictionHint string, maxDistanceKm float64) (Match, error) {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return Match{}, ErrNotFound
	}

	query := s2.LatLngFromDegrees(lat, lng)
	best := Match{DistanceKm: math.Inf(1)}
	found := false
	for _, p := range m.points {
		if jurisdictionHint != "" && !strings.EqualFold(p.locality.JurisdictionCode, jurisdictionHint) {
			continue
		}
		d := query.Distance(p.ll).Radians() * EarthRadiusKm
		if d <= maxDistanceKm && d < best.DistanceKm {
			best = Match{Locality: p.locality, DistanceKm: d}
			found = true
		}
	}

	if !found {
		return Match{}, ErrNotFound
	}
	return best, nil
}

// FindWithWidening searches radiusKm, then once more at radiusKm*widenFactor.
// A widenFactor of 1 or less disables the second pass.
func (m *Matcher) FindWithWidening(lat, lng float64, jurisdictionHint string, radiusKm, widenFactor float64) (Match, error) {
	match, err := m.FindNearest(lat, lng, jurisdictionHint, radiusKm)
	if err == nil {
		metrics.RecordGeoMatch("primary")
		return match, nil
	}
	if widenFactor <= 1 {
		metrics.RecordGeoMatch("not_found")
		return Match{}, err
	}

	widened := radiusKm * widenFactor
	match, err = m.FindNearest(lat, lng, jurisdictionHint, widened)
	if err != nil {
		metrics.RecordGeoMatch("not_found")
		return Match{}, err
	}

	metrics.RecordGeoMatch("widened")
	m.logger.WithFields(map[string]any{
		"locality":    match.Locality.Name,
		"distance_km": match.DistanceKm,
		"radius_km":   widened,
	}).Warnf("widened search matched %s at %.1f km", match.Locality.Name, match.DistanceKm)
	return match, nil
}

// FirstInJurisdiction returns the first active locality of a jurisdiction,
// with or without coordinates.
func (m *Matcher) FirstInJurisdiction(code string) (models.Locality, bool) {
	for _, l := range m.all {
		if strings.EqualFold(l.JurisdictionCode, code) {
			return l, true
		}
	}
	return models.Locality{}, false
}

// Len returns the number of localities usable for distance matching.
func (m *Matcher) Len() int {
	return len(m.points)
}
