// Package poi ranks venue points of interest for a visitor by combining
// walking distance with the current crowd at each POI.
package poi

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/wiesnflow/crowdgrid/internal/grid"
)

// Type classifies a point of interest.
type Type string

const (
	TypeTent          Type = "tent"
	TypeRollerCoaster Type = "roller_coaster"
	TypeFood          Type = "food"
)

// TypeAll is the filter value matching every POI type.
const TypeAll Type = "all"

// Valid reports whether t is a known POI type.
func (t Type) Valid() bool {
	switch t {
	case TypeTent, TypeRollerCoaster, TypeFood:
		return true
	}
	return false
}

// POI is one named attraction inside the venue.
type POI struct {
	ID    string          `json:"id" yaml:"id"`
	Name  string          `json:"name" yaml:"name"`
	Type  Type            `json:"type" yaml:"type"`
	Coord grid.Coordinate `json:"coord" yaml:"coord"`
}

// DefaultDistancePreference weighs distance and crowd equally.
const DefaultDistancePreference = 0.5

// DefaultLimit is the number of recommendations returned.
const DefaultLimit = 3

const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance between two coordinates in
// meters.
func Haversine(a, b grid.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Recommendation is one scored POI. Lower scores rank first.
type Recommendation struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     Type    `json:"type"`
	Distance float64 `json:"distance"`
	Count    int     `json:"count"`
	Score    float64 `json:"score"`
}

// Recommender scores POIs against crowd snapshots. It is a stateless reader
// over the grid, like the route evaluator.
type Recommender struct {
	grid *grid.Grid
	pois []POI
}

// NewRecommender creates a recommender over the given POI registry.
func NewRecommender(g *grid.Grid, pois []POI) *Recommender {
	return &Recommender{grid: g, pois: pois}
}

// Recommend scores every POI matching the type filter against the visitor's
// position and the count snapshot, and returns the best limit entries.
//
// score = distancePreference*distance + (1-distancePreference)*count, sorted
// ascending. A POI whose coordinate falls outside the grid scores with count
// zero: no crowd evidence, same fail-open stance as route evaluation. The
// distance preference must lie in [0,1].
func (r *Recommender) Recommend(user grid.Coordinate, counts map[string]int, distancePreference float64, filter Type, limit int) ([]Recommendation, error) {
	if distancePreference < 0 || distancePreference > 1 {
		return nil, eris.Errorf("poi: distance preference %f outside [0,1]", distancePreference)
	}
	if filter != TypeAll && !filter.Valid() {
		return nil, eris.Errorf("poi: unknown type filter %q", filter)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	countPreference := 1 - distancePreference

	recs := make([]Recommendation, 0, len(r.pois))
	for _, p := range r.pois {
		if filter != TypeAll && p.Type != filter {
			continue
		}

		count := 0
		if tile, ok := r.grid.Resolve(p.Coord.Lon, p.Coord.Lat); ok {
			count = counts[tile.ID]
		}
		distance := Haversine(user, p.Coord)

		recs = append(recs, Recommendation{
			ID:       p.ID,
			Name:     p.Name,
			Type:     p.Type,
			Distance: distance,
			Count:    count,
			Score:    distancePreference*distance + countPreference*float64(count),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score < recs[j].Score })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}
