// Package route classifies station-to-entrance links as available or
// blocked based on crowd counts around each entrance.
package route

import (
	"go.uber.org/zap"

	"github.com/wiesnflow/crowdgrid/internal/grid"
)

// DefaultThreshold is the per-tile count above which a tile is considered
// overcrowded. Configurable; this default matches the shipped client.
const DefaultThreshold = 60

// Status classifies an entrance link.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBlocked   Status = "blocked"
)

// Station is a transit stop near the venue.
type Station struct {
	ID    string          `json:"id" yaml:"id"`
	Name  string          `json:"name" yaml:"name"`
	Coord grid.Coordinate `json:"coord" yaml:"coord"`
}

// Entrance is a venue entry point.
type Entrance struct {
	ID    string          `json:"id" yaml:"id"`
	Name  string          `json:"name" yaml:"name"`
	Coord grid.Coordinate `json:"coord" yaml:"coord"`
}

// Adjacency maps a station id to the entrance ids it connects to. The table
// is static configuration supplied externally, never computed here.
type Adjacency map[string][]string

// EntranceLink is one station-to-entrance routing edge with its derived
// availability. Derived on demand, never persisted.
type EntranceLink struct {
	StationID  string          `json:"stationId"`
	EntranceID string          `json:"entranceId"`
	Midpoint   grid.Coordinate `json:"midpoint"`
	Status     Status          `json:"status"`
}

// Evaluator derives link availability from a crowd-count snapshot. It is a
// stateless reader over the grid.
type Evaluator struct {
	grid      *grid.Grid
	threshold int
}

// NewEvaluator creates an evaluator. A non-positive threshold falls back to
// DefaultThreshold.
func NewEvaluator(g *grid.Grid, threshold int) *Evaluator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Evaluator{grid: g, threshold: threshold}
}

// Evaluate returns one link per (station, entrance) pair in the adjacency
// table, in station slice order then configured entrance order. A link is
// blocked when the entrance's tile or any of its neighbors exceeds the
// threshold. Entrances that do not resolve to a tile fail open: an
// unresolvable coordinate means no overcrowding evidence, not an error.
func (e *Evaluator) Evaluate(stations []Station, entrances []Entrance, counts map[string]int, adj Adjacency) []EntranceLink {
	byID := make(map[string]Entrance, len(entrances))
	for _, ent := range entrances {
		byID[ent.ID] = ent
	}

	var links []EntranceLink
	for _, st := range stations {
		for _, entID := range adj[st.ID] {
			ent, ok := byID[entID]
			if !ok {
				zap.L().Warn("route: adjacency references unknown entrance",
					zap.String("station", st.ID), zap.String("entrance", entID))
				continue
			}
			links = append(links, EntranceLink{
				StationID:  st.ID,
				EntranceID: ent.ID,
				Midpoint:   midpoint(st.Coord, ent.Coord),
				Status:     e.status(ent, counts),
			})
		}
	}
	return links
}

func (e *Evaluator) status(ent Entrance, counts map[string]int) Status {
	tile, ok := e.grid.Resolve(ent.Coord.Lon, ent.Coord.Lat)
	if !ok {
		return StatusAvailable
	}
	if counts[tile.ID] > e.threshold {
		return StatusBlocked
	}
	for _, n := range e.grid.Neighbors(tile.ID) {
		if counts[n] > e.threshold {
			return StatusBlocked
		}
	}
	return StatusAvailable
}

func midpoint(a, b grid.Coordinate) grid.Coordinate {
	return grid.Coordinate{Lon: (a.Lon + b.Lon) / 2, Lat: (a.Lat + b.Lat) / 2}
}
