package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiesnflow/crowdgrid/internal/grid"
)

func testGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.Build(grid.BoundingBox{
		TopLeft:     grid.Coordinate{Lon: 11.544973, Lat: 48.136293},
		BottomRight: grid.Coordinate{Lon: 11.553518, Lat: 48.126496},
	}, 50)
	require.NoError(t, err)
	return g
}

func fixtures(g *grid.Grid) ([]Station, []Entrance, Adjacency) {
	tile, _ := g.TileByID("tile_5_5")
	c := tile.Centroid()

	stations := []Station{
		{ID: "st_theresienwiese", Name: "U Theresienwiese", Coord: grid.Coordinate{Lon: 11.5449, Lat: 48.1358}},
	}
	entrances := []Entrance{
		{ID: "ent_main", Name: "Main entrance", Coord: c},
	}
	adj := Adjacency{"st_theresienwiese": {"ent_main"}}
	return stations, entrances, adj
}

func zeroCounts(g *grid.Grid) map[string]int {
	counts := make(map[string]int)
	for _, t := range g.Tiles() {
		counts[t.ID] = 0
	}
	return counts
}

func TestEvaluate_QuietGridAvailable(t *testing.T) {
	g := testGrid(t)
	stations, entrances, adj := fixtures(g)
	counts := zeroCounts(g)
	counts["tile_5_5"] = 60 // at threshold, not above

	links := NewEvaluator(g, 60).Evaluate(stations, entrances, counts, adj)
	require.Len(t, links, 1)
	assert.Equal(t, StatusAvailable, links[0].Status)
}

func TestEvaluate_OwnTileOverThresholdBlocks(t *testing.T) {
	g := testGrid(t)
	stations, entrances, adj := fixtures(g)
	counts := zeroCounts(g)
	counts["tile_5_5"] = 61

	links := NewEvaluator(g, 60).Evaluate(stations, entrances, counts, adj)
	require.Len(t, links, 1)
	assert.Equal(t, StatusBlocked, links[0].Status)
}

// Raising any single neighbor above the threshold flips the link to blocked.
func TestEvaluate_AnyNeighborFlipsToBlocked(t *testing.T) {
	g := testGrid(t)
	stations, entrances, adj := fixtures(g)

	for _, neighbor := range g.Neighbors("tile_5_5") {
		counts := zeroCounts(g)
		counts[neighbor] = 61

		links := NewEvaluator(g, 60).Evaluate(stations, entrances, counts, adj)
		require.Len(t, links, 1)
		assert.Equal(t, StatusBlocked, links[0].Status, "neighbor %s", neighbor)
	}
}

func TestEvaluate_NonNeighborDoesNotBlock(t *testing.T) {
	g := testGrid(t)
	stations, entrances, adj := fixtures(g)
	counts := zeroCounts(g)
	counts["tile_20_10"] = 500

	links := NewEvaluator(g, 60).Evaluate(stations, entrances, counts, adj)
	require.Len(t, links, 1)
	assert.Equal(t, StatusAvailable, links[0].Status)
}

// An entrance outside the grid fails open rather than erroring.
func TestEvaluate_UnresolvableEntranceFailsOpen(t *testing.T) {
	g := testGrid(t)
	stations := []Station{{ID: "st_1", Coord: grid.Coordinate{Lon: 11.5449, Lat: 48.1358}}}
	entrances := []Entrance{{ID: "ent_far", Coord: grid.Coordinate{Lon: 13.40, Lat: 52.52}}}
	adj := Adjacency{"st_1": {"ent_far"}}

	counts := zeroCounts(g)
	for id := range counts {
		counts[id] = 999
	}

	links := NewEvaluator(g, 60).Evaluate(stations, entrances, counts, adj)
	require.Len(t, links, 1)
	assert.Equal(t, StatusAvailable, links[0].Status)
}

func TestEvaluate_MidpointAndOrdering(t *testing.T) {
	g := testGrid(t)
	tileA, _ := g.TileByID("tile_3_3")
	tileB, _ := g.TileByID("tile_8_8")

	stations := []Station{
		{ID: "st_b", Coord: grid.Coordinate{Lon: 11.546, Lat: 48.135}},
		{ID: "st_a", Coord: grid.Coordinate{Lon: 11.552, Lat: 48.128}},
	}
	entrances := []Entrance{
		{ID: "ent_1", Coord: tileA.Centroid()},
		{ID: "ent_2", Coord: tileB.Centroid()},
	}
	adj := Adjacency{
		"st_b": {"ent_2", "ent_1"},
		"st_a": {"ent_1"},
	}

	links := NewEvaluator(g, 0).Evaluate(stations, entrances, zeroCounts(g), adj)
	require.Len(t, links, 3)

	// Station slice order, then configured entrance order within a station.
	assert.Equal(t, "st_b", links[0].StationID)
	assert.Equal(t, "ent_2", links[0].EntranceID)
	assert.Equal(t, "ent_1", links[1].EntranceID)
	assert.Equal(t, "st_a", links[2].StationID)

	mid := links[2].Midpoint
	assert.InDelta(t, (stations[1].Coord.Lon+tileA.Centroid().Lon)/2, mid.Lon, 1e-12)
	assert.InDelta(t, (stations[1].Coord.Lat+tileA.Centroid().Lat)/2, mid.Lat, 1e-12)
}

func TestEvaluate_UnknownEntranceSkipped(t *testing.T) {
	g := testGrid(t)
	stations, entrances, _ := fixtures(g)
	adj := Adjacency{"st_theresienwiese": {"ent_missing", "ent_main"}}

	links := NewEvaluator(g, 60).Evaluate(stations, entrances, zeroCounts(g), adj)
	require.Len(t, links, 1)
	assert.Equal(t, "ent_main", links[0].EntranceID)
}
