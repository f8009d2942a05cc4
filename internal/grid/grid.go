// Package grid partitions a venue bounding box into a static grid of
// fixed-size tiles and resolves positions to tiles.
package grid

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

// metersPerDegreeLat is the flat-earth conversion factor used throughout.
// The longitude factor is scaled by the cosine of the box's top latitude,
// computed once at build time. This ignores latitude-dependent longitude
// compression across the box; for venue-sized areas the error is well under
// a tile. Known approximation, kept for parity with the stored tilesets.
const metersPerDegreeLat = 111320.0

// Coordinate is a WGS84 position in (lon, lat) order, matching GeoJSON.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// BoundingBox is the venue extent, defined by its northwest and southeast
// corners.
type BoundingBox struct {
	TopLeft     Coordinate `json:"topLeft"`
	BottomRight Coordinate `json:"bottomRight"`
}

// Validate checks that the box is non-degenerate and within WGS84 bounds.
func (b BoundingBox) Validate() error {
	for _, c := range []Coordinate{b.TopLeft, b.BottomRight} {
		if c.Lon < -180 || c.Lon > 180 || c.Lat < -90 || c.Lat > 90 {
			return eris.Errorf("grid: coordinate out of range: (%f, %f)", c.Lon, c.Lat)
		}
	}
	if b.TopLeft.Lat <= b.BottomRight.Lat {
		return eris.New("grid: top-left latitude must be north of bottom-right")
	}
	if b.TopLeft.Lon >= b.BottomRight.Lon {
		return eris.New("grid: top-left longitude must be west of bottom-right")
	}
	return nil
}

// Tile is one rectangular cell of the grid. Bounds are half-open: a tile
// owns its top and left edges, its southern and eastern neighbors own the
// others.
type Tile struct {
	ID      string
	Row     int
	Col     int
	TopLeft Coordinate
	// BottomRight is the exclusive corner of the tile.
	BottomRight Coordinate
}

// Centroid returns the tile's center point.
func (t Tile) Centroid() Coordinate {
	return Coordinate{
		Lon: (t.TopLeft.Lon + t.BottomRight.Lon) / 2,
		Lat: (t.TopLeft.Lat + t.BottomRight.Lat) / 2,
	}
}

// Grid is an immutable row-major partition of a bounding box, numbered from
// the northwest corner.
type Grid struct {
	box            BoundingBox
	tileSizeMeters float64
	rows, cols     int
	tileLatDeg     float64
	tileLonDeg     float64
	tiles          []Tile
	byID           map[string]*Tile
}

// TileID formats the canonical id for a (row, col) pair. Ids are assigned
// exactly once at build time; everything downstream keys on them.
func TileID(row, col int) string {
	return fmt.Sprintf("tile_%d_%d", row, col)
}

// Build constructs the grid. Tile counts round up so the tiles cover the box
// completely; the last row and column may extend slightly past it.
func Build(box BoundingBox, tileSizeMeters float64) (*Grid, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}
	if tileSizeMeters <= 0 {
		return nil, eris.Errorf("grid: tile size must be positive, got %f", tileSizeMeters)
	}

	degPerMeterLat := 1.0 / metersPerDegreeLat
	degPerMeterLon := 1.0 / (metersPerDegreeLat * math.Cos(box.TopLeft.Lat*math.Pi/180))

	heightMeters := (box.TopLeft.Lat - box.BottomRight.Lat) / degPerMeterLat
	widthMeters := (box.BottomRight.Lon - box.TopLeft.Lon) / degPerMeterLon

	g := &Grid{
		box:            box,
		tileSizeMeters: tileSizeMeters,
		rows:           int(math.Ceil(heightMeters / tileSizeMeters)),
		cols:           int(math.Ceil(widthMeters / tileSizeMeters)),
		tileLatDeg:     tileSizeMeters * degPerMeterLat,
		tileLonDeg:     tileSizeMeters * degPerMeterLon,
	}

	g.tiles = make([]Tile, 0, g.rows*g.cols)
	g.byID = make(map[string]*Tile, g.rows*g.cols)
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			tl := Coordinate{
				Lon: box.TopLeft.Lon + float64(col)*g.tileLonDeg,
				Lat: box.TopLeft.Lat - float64(row)*g.tileLatDeg,
			}
			g.tiles = append(g.tiles, Tile{
				ID:          TileID(row, col),
				Row:         row,
				Col:         col,
				TopLeft:     tl,
				BottomRight: Coordinate{Lon: tl.Lon + g.tileLonDeg, Lat: tl.Lat - g.tileLatDeg},
			})
		}
	}
	for i := range g.tiles {
		g.byID[g.tiles[i].ID] = &g.tiles[i]
	}

	return g, nil
}

// Rows returns the number of tile rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of tile columns.
func (g *Grid) Cols() int { return g.cols }

// TileSizeMeters returns the configured tile edge length.
func (g *Grid) TileSizeMeters() float64 { return g.tileSizeMeters }

// Box returns the bounding box the grid was built from.
func (g *Grid) Box() BoundingBox { return g.box }

// Tiles returns all tiles in row-major order. The slice is shared; callers
// must not mutate it.
func (g *Grid) Tiles() []Tile { return g.tiles }

// TileByID looks up a tile by its canonical id.
func (g *Grid) TileByID(id string) (Tile, bool) {
	t, ok := g.byID[id]
	if !ok {
		return Tile{}, false
	}
	return *t, true
}

// Resolve maps a position to its tile using half-open interval membership.
// The second return is false for positions outside the grid.
func (g *Grid) Resolve(lon, lat float64) (Tile, bool) {
	if lat > g.box.TopLeft.Lat || lon < g.box.TopLeft.Lon {
		return Tile{}, false
	}
	row := int(math.Floor((g.box.TopLeft.Lat - lat) / g.tileLatDeg))
	col := int(math.Floor((lon - g.box.TopLeft.Lon) / g.tileLonDeg))
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return Tile{}, false
	}
	return *g.byID[TileID(row, col)], true
}

// Neighbors returns the ids of the up-to-8 tiles adjacent to tileID,
// excluding the tile itself and anything off-grid. Order is row-major.
// Unknown ids yield an empty result.
func (g *Grid) Neighbors(tileID string) []string {
	t, ok := g.byID[tileID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, 8)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			r, c := t.Row+dr, t.Col+dc
			if r < 0 || r >= g.rows || c < 0 || c >= g.cols {
				continue
			}
			ids = append(ids, TileID(r, c))
		}
	}
	return ids
}
