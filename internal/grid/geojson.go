package grid

// Feature is one tile rendered as a GeoJSON feature.
type Feature struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Properties FeatureProperties `json:"properties"`
	Geometry   Geometry          `json:"geometry"`
	BBox       [4]float64        `json:"bbox"`
}

// FeatureProperties carries the tile identity on each feature.
type FeatureProperties struct {
	TileID string `json:"tileId"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

// Geometry is a GeoJSON polygon in (lon, lat) order.
type Geometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// Metadata describes the tileset as a whole.
type Metadata struct {
	TileSizeMeters float64     `json:"tileSizeMeters"`
	Rows           int         `json:"numTilesHeight"`
	Cols           int         `json:"numTilesWidth"`
	TotalTiles     int         `json:"totalTiles"`
	BoundingBox    BoundingBox `json:"boundingBox"`
}

// FeatureCollection is the static GeoJSON-like tileset handed to rendering
// collaborators.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Metadata Metadata  `json:"metadata"`
	Features []Feature `json:"features"`
}

// FeatureCollection renders the grid as a static tileset. The output depends
// only on the grid configuration and is safe to generate once and cache.
func (g *Grid) FeatureCollection() FeatureCollection {
	features := make([]Feature, 0, len(g.tiles))
	for _, t := range g.tiles {
		tl, br := t.TopLeft, t.BottomRight
		features = append(features, Feature{
			Type: "Feature",
			ID:   t.ID,
			Properties: FeatureProperties{
				TileID: t.ID,
				Row:    t.Row,
				Col:    t.Col,
			},
			Geometry: Geometry{
				Type: "Polygon",
				Coordinates: [][][2]float64{{
					{tl.Lon, tl.Lat},
					{br.Lon, tl.Lat},
					{br.Lon, br.Lat},
					{tl.Lon, br.Lat},
					{tl.Lon, tl.Lat},
				}},
			},
			BBox: [4]float64{tl.Lon, br.Lat, br.Lon, tl.Lat},
		})
	}
	return FeatureCollection{
		Type: "FeatureCollection",
		Metadata: Metadata{
			TileSizeMeters: g.tileSizeMeters,
			Rows:           g.rows,
			Cols:           g.cols,
			TotalTiles:     len(features),
			BoundingBox:    g.box,
		},
		Features: features,
	}
}
