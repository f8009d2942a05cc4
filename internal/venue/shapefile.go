package venue

import (
	"fmt"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wiesnflow/crowdgrid/internal/grid"
	"github.com/wiesnflow/crowdgrid/internal/route"
)

// EntrancesFromShapefile reads venue entrances from a point shapefile.
// Attribute fields named "id" and "name" (case-insensitive) populate the
// entrance; records without an id fall back to a generated one. Non-point
// shapes are skipped.
func EntrancesFromShapefile(path string) ([]route.Entrance, error) {
	points, err := readPoints(path)
	if err != nil {
		return nil, err
	}
	out := make([]route.Entrance, len(points))
	for i, p := range points {
		out[i] = route.Entrance{ID: p.id, Name: p.name, Coord: p.coord}
	}
	return out, nil
}

// StationsFromShapefile reads stations from a point shapefile, same field
// conventions as EntrancesFromShapefile.
func StationsFromShapefile(path string) ([]route.Station, error) {
	points, err := readPoints(path)
	if err != nil {
		return nil, err
	}
	out := make([]route.Station, len(points))
	for i, p := range points {
		out[i] = route.Station{ID: p.id, Name: p.name, Coord: p.coord}
	}
	return out, nil
}

type shpPoint struct {
	id, name string
	coord    grid.Coordinate
}

func readPoints(path string) ([]shpPoint, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "venue: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	idIdx, nameIdx := -1, -1
	for i, f := range reader.Fields() {
		switch strings.ToLower(strings.TrimRight(f.String(), "\x00")) {
		case "id":
			idIdx = i
		case "name":
			nameIdx = i
		}
	}

	var points []shpPoint
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()

		pt, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}

		p := shpPoint{coord: grid.Coordinate{Lon: pt.X, Lat: pt.Y}}
		if idIdx >= 0 {
			p.id = strings.TrimSpace(strings.TrimRight(reader.Attribute(idIdx), "\x00"))
		}
		if nameIdx >= 0 {
			p.name = strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		}
		if p.id == "" {
			p.id = fmt.Sprintf("poi_%d", n)
		}
		points = append(points, p)
	}

	if skipped > 0 {
		zap.L().Debug("venue: skipped non-point shapefile records",
			zap.String("path", path), zap.Int("skipped", skipped))
	}
	return points, nil
}
