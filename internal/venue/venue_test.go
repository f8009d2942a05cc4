package venue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiesnflow/crowdgrid/internal/poi"
)

const venueJSON = `{
  "stations": [
    {"id": "st_theresienwiese", "name": "U Theresienwiese", "coord": {"lon": 11.5449, "lat": 48.1358}},
    {"id": "st_goetheplatz", "name": "U Goetheplatz", "coord": {"lon": 11.5587, "lat": 48.1288}}
  ],
  "entrances": [
    {"id": "ent_main", "name": "Main entrance", "coord": {"lon": 11.5475, "lat": 48.1353}},
    {"id": "ent_east", "name": "East entrance", "coord": {"lon": 11.5528, "lat": 48.1312}}
  ],
  "pois": [
    {"id": "tent_schottenhamel", "name": "Schottenhamel", "type": "tent", "coord": {"lon": 11.5484, "lat": 48.1330}},
    {"id": "rc_olympia", "name": "Olympia Looping", "type": "roller_coaster", "coord": {"lon": 11.5512, "lat": 48.1291}}
  ],
  "adjacency": {
    "st_theresienwiese": ["ent_main"],
    "st_goetheplatz": ["ent_east", "ent_main"]
  }
}`

const venueYAML = `
stations:
  - id: st_theresienwiese
    name: U Theresienwiese
    coord: {lon: 11.5449, lat: 48.1358}
entrances:
  - id: ent_main
    name: Main entrance
    coord: {lon: 11.5475, lat: 48.1353}
adjacency:
  st_theresienwiese: [ent_main]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_JSON(t *testing.T) {
	v, err := Load(writeFile(t, "venue.json", venueJSON))
	require.NoError(t, err)

	assert.Len(t, v.Stations, 2)
	assert.Len(t, v.Entrances, 2)
	require.Len(t, v.POIs, 2)
	assert.Equal(t, poi.TypeTent, v.POIs[0].Type)
	assert.Equal(t, "Olympia Looping", v.POIs[1].Name)
	assert.Equal(t, []string{"ent_east", "ent_main"}, v.Adjacency["st_goetheplatz"])
	assert.Equal(t, 11.5449, v.Stations[0].Coord.Lon)
	assert.Equal(t, 48.1358, v.Stations[0].Coord.Lat)
}

func TestLoad_YAML(t *testing.T) {
	v, err := Load(writeFile(t, "venue.yaml", venueYAML))
	require.NoError(t, err)

	require.Len(t, v.Stations, 1)
	assert.Equal(t, "st_theresienwiese", v.Stations[0].ID)
	assert.Equal(t, []string{"ent_main"}, v.Adjacency["st_theresienwiese"])
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load(writeFile(t, "venue.toml", "x = 1"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestValidate_AdjacencyIntegrity(t *testing.T) {
	badStation := `{"stations":[],"entrances":[],"adjacency":{"st_ghost":[]}}`
	_, err := Load(writeFile(t, "v1.json", badStation))
	assert.Error(t, err)

	badEntrance := `{
	  "stations": [{"id": "s1", "coord": {"lon": 1, "lat": 1}}],
	  "entrances": [],
	  "adjacency": {"s1": ["ent_ghost"]}
	}`
	_, err = Load(writeFile(t, "v2.json", badEntrance))
	assert.Error(t, err)
}

func TestValidate_DuplicateIDs(t *testing.T) {
	dupe := `{
	  "stations": [
	    {"id": "s1", "coord": {"lon": 1, "lat": 1}},
	    {"id": "s1", "coord": {"lon": 2, "lat": 2}}
	  ],
	  "entrances": [],
	  "adjacency": {}
	}`
	_, err := Load(writeFile(t, "v.json", dupe))
	assert.Error(t, err)
}

func TestValidate_POIs(t *testing.T) {
	badType := `{
	  "stations": [], "entrances": [], "adjacency": {},
	  "pois": [{"id": "p1", "type": "beer_garden", "coord": {"lon": 1, "lat": 1}}]
	}`
	_, err := Load(writeFile(t, "v1.json", badType))
	assert.Error(t, err)

	dupe := `{
	  "stations": [], "entrances": [], "adjacency": {},
	  "pois": [
	    {"id": "p1", "type": "tent", "coord": {"lon": 1, "lat": 1}},
	    {"id": "p1", "type": "food", "coord": {"lon": 2, "lat": 2}}
	  ]
	}`
	_, err = Load(writeFile(t, "v2.json", dupe))
	assert.Error(t, err)
}

func writePointShapefile(t *testing.T, path string) {
	t.Helper()
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)

	w.SetFields([]shp.Field{
		shp.StringField("ID", 32),
		shp.StringField("NAME", 64),
	})

	points := []struct {
		x, y     float64
		id, name string
	}{
		{11.5475, 48.1353, "ent_main", "Main entrance"},
		{11.5528, 48.1312, "ent_east", "East entrance"},
	}
	for i, p := range points {
		w.Write(&shp.Point{X: p.x, Y: p.y})
		w.WriteAttribute(i, 0, p.id)
		w.WriteAttribute(i, 1, p.name)
	}
	w.Close()
}

func TestEntrancesFromShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entrances.shp")
	writePointShapefile(t, path)

	entrances, err := EntrancesFromShapefile(path)
	require.NoError(t, err)
	require.Len(t, entrances, 2)

	assert.Equal(t, "ent_main", entrances[0].ID)
	assert.Equal(t, "Main entrance", entrances[0].Name)
	assert.InDelta(t, 11.5475, entrances[0].Coord.Lon, 1e-9)
	assert.InDelta(t, 48.1353, entrances[0].Coord.Lat, 1e-9)
}

func TestStationsFromShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.shp")
	writePointShapefile(t, path)

	stations, err := StationsFromShapefile(path)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "ent_east", stations[1].ID)
}

func TestReadPoints_MissingShapefile(t *testing.T) {
	_, err := EntrancesFromShapefile(filepath.Join(t.TempDir(), "nope.shp"))
	assert.Error(t, err)
}
