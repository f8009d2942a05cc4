// Package venue loads the static venue configuration: stations, entrances,
// points of interest, and the station-to-entrance adjacency table. The
// engine never computes adjacency; it is supplied here.
package venue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/wiesnflow/crowdgrid/internal/poi"
	"github.com/wiesnflow/crowdgrid/internal/route"
)

// Venue is the loaded station/entrance/POI/adjacency configuration.
type Venue struct {
	Stations  []route.Station  `json:"stations" yaml:"stations"`
	Entrances []route.Entrance `json:"entrances" yaml:"entrances"`
	POIs      []poi.POI        `json:"pois" yaml:"pois"`
	Adjacency route.Adjacency  `json:"adjacency" yaml:"adjacency"`
}

// Load reads a venue file. The format is chosen by extension: .json, .yaml,
// or .yml.
func Load(path string) (*Venue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "venue: read %s", path)
	}

	var v Venue
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, eris.Wrapf(err, "venue: parse %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, eris.Wrapf(err, "venue: parse %s", path)
		}
	default:
		return nil, eris.Errorf("venue: unsupported file extension %q", ext)
	}

	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// Validate checks referential integrity of the adjacency table. Invalid
// venue configuration is fatal at startup.
func (v *Venue) Validate() error {
	stations := make(map[string]bool, len(v.Stations))
	for _, s := range v.Stations {
		if s.ID == "" {
			return eris.New("venue: station with empty id")
		}
		if stations[s.ID] {
			return eris.Errorf("venue: duplicate station id %q", s.ID)
		}
		stations[s.ID] = true
	}

	entrances := make(map[string]bool, len(v.Entrances))
	for _, e := range v.Entrances {
		if e.ID == "" {
			return eris.New("venue: entrance with empty id")
		}
		if entrances[e.ID] {
			return eris.Errorf("venue: duplicate entrance id %q", e.ID)
		}
		entrances[e.ID] = true
	}

	pois := make(map[string]bool, len(v.POIs))
	for _, p := range v.POIs {
		if p.ID == "" {
			return eris.New("venue: poi with empty id")
		}
		if pois[p.ID] {
			return eris.Errorf("venue: duplicate poi id %q", p.ID)
		}
		if !p.Type.Valid() {
			return eris.Errorf("venue: poi %q has unknown type %q", p.ID, p.Type)
		}
		pois[p.ID] = true
	}

	for stID, entIDs := range v.Adjacency {
		if !stations[stID] {
			return eris.Errorf("venue: adjacency references unknown station %q", stID)
		}
		for _, entID := range entIDs {
			if !entrances[entID] {
				return eris.Errorf("venue: adjacency references unknown entrance %q", entID)
			}
		}
	}
	return nil
}
