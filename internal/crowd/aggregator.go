package crowd

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wiesnflow/crowdgrid/internal/grid"
)

// DefaultWindowMinutes is the trailing histogram length.
const DefaultWindowMinutes = 60

// Options tunes an Aggregator. Zero values fall back to defaults.
type Options struct {
	// WindowMinutes is the rolling histogram length per tile.
	WindowMinutes int
	// Kernel is the smoothing kernel applied on reads.
	Kernel []int
	// Clock overrides the time source, for tests.
	Clock func() time.Time
}

// sourceState tracks where a source (one device) last reported from.
type sourceState struct {
	tileID   string
	lastSeen time.Time
}

// Aggregator owns all mutable crowd state: the per-source latest-tile map
// and each tile's rolling histogram. All writes go through one lock-guarded
// update method; readers receive copies and tolerate concurrent ingestion.
type Aggregator struct {
	grid   *grid.Grid
	window time.Duration
	kernel []int
	clock  func() time.Time

	mu      sync.Mutex
	series  map[string]*timeSeries
	sources map[string]sourceState

	ingested    uint64
	outOfBounds uint64
	outOfWindow uint64
}

// NewAggregator creates an aggregator over g.
func NewAggregator(g *grid.Grid, opts Options) *Aggregator {
	if opts.WindowMinutes <= 0 {
		opts.WindowMinutes = DefaultWindowMinutes
	}
	if len(opts.Kernel) == 0 {
		opts.Kernel = DefaultKernel
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Aggregator{
		grid:    g,
		window:  time.Duration(opts.WindowMinutes) * time.Minute,
		kernel:  opts.Kernel,
		clock:   opts.Clock,
		series:  make(map[string]*timeSeries),
		sources: make(map[string]sourceState),
	}
}

// WindowMinutes returns the configured histogram length.
func (a *Aggregator) WindowMinutes() int {
	return int(a.window / time.Minute)
}

// IngestPosition resolves a position to its tile and records it. Positions
// outside the grid or outside the time window are dropped and counted, never
// fatal: one bad sample must not disturb aggregation for the rest of the
// grid.
func (a *Aggregator) IngestPosition(lon, lat float64, ts time.Time, source string) {
	tile, ok := a.grid.Resolve(lon, lat)
	if !ok {
		a.mu.Lock()
		a.outOfBounds++
		a.mu.Unlock()
		zap.L().Debug("crowd: position outside grid",
			zap.Float64("lon", lon), zap.Float64("lat", lat),
			zap.String("source", source))
		return
	}
	a.recordSample(tile.ID, ts, 1, source)
}

// RecordCount records a pre-resolved count sample against a tile, for
// ingestion paths that already carry tile ids. Unknown tiles are dropped.
func (a *Aggregator) RecordCount(tileID string, ts time.Time, count int) {
	if _, ok := a.grid.TileByID(tileID); !ok {
		a.mu.Lock()
		a.outOfBounds++
		a.mu.Unlock()
		return
	}
	a.recordSample(tileID, ts, count, "")
}

func (a *Aggregator) recordSample(tileID string, ts time.Time, count int, source string) {
	now := a.clock()

	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.series[tileID]
	if !ok {
		s = newTimeSeries(a.WindowMinutes(), now)
		a.series[tileID] = s
	}
	if !s.record(ts, now, count) {
		a.outOfWindow++
		return
	}
	a.ingested++

	// Track the source's latest tile for the live count snapshot. Out of
	// order samples never move a source backwards.
	if source != "" {
		prev, seen := a.sources[source]
		if !seen || !ts.Before(prev.lastSeen) {
			a.sources[source] = sourceState{tileID: tileID, lastSeen: ts}
		}
	}
}

// CurrentCounts returns a complete point-in-time snapshot mapping every tile
// id to the number of distinct sources whose latest in-window position lies
// in that tile. Zero entries are present: callers must never infer zero from
// a missing key.
func (a *Aggregator) CurrentCounts() map[string]int {
	now := a.clock()
	cutoff := now.Add(-a.window)

	a.mu.Lock()
	defer a.mu.Unlock()

	counts := make(map[string]int, len(a.grid.Tiles()))
	for _, t := range a.grid.Tiles() {
		counts[t.ID] = 0
	}
	for src, st := range a.sources {
		if st.lastSeen.Before(cutoff) {
			delete(a.sources, src)
			continue
		}
		counts[st.tileID]++
	}
	return counts
}

// Metrics is a point-in-time view of ingestion health.
type Metrics struct {
	Ingested      uint64    `json:"ingested"`
	OutOfBounds   uint64    `json:"out_of_bounds"`
	OutOfWindow   uint64    `json:"out_of_window"`
	ActiveSources int       `json:"active_sources"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Snapshot returns ingestion counters.
func (a *Aggregator) Snapshot() Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Metrics{
		Ingested:      a.ingested,
		OutOfBounds:   a.outOfBounds,
		OutOfWindow:   a.outOfWindow,
		ActiveSources: len(a.sources),
		CollectedAt:   a.clock().UTC(),
	}
}
