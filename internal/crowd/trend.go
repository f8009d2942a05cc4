package crowd

import (
	"time"

	"github.com/rotisserie/eris"
)

// HistoryPoint is one labeled bucket of a tile's smoothed trend.
type HistoryPoint struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Trend is the display-ready view of a tile's rolling histogram.
type Trend struct {
	TileID string `json:"tileId"`
	// History is ordered oldest to newest, one point per minute bucket.
	History []HistoryPoint `json:"history"`
	// CurrentCount is the smoothed value of the most recent bucket.
	CurrentCount int `json:"currentCount"`
	// PeakCount is the maximum smoothed value in the window.
	PeakCount int `json:"peakCount"`
}

// labelEvery is the bucket stride between HH:MM axis labels.
const labelEvery = 10

// History returns the smoothed trend for a tile over the trailing duration,
// clamped to the configured window. Repeated calls over unchanged buckets
// return identical output. Unknown tile ids are an error; a known tile with
// no samples yields an all-zero history.
func (a *Aggregator) History(tileID string, duration time.Duration) (Trend, error) {
	if _, ok := a.grid.TileByID(tileID); !ok {
		return Trend{}, eris.Errorf("crowd: unknown tile %q", tileID)
	}

	now := a.clock()

	a.mu.Lock()
	s, ok := a.series[tileID]
	if !ok {
		s = newTimeSeries(a.WindowMinutes(), now)
		a.series[tileID] = s
	}
	values := s.values(now)
	start := s.windowStart()
	a.mu.Unlock()

	// Clamp the requested span to the window, minimum one bucket.
	if n := int(duration / time.Minute); n > 0 && n < len(values) {
		skip := len(values) - n
		values = values[skip:]
		start = start.Add(time.Duration(skip) * time.Minute)
	}

	smoothed := Smooth(values, a.kernel)

	trend := Trend{
		TileID:  tileID,
		History: make([]HistoryPoint, len(smoothed)),
	}
	for i, v := range smoothed {
		var label string
		switch {
		case i == len(smoothed)-1:
			label = "Now"
		case i%labelEvery == 0:
			label = start.Add(time.Duration(i) * time.Minute).Format("15:04")
		}
		trend.History[i] = HistoryPoint{Label: label, Value: v}
		if v > trend.PeakCount {
			trend.PeakCount = v
		}
	}
	if len(smoothed) > 0 {
		trend.CurrentCount = smoothed[len(smoothed)-1]
	}
	return trend, nil
}
