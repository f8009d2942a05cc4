// Package crowd turns geolocated position samples into per-tile crowd
// counts, rolling time-windowed histograms, smoothed trends, and normalized
// display intensities.
package crowd

import "time"

// bucket is one one-minute aggregation slot. sum and samples stay separate
// so a bucket contributes its per-sample average, never a running total;
// same-minute samples from multiple sources would otherwise double-count.
type bucket struct {
	sum     int
	samples int
}

func (b bucket) value() float64 {
	if b.samples == 0 {
		return 0
	}
	return float64(b.sum) / float64(b.samples)
}

// timeSeries is a fixed-length ring of one-minute buckets covering a
// trailing window. The last bucket always covers the current minute; as time
// advances the oldest buckets are evicted. Not safe for concurrent use; the
// owning Aggregator serializes access.
type timeSeries struct {
	buckets []bucket
	// end is the truncated start of the newest bucket's minute.
	end time.Time
}

func newTimeSeries(windowMinutes int, now time.Time) *timeSeries {
	return &timeSeries{
		buckets: make([]bucket, windowMinutes),
		end:     now.Truncate(time.Minute),
	}
}

// advance slides the window forward so the last bucket covers now's minute,
// zeroing evicted buckets.
func (s *timeSeries) advance(now time.Time) {
	end := now.Truncate(time.Minute)
	steps := int(end.Sub(s.end) / time.Minute)
	if steps <= 0 {
		return
	}
	n := len(s.buckets)
	if steps >= n {
		for i := range s.buckets {
			s.buckets[i] = bucket{}
		}
	} else {
		copy(s.buckets, s.buckets[steps:])
		for i := n - steps; i < n; i++ {
			s.buckets[i] = bucket{}
		}
	}
	s.end = end
}

// windowStart returns the start of the oldest bucket's minute.
func (s *timeSeries) windowStart() time.Time {
	return s.end.Add(-time.Duration(len(s.buckets)-1) * time.Minute)
}

// record adds a count sample at ts. Samples outside [windowStart, now] are
// dropped; the return value reports whether the sample landed.
func (s *timeSeries) record(ts, now time.Time, count int) bool {
	s.advance(now)
	start := s.windowStart()
	if ts.Before(start) || ts.After(now) {
		return false
	}
	idx := int(ts.Sub(start) / time.Minute)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.buckets) {
		idx = len(s.buckets) - 1
	}
	s.buckets[idx].sum += count
	s.buckets[idx].samples++
	return true
}

// values returns each bucket's per-sample average, oldest first.
func (s *timeSeries) values(now time.Time) []float64 {
	s.advance(now)
	out := make([]float64, len(s.buckets))
	for i, b := range s.buckets {
		out[i] = b.value()
	}
	return out
}

// bucketTime returns the start of bucket i's minute.
func (s *timeSeries) bucketTime(i int) time.Time {
	return s.windowStart().Add(time.Duration(i) * time.Minute)
}
