// Package store persists raw position reports. The engine itself never
// touches the database; ingestion commands read rows from here and feed the
// aggregator.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wiesnflow/crowdgrid/internal/wkb"
)

// PositionRow is one stored position report. The geometry is kept in the
// spatial store's own hex WKB encoding so ingestion exercises the same
// decode path as a real database read.
type PositionRow struct {
	ID          uuid.UUID `json:"id"`
	Source      string    `json:"source"`
	PositionWKB string    `json:"position"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Point decodes the row's geometry.
func (r PositionRow) Point() (wkb.Point, error) {
	return wkb.DecodeHex(r.PositionWKB)
}

// Store is the persistence interface for position reports.
type Store interface {
	// SavePosition records a report. A report in the same minute as the
	// source's newest row replaces it instead of inserting, so one source
	// contributes at most one row per minute.
	SavePosition(ctx context.Context, source string, p wkb.Point, ts time.Time) error

	// LatestPositions returns the newest row per source with updated_at >=
	// since, ordered newest first.
	LatestPositions(ctx context.Context, since time.Time) ([]PositionRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
