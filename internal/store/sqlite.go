package store

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/wiesnflow/crowdgrid/internal/wkb"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix seconds to keep range queries deterministic across
// drivers.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS positions (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	position   TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_source_updated ON positions(source, updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_positions_updated ON positions(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SavePosition(ctx context.Context, source string, p wkb.Point, ts time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions SET position = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM positions WHERE source = ?
			ORDER BY updated_at DESC LIMIT 1
		)
		AND updated_at / 60 = ? / 60`,
		wkb.EncodeHex(p), ts.Unix(), source, ts.Unix(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update position")
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO positions (id, source, position, updated_at)
		VALUES (?, ?, ?, ?)`,
		uuid.New().String(), source, wkb.EncodeHex(p), ts.Unix(),
	)
	return eris.Wrap(err, "sqlite: insert position")
}

func (s *SQLiteStore) LatestPositions(ctx context.Context, since time.Time) ([]PositionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, position, updated_at FROM (
			SELECT id, source, position, updated_at,
			       ROW_NUMBER() OVER (PARTITION BY source ORDER BY updated_at DESC) AS rn
			FROM positions
			WHERE updated_at >= ?
		) WHERE rn = 1`,
		since.Unix(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query latest positions")
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var (
			r    PositionRow
			id   string
			unix int64
		)
		if err := rows.Scan(&id, &r.Source, &r.PositionWKB, &unix); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan position row")
		}
		r.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse row id %q", id)
		}
		r.UpdatedAt = time.Unix(unix, 0).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate position rows")
	}

	sortByUpdatedDesc(out)
	return out, nil
}

// sortByUpdatedDesc orders rows newest first, source as a stable tiebreaker.
func sortByUpdatedDesc(rows []PositionRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
			return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
		}
		return rows[i].Source < rows[j].Source
	})
}
