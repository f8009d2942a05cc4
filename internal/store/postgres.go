package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/wiesnflow/crowdgrid/internal/wkb"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, mainly for tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS positions (
	id         UUID PRIMARY KEY,
	source     TEXT NOT NULL,
	position   TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_positions_source_updated ON positions(source, updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_positions_updated ON positions(updated_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// SavePosition coalesces same-minute reports per source: the source's newest
// row is updated in place when its minute matches, otherwise a fresh row is
// inserted.
func (s *PostgresStore) SavePosition(ctx context.Context, source string, p wkb.Point, ts time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE positions SET position = $1, updated_at = $2
		WHERE id = (
			SELECT id FROM positions WHERE source = $3
			ORDER BY updated_at DESC LIMIT 1
		)
		AND date_trunc('minute', updated_at) = date_trunc('minute', $2::timestamptz)`,
		wkb.EncodeHex(p), ts, source,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update position")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO positions (id, source, position, updated_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), source, wkb.EncodeHex(p), ts,
	)
	return eris.Wrap(err, "postgres: insert position")
}

func (s *PostgresStore) LatestPositions(ctx context.Context, since time.Time) ([]PositionRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (source) id, source, position, updated_at
		FROM positions
		WHERE updated_at >= $1
		ORDER BY source, updated_at DESC`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query latest positions")
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var r PositionRow
		if err := rows.Scan(&r.ID, &r.Source, &r.PositionWKB, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan position row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate position rows")
	}

	// DISTINCT ON orders by source; callers expect newest first.
	sortByUpdatedDesc(out)
	return out, nil
}
