package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wiesnflow/crowdgrid/internal/crowd"
	"github.com/wiesnflow/crowdgrid/internal/grid"
	"github.com/wiesnflow/crowdgrid/internal/poi"
	"github.com/wiesnflow/crowdgrid/internal/route"
	"github.com/wiesnflow/crowdgrid/internal/store"
	"github.com/wiesnflow/crowdgrid/internal/venue"
)

// appEnv holds the grid, aggregator, store, and venue shared by the
// serve/ingest/seed commands.
type appEnv struct {
	Grid        *grid.Grid
	Agg         *crowd.Aggregator
	Store       store.Store
	Venue       *venue.Venue
	Evaluator   *route.Evaluator
	Recommender *poi.Recommender
}

// Close releases resources held by the environment.
func (env *appEnv) Close() {
	if env.Store != nil {
		_ = env.Store.Close()
	}
}

// initApp builds the tile grid, aggregation engine, position store, and
// route evaluator from config. Callers should defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	box, err := cfg.Grid.BoundingBox()
	if err != nil {
		return nil, err
	}

	g, err := grid.Build(box, cfg.Grid.TileSizeMeters)
	if err != nil {
		return nil, eris.Wrap(err, "build grid")
	}
	zap.L().Info("grid built",
		zap.Int("rows", g.Rows()),
		zap.Int("cols", g.Cols()),
		zap.Int("tiles", len(g.Tiles())),
	)

	agg := crowd.NewAggregator(g, crowd.Options{
		WindowMinutes: cfg.Engine.WindowMinutes,
		Kernel:        cfg.Engine.SmoothingKernel,
	})

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// The venue file is optional: without it the routes and recommendations
	// endpoints serve empty lists and everything else works.
	ven, err := venue.Load(cfg.Venue.File)
	if err != nil {
		zap.L().Warn("venue file not loaded, route evaluation disabled", zap.Error(err))
		ven = &venue.Venue{}
	}

	return &appEnv{
		Grid:        g,
		Agg:         agg,
		Store:       st,
		Venue:       ven,
		Evaluator:   route.NewEvaluator(g, cfg.Engine.CrowdedThreshold),
		Recommender: poi.NewRecommender(g, ven.POIs),
	}, nil
}

// openStore picks the backend from config.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		zap.L().Info("using postgres store")
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite":
		zap.L().Info("using sqlite store", zap.String("path", cfg.Store.DatabaseURL))
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// replayStore feeds stored positions from the trailing window into the
// aggregator. Re-ingesting a row already seen is harmless: bucket values
// average per-minute and the per-source latest position only moves forward,
// so the replay doubles as the periodic cross-writer refresh.
func replayStore(ctx context.Context, env *appEnv) (int, error) {
	since := time.Now().Add(-time.Duration(env.Agg.WindowMinutes()) * time.Minute)
	rows, err := env.Store.LatestPositions(ctx, since)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, row := range rows {
		p, err := row.Point()
		if err != nil {
			zap.L().Warn("skipping undecodable stored position",
				zap.String("source", row.Source), zap.Error(err))
			continue
		}
		env.Agg.IngestPosition(p.Lon, p.Lat, row.UpdatedAt, row.Source)
		replayed++
	}
	return replayed, nil
}

// latestUserPosition returns the visitor's most recent stored position
// within the trailing window.
func latestUserPosition(ctx context.Context, env *appEnv, uid string) (grid.Coordinate, bool, error) {
	since := time.Now().Add(-time.Duration(env.Agg.WindowMinutes()) * time.Minute)
	rows, err := env.Store.LatestPositions(ctx, since)
	if err != nil {
		return grid.Coordinate{}, false, err
	}
	for _, row := range rows {
		if row.Source != uid {
			continue
		}
		p, err := row.Point()
		if err != nil {
			return grid.Coordinate{}, false, err
		}
		return grid.Coordinate(p), true, nil
	}
	return grid.Coordinate{}, false, nil
}
