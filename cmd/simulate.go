package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wiesnflow/crowdgrid/internal/grid"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a visitor simulation against a running server",
	Long:  "Spawns synthetic visitors that wander the venue, drift toward hotspots, and post their positions to the API. Intended for demos and load-testing the histogram pipeline.",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().Int("visitors", 200, "number of concurrent simulated visitors")
	simulateCmd.Flags().Int("hotspots", 4, "number of attraction points inside the venue")
	simulateCmd.Flags().Duration("interval", 10*time.Second, "delay between position updates per visitor")
	simulateCmd.Flags().Duration("duration", 0, "stop after this long (0 = run until interrupted)")
	simulateCmd.Flags().String("server", "http://localhost:8080", "base URL of the crowdgrid server")
	simulateCmd.Flags().Float64("rps", 100, "global request rate limit")
	rootCmd.AddCommand(simulateCmd)
}

// visitor is one simulated attendee. Position updates follow a random walk
// biased toward the visitor's current hotspot; hotspots change occasionally
// so the heatmap shifts over time.
type visitor struct {
	uid     string
	pos     grid.Coordinate
	hotspot grid.Coordinate
	rng     *rand.Rand
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	visitors, _ := cmd.Flags().GetInt("visitors")
	hotspotCount, _ := cmd.Flags().GetInt("hotspots")
	interval, _ := cmd.Flags().GetDuration("interval")
	duration, _ := cmd.Flags().GetDuration("duration")
	server, _ := cmd.Flags().GetString("server")
	rps, _ := cmd.Flags().GetFloat64("rps")

	box, err := cfg.Grid.BoundingBox()
	if err != nil {
		return err
	}

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	seed := time.Now().UnixNano()
	hotspots := make([]grid.Coordinate, hotspotCount)
	rng := rand.New(rand.NewSource(seed))
	for i := range hotspots {
		hotspots[i] = randomPoint(rng, box)
	}

	limiter := rate.NewLimiter(rate.Limit(rps), visitors)
	client := &http.Client{Timeout: 10 * time.Second}

	zap.L().Info("starting simulation",
		zap.Int("visitors", visitors),
		zap.Int("hotspots", hotspotCount),
		zap.String("server", server),
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < visitors; i++ {
		vrng := rand.New(rand.NewSource(seed + int64(i) + 1))
		v := &visitor{
			uid:     uuid.NewString(),
			pos:     randomPoint(vrng, box),
			hotspot: hotspots[vrng.Intn(len(hotspots))],
			rng:     vrng,
		}
		g.Go(func() error {
			return v.run(ctx, client, limiter, server, interval, hotspots)
		})
	}

	err = g.Wait()
	if err == context.Canceled || err == context.DeadlineExceeded {
		err = nil
	}
	zap.L().Info("simulation finished")
	return err
}

func (v *visitor) run(ctx context.Context, client *http.Client, limiter *rate.Limiter, server string, interval time.Duration, hotspots []grid.Coordinate) error {
	// Desynchronize visitors so updates spread across the interval.
	jitter := time.Duration(v.rng.Int63n(int64(interval) + 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		v.step(hotspots)
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := postPosition(ctx, client, server, v.uid, v.pos); err != nil {
			zap.L().Debug("position update failed", zap.String("uid", v.uid), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// step moves the visitor ~20% of the way toward its hotspot plus noise of
// roughly one tile. Visitors occasionally pick a new hotspot.
func (v *visitor) step(hotspots []grid.Coordinate) {
	if v.rng.Float64() < 0.02 {
		v.hotspot = hotspots[v.rng.Intn(len(hotspots))]
	}

	const noise = 0.0004
	v.pos.Lon += (v.hotspot.Lon-v.pos.Lon)*0.2 + (v.rng.Float64()-0.5)*noise
	v.pos.Lat += (v.hotspot.Lat-v.pos.Lat)*0.2 + (v.rng.Float64()-0.5)*noise
}

func randomPoint(rng *rand.Rand, box grid.BoundingBox) grid.Coordinate {
	return grid.Coordinate{
		Lon: box.TopLeft.Lon + rng.Float64()*(box.BottomRight.Lon-box.TopLeft.Lon),
		Lat: box.BottomRight.Lat + rng.Float64()*(box.TopLeft.Lat-box.BottomRight.Lat),
	}
}

func postPosition(ctx context.Context, client *http.Client, server, uid string, pos grid.Coordinate) error {
	body, err := json.Marshal(positionRequest{Long: pos.Lon, Lat: pos.Lat, UID: uid})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/position", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("server returned %s", resp.Status)
	}
	return nil
}
