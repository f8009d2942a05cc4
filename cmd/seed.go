package main

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wiesnflow/crowdgrid/internal/wkb"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed random positions into the store",
	Long:  "Writes random visitor positions spread over the trailing window directly into the position store. Intended for local development without a running simulation.",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().Int("count", 500, "number of positions to insert")
	seedCmd.Flags().Duration("spread", 55*time.Minute, "spread timestamps over this trailing duration")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	count, _ := cmd.Flags().GetInt("count")
	spread, _ := cmd.Flags().GetDuration("spread")

	env, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer env.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	box := env.Grid.Box()
	now := time.Now().UTC()

	for i := 0; i < count; i++ {
		pos := randomPoint(rng, box)
		ts := now.Add(-time.Duration(rng.Int63n(int64(spread) + 1)))
		if err := env.Store.SavePosition(cmd.Context(), uuid.NewString(), wkb.Point(pos), ts); err != nil {
			return err
		}
	}

	zap.L().Info("store seeded", zap.Int("positions", count))
	return nil
}
