package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wiesnflow/crowdgrid/internal/crowd"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Replay stored positions and print the density snapshot",
	Long:  "Rebuilds the rolling window from the position store and prints per-tile counts and normalized intensity as JSON. Useful for inspecting stored data without starting the server.",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().Bool("intensity", false, "print normalized 0-100 intensity instead of raw counts")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	intensity, _ := cmd.Flags().GetBool("intensity")

	env, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer env.Close()

	n, err := replayStore(cmd.Context(), env)
	if err != nil {
		return err
	}
	zap.L().Info("store replayed", zap.Int("positions", n))

	counts := env.Agg.CurrentCounts()
	if intensity {
		counts = crowd.Normalize(counts)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(counts)
}
