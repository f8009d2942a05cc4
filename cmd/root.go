package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wiesnflow/crowdgrid/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crowdgrid",
	Short: "Spatiotemporal crowd-density tile engine",
	Long:  "Aggregates timestamped visitor positions onto a fixed tile grid, serves rolling density histograms, intensity maps, and station-to-entrance route availability.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
