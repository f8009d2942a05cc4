package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wiesnflow/crowdgrid/internal/grid"
)

var gridGenCmd = &cobra.Command{
	Use:   "grid-gen",
	Short: "Generate the tile grid as GeoJSON",
	Long:  "Builds the configured tile grid and writes it as a GeoJSON FeatureCollection, one polygon feature per tile.",
	RunE:  runGridGen,
}

func init() {
	gridGenCmd.Flags().StringP("output", "o", "tiles.json", "output file path (- for stdout)")
	gridGenCmd.Flags().Bool("pretty", true, "indent the JSON output")
	rootCmd.AddCommand(gridGenCmd)
}

func runGridGen(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	pretty, _ := cmd.Flags().GetBool("pretty")

	box, err := cfg.Grid.BoundingBox()
	if err != nil {
		return err
	}
	g, err := grid.Build(box, cfg.Grid.TileSizeMeters)
	if err != nil {
		return eris.Wrap(err, "build grid")
	}

	fc := g.FeatureCollection()

	var data []byte
	if pretty {
		data, err = json.MarshalIndent(fc, "", "  ")
	} else {
		data, err = json.Marshal(fc)
	}
	if err != nil {
		return eris.Wrap(err, "marshal feature collection")
	}
	data = append(data, '\n')

	if output == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return eris.Wrapf(err, "write %s", output)
	}

	zap.L().Info("grid written",
		zap.String("output", output),
		zap.Int("tiles", len(fc.Features)),
		zap.Int("rows", g.Rows()),
		zap.Int("cols", g.Cols()),
	)
	return nil
}
