package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/boatlink/internal/geo"
	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/spf13/cobra"
)

type importResult struct {
	File     string `json:"file" yaml:"file"`
	Link     string `json:"link" yaml:"link"`
	Format   string `json:"format" yaml:"format"`
	Features int    `json:"features" yaml:"features"`
}

func (c *cli) importCmd() *cobra.Command {
	var (
		link   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load telemetry from a GeoJSON or CSV file into the store",
		Long: `import reads telemetry previously written by "boatlink export" (or
collected elsewhere) and stores it as if it had arrived from --link.

The format follows the file extension (.csv for CSV, anything else GeoJSON)
unless --format is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if format == "" {
				format = formatOf(name)
			}
			raw, err := os.ReadFile(name)
			if err != nil {
				return err
			}

			var data payload.BoatData
			switch format {
			case formatCSV:
				data, err = geo.ParseTelemetryCSV(bytes.NewReader(raw))
			case formatGeoJSON:
				data, err = geo.ParseTelemetry(raw)
			default:
				return fmt.Errorf("unknown --format %q (want %s or %s)", format, formatGeoJSON, formatCSV)
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}

			db, err := c.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.InsertTelemetry(cmd.Context(), link, data, time.Now()); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), c.formatter.Format(importResult{
				File:     name,
				Link:     link,
				Format:   format,
				Features: len(data.Features),
			}))
			return nil
		},
	}
	cmd.Flags().StringVar(&link, "link", "import", "link name recorded with the readings")
	cmd.Flags().StringVar(&format, "format", "", "file format: geojson or csv (default from extension)")
	return cmd
}

func formatOf(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return formatCSV
	}
	return formatGeoJSON
}
