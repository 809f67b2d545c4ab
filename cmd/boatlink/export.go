package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/boatlink/internal/geo"
	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/danmuck/boatlink/internal/store"
	"github.com/spf13/cobra"
)

func (c *cli) exportCmd() *cobra.Command {
	var (
		link   string
		limit  int
		out    string
		format string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored telemetry as GeoJSON or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != formatGeoJSON && format != formatCSV {
				return fmt.Errorf("unknown --format %q (want %s or %s)", format, formatGeoJSON, formatCSV)
			}
			db, err := c.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			readings, err := db.ListTelemetry(cmd.Context(), store.TelemetryFilter{Link: link, Limit: limit})
			if err != nil {
				return err
			}
			features := make([]payload.Feature, 0, len(readings))
			for _, r := range readings {
				features = append(features, r.Feature)
			}

			var buf bytes.Buffer
			if format == formatCSV {
				err = geo.WriteTelemetryCSV(&buf, features)
			} else {
				err = writeJSON(&buf, geo.TelemetryCollection(c.cfg.Protocol.Version, features))
			}
			if err != nil {
				return err
			}
			if err := writeOut(cmd, out, buf.Bytes()); err != nil {
				return err
			}
			if out != "" && out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d features to %s\n", len(features), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&link, "link", "", "only readings from this port")
	cmd.Flags().IntVar(&limit, "limit", 0, "newest N readings (0 for all)")
	cmd.Flags().StringVar(&out, "out", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&format, "format", formatGeoJSON, "file format: geojson or csv")
	return cmd
}

const (
	formatGeoJSON = "geojson"
	formatCSV     = "csv"
)

// openStore opens the configured store for one-shot commands.
func (c *cli) openStore() (*store.DB, error) {
	if c.cfg.Store.Path == "" {
		return nil, errors.New("store.path is empty")
	}
	return store.Open(c.cfg.Store.Path)
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// writeOut sends b to stdout for "" or "-", otherwise to the named file.
func writeOut(cmd *cobra.Command, out string, b []byte) error {
	if out == "" || out == "-" {
		_, err := cmd.OutOrStdout().Write(b)
		return err
	}
	return os.WriteFile(out, b, 0o644)
}
