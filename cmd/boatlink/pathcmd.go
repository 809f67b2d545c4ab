package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/danmuck/boatlink/internal/geo"
	"github.com/danmuck/boatlink/internal/store"
	"github.com/spf13/cobra"
)

const defaultPathName = "default"

type pathRow struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Points  int    `json:"points" yaml:"points"`
	SavedAt string `json:"saved_at" yaml:"saved_at"`
}

func (c *cli) pathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Save and read back sampling paths in the store",
	}
	cmd.AddCommand(c.pathSaveCmd(), c.pathShowCmd())
	return cmd
}

func (c *cli) pathSaveCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "save <file.geojson>",
		Short: "Validate a path file and store it under --name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			path, err := geo.ParsePath(raw)
			if err != nil {
				return err
			}
			doc, err := path.Document()
			if err != nil {
				return err
			}

			db, err := c.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			saved := store.SavedPath{
				Name:     name,
				Version:  path.Version,
				Points:   len(path.Points),
				Document: doc,
				SavedAt:  time.Now().UTC(),
			}
			if err := db.SavePath(cmd.Context(), saved); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), c.formatter.Format(pathRow{
				Name:    saved.Name,
				Version: saved.Version,
				Points:  saved.Points,
				SavedAt: saved.SavedAt.Format(time.RFC3339),
			}))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", defaultPathName, "saved path name")
	return cmd
}

func (c *cli) pathShowCmd() *cobra.Command {
	var (
		name string
		out  string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Write a saved path as GeoJSON",
		Long: `show writes the path saved under --name. A name with nothing saved
prints an empty path, which send-path and path save both accept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			saved, err := db.LoadPath(cmd.Context(), name)
			var doc []byte
			switch {
			case errors.Is(err, store.ErrPathNotFound):
				if doc, err = (geo.Path{}).Document(); err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				doc = saved.Document
			}
			return writeOut(cmd, out, append(doc, '\n'))
		},
	}
	cmd.Flags().StringVar(&name, "name", defaultPathName, "saved path name")
	cmd.Flags().StringVar(&out, "out", "-", "output file, - for stdout")
	return cmd
}
