package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/danmuck/boatlink/internal/config"
	"github.com/danmuck/boatlink/internal/logging"
	"github.com/danmuck/boatlink/internal/registry"
	"github.com/danmuck/boatlink/internal/serial"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "boatlink.toml"

// cli holds state shared by subcommands after the persistent pre-run.
type cli struct {
	cfgFile      string
	outputFormat string

	cfg       config.Config
	formatter Formatter
	ports     registry.Ports
}

// newRootCmd builds the command tree. A nil ports uses the serial ports
// selected by the config.
func newRootCmd(ports registry.Ports) *cobra.Command {
	c := &cli{ports: ports}
	root := &cobra.Command{
		Use:   "boatlink",
		Short: "Serial link gateway for survey boats",
		Long: `boatlink discovers boats on serial ports, keeps their links healthy,
stores the telemetry they send and uploads sampling paths to them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.load,
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default ./"+defaultConfigPath+" when present)")
	root.PersistentFlags().StringVarP(&c.outputFormat, "output", "o", "table", "output format: table, json, yaml")

	root.AddCommand(
		c.serveCmd(),
		c.portsCmd(),
		c.sendPathCmd(),
		c.exportCmd(),
		c.importCmd(),
		c.pathCmd(),
		c.configCmd(),
		c.versionCmd(),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command, _ []string) error {
	path := c.cfgFile
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	c.cfg = cfg
	logging.Apply(cfg.Logging())
	c.formatter = NewFormatter(c.outputFormat)
	return nil
}

func (c *cli) portSource() registry.Ports {
	if c.ports != nil {
		return c.ports
	}
	return serial.NewPorts(c.cfg.SerialPorts())
}
