package main

import (
	"fmt"

	"github.com/danmuck/boatlink/internal/registry"
	"github.com/spf13/cobra"
)

type portRow struct {
	Port string `json:"port" yaml:"port"`
	Boat bool   `json:"boat" yaml:"boat"`
}

func (c *cli) portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports and handshake with each one once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports := c.portSource()
			available, err := ports.List()
			if err != nil {
				return fmt.Errorf("failed to list ports: %w", err)
			}

			reg := registry.New(ports, c.cfg.Session(), nil)
			defer reg.Close()
			linked, err := reg.Discover(cmd.Context())
			if err != nil {
				return fmt.Errorf("discovery failed: %w", err)
			}

			answered := make(map[string]bool, len(linked))
			for _, name := range linked {
				answered[name] = true
			}
			rows := make([]portRow, 0, len(available))
			for _, name := range available {
				rows = append(rows, portRow{Port: name, Boat: answered[name]})
			}
			fmt.Fprint(cmd.OutOrStdout(), c.formatter.Format(rows))
			return nil
		},
	}
}
