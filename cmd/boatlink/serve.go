package main

import (
	"github.com/danmuck/boatlink/internal/app"
	"github.com/spf13/cobra"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run discovery, link monitoring, telemetry storage and the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.New(c.cfg, app.WithPorts(c.portSource()))
			if err != nil {
				return err
			}
			return svc.Run(cmd.Context())
		},
	}
}
