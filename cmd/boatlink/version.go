package main

import (
	"fmt"

	"github.com/danmuck/boatlink/internal/protocol"
	"github.com/spf13/cobra"
)

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the link protocol version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "boatlink protocol %s\n", protocol.Version)
		},
	}
}
