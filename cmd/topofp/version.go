package main

import (
	"github.com/spf13/cobra"

	"github.com/banshee-data/topofingerprint/internal/version"
)

func newVersionCmd(p *printer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			p.info("topofp %s", version.String())
		},
	}
}
