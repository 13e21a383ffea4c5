//go:build linux
// +build linux

package main

import (
	"github.com/spf13/cobra"

	"fwagent/internal/ui"
)

var tuiPermanent bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse the reconciled rules interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeFn, err := openAgent(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		return ui.Run(cmd.Context(), a, ui.Options{
			NoColor:   noColor,
			Permanent: tuiPermanent,
			Zone:      cfg.Backend.Zone,
		})
	},
}

func init() {
	tuiCmd.Flags().BoolVar(&tuiPermanent, "permanent", false, "start on the permanent configuration")
}
