//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fwagent/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}
