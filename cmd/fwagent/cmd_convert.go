//go:build linux
// +build linux

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fwagent/internal/ufw"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Split ufw port rules without a protocol into tcp and udp rules",
	Long: `Rewrite every inbound ufw port rule that has no protocol into a tcp and
a udp rule, then delete the IPv6 duplicates ufw keeps for the originals.
Only the ufw backend supports this.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeFn, err := openAgent(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		report, err := a.Convert(cmd.Context())
		printReport(cmd.OutOrStdout(), report)
		return err
	},
}

func printReport(w io.Writer, r ufw.Report) {
	fmt.Fprintf(w, "converted %d, inserted %d, skipped %d, pruned %d in %d pass(es)",
		r.Converted, r.Inserted, r.Skipped, r.Pruned, r.Passes)
	if !r.Converged {
		fmt.Fprint(w, " (prune did not converge)")
	}
	fmt.Fprintln(w)
}
