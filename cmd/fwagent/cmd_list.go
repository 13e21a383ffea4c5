//go:build linux
// +build linux

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"fwagent/internal/agent"
	"fwagent/internal/backup"
	"fwagent/internal/reconcile"
	"fwagent/internal/rule"
)

var (
	listPermanent bool
	listJSON      bool
	listZoneFile  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the reconciled rules of a zone",
	Long: `List the rules of a zone as one deduplicated set built from the
backend's rich rules and plain port listing.

With --zone-file the rules are read from a firewalld zone XML file instead
of the running daemon.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listPermanent, "permanent", false, "read the permanent configuration")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print rules as JSON")
	listCmd.Flags().StringVar(&listZoneFile, "zone-file", "", "read rules from a zone XML file")
}

func runList(cmd *cobra.Command, args []string) error {
	var rules []rule.Rule
	if listZoneFile != "" {
		ports, rich, err := backup.ReadZoneRules(listZoneFile)
		if err != nil {
			return err
		}
		plain := make([]reconcile.PlainPort, 0, len(ports))
		for _, p := range ports {
			plain = append(plain, reconcile.PlainPort{Port: p.Port, Protocol: p.Protocol})
		}
		zone := cfg.Backend.Zone
		if zone == "" {
			zone = "file"
		}
		rules = agent.Reconcile(zone, "", true, rich, plain)
	} else {
		a, closeFn, err := openAgent(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		rules, err = a.Rules(cmd.Context(), cfg.Backend.Zone, listPermanent)
		if err != nil {
			return err
		}
	}
	return printRules(cmd.OutOrStdout(), rules, listJSON)
}

func printRules(w io.Writer, rules []rule.Rule, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if rules == nil {
			rules = []rule.Rule{}
		}
		return enc.Encode(rules)
	}
	if len(rules) == 0 {
		_, err := fmt.Fprintln(w, "no rules")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ZONE", "FAMILY", "PORT", "PROTO", "SOURCE", "POLICY", "IN USE", "DESCRIPTOR")
	for _, r := range rules {
		policy := "deny"
		if r.Policy {
			policy = "allow"
		}
		inUse := ""
		if r.InUse {
			inUse = "yes"
		}
		port := r.Port
		if r.Kind != rule.KindPort {
			port = r.Kind.String() + ":" + r.Value
		}
		t.Row(r.Zone, r.Family.String(), port, r.Protocol, rule.NormalizeSource(r.Source), policy, inUse, r.Descriptor)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

var (
	queryPort      string
	queryProtocol  string
	queryPermanent bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask firewalld whether a port is open in a zone",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeFn, err := openAgent(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		open, err := a.QueryPort(cmd.Context(), cfg.Backend.Zone, queryPort, queryProtocol, queryPermanent)
		if err != nil {
			return err
		}
		if open {
			fmt.Fprintln(cmd.OutOrStdout(), "yes")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "no")
		return errPortClosed
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryPort, "port", "", "port or range")
	queryCmd.Flags().StringVar(&queryProtocol, "protocol", "tcp", "protocol")
	queryCmd.Flags().BoolVar(&queryPermanent, "permanent", false, "query the permanent configuration")
	_ = queryCmd.MarkFlagRequired("port")
}
