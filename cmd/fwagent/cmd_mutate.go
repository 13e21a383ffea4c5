//go:build linux
// +build linux

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fwagent/internal/apply"
	"fwagent/internal/rule"
)

type ruleFlags struct {
	port       string
	protocol   string
	source     string
	family     string
	deny       bool
	permanent  bool
	descriptor string
}

var mutateFlags ruleFlags

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Insert a port rule",
	Long: `Insert a port rule. Ports may be a comma list and protocols a slash
list (tcp/udp); every combination is applied, once per family when the
family is both. The first failing operation stops the batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutation(cmd, apply.Insert)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a port rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutation(cmd, apply.Delete)
	},
}

var applyOp string

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a JSON array of rules read from stdin",
	Long: `Apply rules in the CanonicalRule JSON shape, as printed by list --json.
Rules are applied in order and the first failure stops the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := apply.ParseOperation(applyOp)
		if err != nil {
			return err
		}
		var rules []rule.Rule
		if err := json.NewDecoder(cmd.InOrStdin()).Decode(&rules); err != nil {
			return fmt.Errorf("decode rules: %w", err)
		}
		a, closeFn, err := openAgent(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		for i, r := range rules {
			if err := a.Apply(cmd.Context(), r, op); err != nil {
				return fmt.Errorf("rule %d (%s): %w", i, r.String(), err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d rule(s)\n", op, len(rules))
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyOp, "op", "insert", "insert or delete")

	for _, c := range []*cobra.Command{addCmd, deleteCmd} {
		c.Flags().StringVar(&mutateFlags.port, "port", "", "port, range or comma list")
		c.Flags().StringVar(&mutateFlags.protocol, "protocol", "tcp", "protocol or slash list (tcp/udp)")
		c.Flags().StringVar(&mutateFlags.source, "source", "", "source address or CIDR (default any)")
		c.Flags().StringVar(&mutateFlags.family, "family", "both", "ipv4, ipv6 or both")
		c.Flags().BoolVar(&mutateFlags.deny, "deny", false, "reject instead of allow")
		c.Flags().BoolVar(&mutateFlags.permanent, "permanent", false, "change the permanent configuration and reload")
		c.Flags().StringVar(&mutateFlags.descriptor, "descriptor", "", "comment or log prefix")
		_ = c.MarkFlagRequired("port")
	}
}

func (f ruleFlags) rule() (rule.Rule, error) {
	fam, err := rule.ParseFamily(f.family)
	if err != nil {
		return rule.Rule{}, err
	}
	return rule.Rule{
		Zone:       cfg.Backend.Zone,
		Kind:       rule.KindPort,
		Family:     fam,
		Port:       strings.TrimSpace(f.port),
		Protocol:   strings.ToLower(strings.TrimSpace(f.protocol)),
		Source:     rule.NormalizeSource(f.source),
		Policy:     !f.deny,
		Permanent:  f.permanent,
		Descriptor: f.descriptor,
	}, nil
}

func runMutation(cmd *cobra.Command, op apply.Operation) error {
	r, err := mutateFlags.rule()
	if err != nil {
		return err
	}
	a, closeFn, err := openAgent(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	err = a.Apply(cmd.Context(), r, op)
	var batchErr *apply.BatchError
	if errors.As(err, &batchErr) {
		for _, atom := range batchErr.Applied {
			fmt.Fprintf(cmd.ErrOrStderr(), "applied: %s\n", atom)
		}
		if batchErr.Failed != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed:  %s\n", batchErr.Failed)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", op, r.String())
	return nil
}
