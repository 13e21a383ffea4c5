package ufw

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"fwagent/internal/executor"
	"fwagent/internal/rule"
)

// RuleSpec is the argument form of one ufw rule.
type RuleSpec struct {
	Action   string
	Port     string
	Protocol string
	Source   string
	Comment  string
	// Family pins an any-source rule to one family. FamilyBoth writes the
	// plain form, which ufw applies to IPv4 and IPv6 alike.
	Family rule.Family
}

// Args renders the spec as ufw arguments, without the program name.
func (r RuleSpec) Args() []string {
	verb := strings.ToLower(r.Action)
	src := rule.NormalizeSource(r.Source)

	var args []string
	if src == rule.AnySource && r.Family == rule.FamilyBoth {
		target := r.Port
		if r.Protocol != "" {
			target += "/" + strings.ToLower(r.Protocol)
		}
		args = []string{verb, target}
	} else {
		if src == rule.AnySource {
			src = "0.0.0.0/0"
			if r.Family == rule.FamilyIPv6 {
				src = "::/0"
			}
		}
		args = []string{verb, "from", src, "to", "any", "port", r.Port}
		if r.Protocol != "" {
			args = append(args, "proto", strings.ToLower(r.Protocol))
		}
	}
	if r.Comment != "" {
		args = append(args, "comment", r.Comment)
	}
	return args
}

// InsertArgv is the full command that adds the rule.
func InsertArgv(spec RuleSpec) []string {
	return append([]string{program}, spec.Args()...)
}

// DeleteArgv is the full command that removes the rule by its specification.
func DeleteArgv(spec RuleSpec) []string {
	spec.Comment = ""
	return append([]string{program, "--force", "delete"}, spec.Args()...)
}

// ReloadArgv reloads the persisted ufw configuration.
func ReloadArgv() []string {
	return []string{program, "reload"}
}

// Client talks to ufw through the command executor.
type Client struct {
	exec          executor.Executor
	QueryTimeout  time.Duration
	MutateTimeout time.Duration
	// Numbered selects `ufw status numbered` for Rules. List always uses it.
	Numbered bool
}

func NewClient(exec executor.Executor) *Client {
	return &Client{
		exec:          exec,
		QueryTimeout:  DefaultQueryTimeout,
		MutateTimeout: DefaultMutateTimeout,
		Numbered:      true,
	}
}

// List returns the current rules from `ufw status numbered`.
func (c *Client) List(ctx context.Context) ([]StatusLine, error) {
	return c.status(ctx, true)
}

func (c *Client) status(ctx context.Context, numbered bool) ([]StatusLine, error) {
	argv := []string{program, "status"}
	if numbered {
		argv = append(argv, "numbered")
	}
	cmd := executor.Command{Argv: argv, Timeout: c.QueryTimeout}
	out, err := executor.Output(ctx, c.exec, cmd)
	if err != nil {
		slog.Error("ufw status failed", "error", err)
		return nil, fmt.Errorf("list ufw rules: %w", err)
	}
	if isInactive(out) {
		return nil, ErrInactive
	}
	lines := ParseStatus(out, numbered)
	slog.Debug("ufw status", "rules", len(lines))
	return lines, nil
}

// Rules lists the current rules folded into canonical form.
func (c *Client) Rules(ctx context.Context, agentID string) ([]rule.Rule, error) {
	lines, err := c.status(ctx, c.Numbered)
	if err != nil {
		return nil, err
	}
	return FoldAll(lines, agentID), nil
}

// Add inserts one rule.
func (c *Client) Add(ctx context.Context, spec RuleSpec) error {
	return c.mutate(ctx, InsertArgv(spec))
}

// DeleteNumber removes the rule currently listed as number n.
func (c *Client) DeleteNumber(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("delete rule %d: %w", n, ErrNoSuchRuleNumber)
	}
	return c.mutate(ctx, []string{program, "--force", "delete", strconv.Itoa(n)})
}

func (c *Client) Reload(ctx context.Context) error {
	return c.mutate(ctx, ReloadArgv())
}

func (c *Client) mutate(ctx context.Context, argv []string) error {
	cmd := executor.Command{Argv: argv, Timeout: c.MutateTimeout}
	res, err := c.exec.Run(ctx, cmd)
	if err != nil {
		slog.Error("ufw command failed", "command", cmd.String(), "error", err)
		return err
	}
	if err := executor.Check(cmd, res); err != nil {
		slog.Error("ufw command failed", "command", cmd.String(), "code", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr))
		return err
	}
	slog.Info("ufw command applied", "command", cmd.String())
	return nil
}

func isInactive(out string) bool {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Status:") {
			return strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(line, "Status:")), "inactive")
		}
	}
	return false
}
