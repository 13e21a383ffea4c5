package firewalld

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fwagent/internal/executor"
)

const DefaultCLITimeout = 15 * time.Second

// CLI reads zones through firewall-cmd. It is used when the system bus is
// unavailable.
type CLI struct {
	exec    executor.Executor
	Timeout time.Duration
}

func NewCLI(exec executor.Executor) *CLI {
	return &CLI{exec: exec, Timeout: DefaultCLITimeout}
}

func (c *CLI) ListZones(ctx context.Context) ([]string, error) {
	out, err := c.output(ctx, "", []string{Program, "--get-zones"})
	if err != nil {
		return nil, err
	}
	zones := strings.Fields(out)
	slog.Debug("zones listed", "count", len(zones), "zones", zones)
	return zones, nil
}

func (c *CLI) DefaultZone(ctx context.Context) (string, error) {
	out, err := c.output(ctx, "", []string{Program, "--get-default-zone"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *CLI) GetPorts(ctx context.Context, zone string, permanent bool) ([]Port, error) {
	out, err := c.output(ctx, zone, append(base(zone, permanent), "--list-ports"))
	if err != nil {
		return nil, err
	}
	ports, err := parsePortStrings(strings.Fields(out))
	if err != nil {
		return nil, fmt.Errorf("list ports %s: %w", zone, err)
	}
	slog.Debug("ports listed", "zone", zone, "permanent", permanent, "count", len(ports))
	return ports, nil
}

func (c *CLI) GetRichRules(ctx context.Context, zone string, permanent bool) ([]string, error) {
	out, err := c.output(ctx, zone, ListRichRulesArgv(zone, permanent))
	if err != nil {
		return nil, err
	}
	var rules []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			rules = append(rules, line)
		}
	}
	slog.Debug("rich rules listed", "zone", zone, "permanent", permanent, "count", len(rules))
	return rules, nil
}

// QueryPort exits 0 when the port is open and 1 when it is not.
func (c *CLI) QueryPort(ctx context.Context, zone string, port Port, permanent bool) (bool, error) {
	cmd := executor.Command{Argv: PortArgv("query", zone, port, permanent), Timeout: c.Timeout}
	res, err := c.exec.Run(ctx, cmd)
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, classifyExit(zone, executor.Check(cmd, res))
	}
}

func (c *CLI) output(ctx context.Context, zone string, argv []string) (string, error) {
	cmd := executor.Command{Argv: argv, Timeout: c.Timeout}
	out, err := executor.Output(ctx, c.exec, cmd)
	if err != nil {
		err = classifyExit(zone, err)
		slog.Error("firewall-cmd failed", "command", cmd.String(), "error", err)
		return "", err
	}
	return out, nil
}

// classifyExit maps firewall-cmd exit codes with a fixed meaning onto the
// package sentinels, keeping the exit error in the chain.
func classifyExit(zone string, err error) error {
	var exitErr *executor.ExitError
	if !errors.As(err, &exitErr) {
		return err
	}
	switch exitErr.ExitCode {
	case ExitInvalidZone:
		return fmt.Errorf("zone %q: %w: %w", zone, ErrZoneNotFound, exitErr)
	case ExitNotRunning:
		return fmt.Errorf("%w: %w", ErrNotRunning, exitErr)
	}
	if isPermissionDenied(errors.New(exitErr.Stderr)) {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, exitErr)
	}
	return err
}

func parsePortStrings(items []string) ([]Port, error) {
	ports := make([]Port, 0, len(items))
	for _, item := range items {
		port, proto, ok := strings.Cut(item, "/")
		if !ok || port == "" || proto == "" {
			return nil, fmt.Errorf("invalid port string: %q", item)
		}
		ports = append(ports, Port{Port: port, Protocol: proto})
	}
	return ports, nil
}
