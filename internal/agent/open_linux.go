//go:build linux
// +build linux

package agent

import (
	"context"
	"log/slog"

	"fwagent/internal/backup"
	"fwagent/internal/config"
	"fwagent/internal/executor"
	"fwagent/internal/firewalld"
	"fwagent/internal/portusage"
)

// Open wires an agent to this host from configuration. The firewalld
// backend reads over D-Bus when enabled and reachable, and falls back to
// firewall-cmd otherwise. The returned close function releases the bus
// connection.
func Open(ctx context.Context, cfg config.Config, agentID string) (*Agent, func() error, error) {
	exec := executor.NewLocal()
	exec.DefaultTimeout = cfg.Timeouts.Query

	opts := Options{
		Backend:       cfg.Backend.Type,
		Zone:          cfg.Backend.Zone,
		AgentID:       agentID,
		QueryTimeout:  cfg.Timeouts.Query,
		MutateTimeout: cfg.Timeouts.Mutate,
		ReloadTimeout: cfg.Timeouts.Reload,
		Usage:         portusage.NewScanner(exec),
	}
	if cfg.Agent.BackupBeforeApply {
		opts.Snapshots = backup.NewStore(cfg.Agent.BackupDir, cfg.Agent.BackupKeep)
	}

	closeFn := func() error { return nil }
	var zones ZoneSource
	if opts.Backend == BackendFirewalld {
		zones, closeFn = openZones(ctx, cfg, exec)
	}

	a, err := New(opts, exec, zones)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	if a.ufw != nil {
		a.ufw.Numbered = cfg.Backend.NumberedStatus
	}
	return a, closeFn, nil
}

func openZones(ctx context.Context, cfg config.Config, exec *executor.Local) (ZoneSource, func() error) {
	cli := firewalld.NewCLI(exec)
	cli.Timeout = cfg.Timeouts.Query
	if !cfg.Backend.UseDBus {
		return cli, func() error { return nil }
	}
	client, err := firewalld.NewClient(ctx)
	if err != nil {
		slog.Warn("firewalld D-Bus unavailable, using firewall-cmd", "error", err)
		return cli, func() error { return nil }
	}
	slog.Info("connected to firewalld", "version", client.Version(), "api", client.APIVersion().String(), "read_only", client.ReadOnly())
	return client, client.Close
}
