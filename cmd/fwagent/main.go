//go:build linux
// +build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"fwagent/internal/agent"
	"fwagent/internal/config"
	"fwagent/internal/identity"
	"fwagent/internal/logger"
)

var (
	logLevel    string
	backendFlag string
	zoneFlag    string
	noColor     bool

	cfg config.Config
)

var errPortClosed = errors.New("port is not open")

var rootCmd = &cobra.Command{
	Use:           "fwagent",
	Short:         "Host firewall control agent for firewalld and ufw",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, warnings, path, found, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if backendFlag != "" {
			cfg.Backend.Type = backendFlag
		}
		if zoneFlag != "" {
			cfg.Backend.Zone = zoneFlag
		}
		level := cfg.Advanced.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		if err := logger.Init(level); err != nil {
			return err
		}
		if found {
			slog.Info("config loaded", "path", path)
		}
		for _, w := range warnings {
			slog.Warn("config", "warning", w)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "set log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "backend to use (firewalld|ufw)")
	rootCmd.PersistentFlags().StringVar(&zoneFlag, "zone", "", "zone to work on (firewalld)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")

	rootCmd.AddCommand(listCmd, queryCmd, addCmd, deleteCmd, applyCmd, convertCmd, runCmd, tuiCmd, backupCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errPortClosed) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openAgent is swapped out by tests that run commands against a fake
// backend.
var openAgent = openLocalAgent

// openLocalAgent connects to the configured backend with the persisted
// agent id.
func openLocalAgent(ctx context.Context) (*agent.Agent, func() error, error) {
	id, err := identity.Load(cfg.Agent.IdentityPath)
	if err != nil {
		slog.Warn("agent identity unavailable", "path", cfg.Agent.IdentityPath, "error", err)
		id = ""
	}
	a, closeFn, err := agent.Open(ctx, cfg, id)
	if err != nil {
		return nil, nil, err
	}
	return a, closeFn, nil
}
