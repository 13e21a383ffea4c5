//go:build linux
// +build linux

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"fwagent/internal/agent"
	"fwagent/internal/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent: convert ufw rules if configured and serve metrics",
	RunE:  runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, closeFn, err := openAgent(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	slog.Info("agent started", "backend", a.Backend(), "agent_id", a.AgentID())

	if cfg.Agent.ConvertOnStart && a.Backend() == agent.BackendUFW {
		report, err := a.Convert(ctx)
		if err != nil {
			slog.Error("startup conversion failed", "error", err)
		} else {
			slog.Info("startup conversion done", "converted", report.Converted, "pruned", report.Pruned)
		}
	}

	if cfg.Metrics.Listen == "" {
		<-ctx.Done()
		slog.Info("agent stopped")
		return nil
	}

	metrics.Get()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	server := &http.Server{
		Addr:              cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics listening", "addr", cfg.Metrics.Listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown", "error", err)
		}
	}
	slog.Info("agent stopped")
	return nil
}
