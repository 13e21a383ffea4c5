//go:build linux
// +build linux

package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"fwagent/internal/metrics"
)

const DefaultTimeout = 10 * time.Second

// Local runs commands on this host.
type Local struct {
	DefaultTimeout time.Duration
}

func NewLocal() *Local {
	return &Local{DefaultTimeout: DefaultTimeout}
}

func (l *Local) Run(ctx context.Context, cmd Command) (Result, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = l.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var c *exec.Cmd
	switch {
	case cmd.Shell != "":
		c = exec.CommandContext(ctx, "/bin/sh", "-c", cmd.Shell)
	case len(cmd.Argv) > 0:
		c = exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	default:
		return Result{}, fmt.Errorf("empty command")
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	slog.Debug("exec", "command", cmd.String(), "timeout", timeout)
	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() == context.DeadlineExceeded {
		metrics.Get().BackendCommands.WithLabelValues(cmd.program(), "timeout").Inc()
		slog.Error("command timed out", "command", cmd.String(), "timeout", timeout)
		return res, fmt.Errorf("%s: %w after %s", cmd.String(), ErrTimeout, timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			metrics.Get().BackendCommands.WithLabelValues(cmd.program(), "nonzero").Inc()
			slog.Debug("command exited", "command", cmd.String(), "code", res.ExitCode)
			return res, nil
		}
		metrics.Get().BackendCommands.WithLabelValues(cmd.program(), "error").Inc()
		return res, fmt.Errorf("run %s: %w", cmd.String(), err)
	}
	metrics.Get().BackendCommands.WithLabelValues(cmd.program(), "ok").Inc()
	return res, nil
}
