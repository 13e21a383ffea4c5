package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrTimeout = errors.New("command timed out")

// Command is one backend invocation. Shell, when set, is run through
// /bin/sh -c instead of Argv.
type Command struct {
	Argv    []string
	Shell   string
	Timeout time.Duration
}

func (c Command) String() string {
	if c.Shell != "" {
		return c.Shell
	}
	return strings.Join(c.Argv, " ")
}

func (c Command) program() string {
	if c.Shell != "" {
		return "sh"
	}
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// Result is what a command produced. A non-zero exit is a Result, not an
// error; only failures to run at all are returned as errors.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs backend commands.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitError is a backend command that finished with a code the caller does
// not accept.
type ExitError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Stdout)
	}
	if msg == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, msg)
}

// Check turns a result into an *ExitError unless its exit code is 0 or one
// of accepted.
func Check(cmd Command, res Result, accepted ...int) error {
	if res.ExitCode == 0 {
		return nil
	}
	for _, code := range accepted {
		if res.ExitCode == code {
			return nil
		}
	}
	return &ExitError{
		Command:  cmd.String(),
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
}

// Output runs cmd and returns stdout, failing on any non-zero exit.
func Output(ctx context.Context, ex Executor, cmd Command) (string, error) {
	res, err := ex.Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := Check(cmd, res); err != nil {
		return "", err
	}
	return res.Stdout, nil
}
