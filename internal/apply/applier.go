package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fwagent/internal/executor"
	"fwagent/internal/firewalld"
	"fwagent/internal/metrics"
	"fwagent/internal/rule"
)

const (
	DefaultMutateTimeout = 30 * time.Second
	DefaultReloadTimeout = 60 * time.Second
)

// Snapshotter saves a zone's persisted configuration before a permanent
// batch touches it.
type Snapshotter interface {
	Snapshot(zone, reason string) error
}

// Applier runs the atomic operations of a rule against one backend.
type Applier struct {
	backend Backend
	exec    executor.Executor

	MutateTimeout time.Duration
	ReloadTimeout time.Duration
	Snapshots     Snapshotter
}

func New(backend Backend, exec executor.Executor) *Applier {
	return &Applier{
		backend:       backend,
		exec:          exec,
		MutateTimeout: DefaultMutateTimeout,
		ReloadTimeout: DefaultReloadTimeout,
	}
}

// Apply validates r, expands it into atomic operations and runs them in
// order. It stops at the first operation that neither succeeds nor reports
// an idempotent exit code and returns a *BatchError listing what was
// applied; nothing is rolled back. A permanent rule is followed by a reload.
func (a *Applier) Apply(ctx context.Context, r rule.Rule, op Operation) error {
	if r.Kind != rule.KindPort {
		return fmt.Errorf("%w: %s rules cannot be applied", rule.ErrInvalidRule, r.Kind)
	}
	if err := rule.Validate(r); err != nil {
		return err
	}

	atoms := Decompose(r, op)
	slog.Info("applying rule", "backend", a.backend.Name(), "operation", op, "rule", r.String(), "atomic", len(atoms))

	if r.Permanent && a.Snapshots != nil {
		if err := a.Snapshots.Snapshot(r.Zone, op.String()+" "+r.Port+"/"+r.Protocol); err != nil {
			slog.Warn("zone snapshot failed", "zone", r.Zone, "error", err)
		}
	}

	applied := make([]Atomic, 0, len(atoms))
	zoneCreated := false
	for i := 0; i < len(atoms); i++ {
		atom := atoms[i]
		argv := a.backend.Argv(atom)
		if stored, ok := a.resolveDelete(ctx, atom); ok {
			argv = stored
		}
		cmd := executor.Command{Argv: argv, Timeout: a.MutateTimeout}
		res, err := a.exec.Run(ctx, cmd)
		if err != nil {
			return a.fail(applied, atom, err)
		}

		switch {
		case res.ExitCode == 0:
			a.count(op, "ok")
		case a.backend.Idempotent(res.ExitCode):
			slog.Debug("already in desired state", "operation", atom.String(), "code", res.ExitCode)
			a.count(op, "idempotent")
		case a.missingZone(res.ExitCode):
			exitErr := executor.Check(cmd, res)
			if op == Delete {
				return a.fail(applied, atom, fmt.Errorf("zone %q: %w: %w", atom.Rule.Zone, firewalld.ErrZoneNotFound, exitErr))
			}
			if zoneCreated {
				return a.fail(applied, atom, exitErr)
			}
			if err := a.createZone(ctx, atom.Rule.Zone); err != nil {
				return a.fail(applied, atom, err)
			}
			zoneCreated = true
			i--
			continue
		default:
			return a.fail(applied, atom, executor.Check(cmd, res))
		}
		applied = append(applied, atom)
	}

	if r.Permanent {
		if err := a.reload(ctx); err != nil {
			return &BatchError{Applied: applied, Err: err}
		}
	}
	return nil
}

// ApplyAll applies each rule in turn and stops at the first failure.
func (a *Applier) ApplyAll(ctx context.Context, rules []rule.Rule, op Operation) error {
	for _, r := range rules {
		if err := a.Apply(ctx, r, op); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) fail(applied []Atomic, atom Atomic, err error) error {
	a.count(atom.Op, "failed")
	slog.Error("rule operation failed", "backend", a.backend.Name(), "operation", atom.String(), "applied", len(applied), "error", err)
	failed := atom
	return &BatchError{Applied: applied, Failed: &failed, Err: err}
}

// resolveDelete looks up the stored form of a rule about to be deleted. A
// failed lookup falls back to the command built from the rule itself.
func (a *Applier) resolveDelete(ctx context.Context, atom Atomic) ([]string, bool) {
	dr, ok := a.backend.(DeleteResolver)
	if !ok {
		return nil, false
	}
	list := dr.ListArgv(atom)
	if list == nil {
		return nil, false
	}
	out, err := executor.Output(ctx, a.exec, executor.Command{Argv: list, Timeout: a.MutateTimeout})
	if err != nil {
		slog.Debug("stored rule lookup failed", "operation", atom.String(), "error", err)
		return nil, false
	}
	argv, ok := dr.ResolveDelete(atom, out)
	if ok {
		slog.Debug("deleting stored rule", "operation", atom.String(), "command", strings.Join(argv, " "))
	}
	return argv, ok
}

func (a *Applier) missingZone(code int) bool {
	zc, ok := a.backend.(ZoneCreator)
	return ok && zc.MissingZone(code)
}

func (a *Applier) createZone(ctx context.Context, zone string) error {
	zc, ok := a.backend.(ZoneCreator)
	if !ok {
		return errors.New("backend has no zones")
	}
	slog.Info("creating missing zone", "backend", a.backend.Name(), "zone", zone)
	for _, argv := range zc.CreateZoneArgv(zone) {
		cmd := executor.Command{Argv: argv, Timeout: a.ReloadTimeout}
		res, err := a.exec.Run(ctx, cmd)
		if err != nil {
			return fmt.Errorf("create zone %s: %w", zone, err)
		}
		if res.ExitCode != 0 && !a.backend.Idempotent(res.ExitCode) {
			return fmt.Errorf("create zone %s: %w", zone, executor.Check(cmd, res))
		}
	}
	return nil
}

func (a *Applier) reload(ctx context.Context) error {
	cmd := executor.Command{Argv: a.backend.ReloadArgv(), Timeout: a.ReloadTimeout}
	res, err := a.exec.Run(ctx, cmd)
	if err == nil {
		err = executor.Check(cmd, res)
	}
	if err != nil {
		slog.Error("reload failed", "backend", a.backend.Name(), "error", err)
		return fmt.Errorf("reload %s: %w", a.backend.Name(), err)
	}
	slog.Info("backend reloaded", "backend", a.backend.Name())
	return nil
}

func (a *Applier) count(op Operation, result string) {
	metrics.Get().RuleOperations.WithLabelValues(a.backend.Name(), op.String(), result).Inc()
}
