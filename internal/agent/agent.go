// Package agent is the query and mutation surface of fwagent. It picks the
// backend, collects what the backend reports and reconciles it into one rule
// set, and routes mutations through the applier.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fwagent/internal/apply"
	"fwagent/internal/executor"
	"fwagent/internal/firewalld"
	"fwagent/internal/metrics"
	"fwagent/internal/portusage"
	"fwagent/internal/reconcile"
	"fwagent/internal/richrule"
	"fwagent/internal/rule"
	"fwagent/internal/ufw"
)

const (
	BackendFirewalld = "firewalld"
	BackendUFW       = "ufw"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrNotSupported   = errors.New("operation not supported by backend")
)

// ZoneSource is what the firewalld backend needs from its reader: the D-Bus
// client or the firewall-cmd fallback.
type ZoneSource interface {
	firewalld.ZoneReader
	firewalld.PortQuerier
}

type signalSource interface {
	SubscribeSignals(ctx context.Context) (<-chan firewalld.SignalEvent, func(), error)
}

type Options struct {
	Backend       string
	Zone          string
	AgentID       string
	QueryTimeout  time.Duration
	MutateTimeout time.Duration
	ReloadTimeout time.Duration
	// Snapshots, when set, is asked to save the zone before permanent
	// firewalld batches.
	Snapshots apply.Snapshotter
	// Usage, when set, annotates port rules with the listening process.
	Usage *portusage.Scanner
}

type Agent struct {
	backend string
	zone    string
	agentID string

	zones   ZoneSource
	ufw     *ufw.Client
	usage   *portusage.Scanner
	applier *apply.Applier
}

// New builds an agent. zones is only used by the firewalld backend and may
// be nil for ufw.
func New(opts Options, exec executor.Executor, zones ZoneSource) (*Agent, error) {
	a := &Agent{
		backend: strings.ToLower(opts.Backend),
		zone:    opts.Zone,
		agentID: opts.AgentID,
		zones:   zones,
		usage:   opts.Usage,
	}

	var backend apply.Backend
	switch a.backend {
	case BackendFirewalld:
		if zones == nil {
			return nil, fmt.Errorf("firewalld backend needs a zone reader")
		}
		backend = apply.FirewalldCommands{}
	case BackendUFW:
		a.ufw = ufw.NewClient(exec)
		if opts.QueryTimeout > 0 {
			a.ufw.QueryTimeout = opts.QueryTimeout
		}
		if opts.MutateTimeout > 0 {
			a.ufw.MutateTimeout = opts.MutateTimeout
		}
		backend = apply.UFWCommands{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}

	a.applier = apply.New(backend, exec)
	if opts.MutateTimeout > 0 {
		a.applier.MutateTimeout = opts.MutateTimeout
	}
	if opts.ReloadTimeout > 0 {
		a.applier.ReloadTimeout = opts.ReloadTimeout
	}
	if a.backend == BackendFirewalld && opts.Snapshots != nil {
		a.applier.Snapshots = opts.Snapshots
	}
	return a, nil
}

func (a *Agent) Backend() string { return a.backend }

func (a *Agent) AgentID() string { return a.agentID }

// UFW exposes the ufw client, nil on other backends.
func (a *Agent) UFW() *ufw.Client { return a.ufw }

// Zone resolves the zone to work on: the argument, the configured zone or
// the daemon's default zone. The ufw backend has a single scope.
func (a *Agent) Zone(ctx context.Context, zone string) (string, error) {
	if a.backend == BackendUFW {
		return rule.ZonelessScope, nil
	}
	if zone != "" {
		return zone, nil
	}
	if a.zone != "" {
		return a.zone, nil
	}
	zone, err := a.zones.DefaultZone(ctx)
	if err != nil {
		return "", fmt.Errorf("default zone: %w", err)
	}
	return zone, nil
}

func (a *Agent) Zones(ctx context.Context) ([]string, error) {
	if a.backend == BackendUFW {
		return []string{rule.ZonelessScope}, nil
	}
	return a.zones.ListZones(ctx)
}

// Rules returns the reconciled rule set of a zone. permanent selects the
// persisted configuration instead of the runtime one; ufw rules are always
// persistent and ignore it.
func (a *Agent) Rules(ctx context.Context, zone string, permanent bool) ([]rule.Rule, error) {
	start := time.Now()
	defer func() {
		metrics.Get().QueryDuration.WithLabelValues(a.backend).Observe(time.Since(start).Seconds())
	}()

	if a.backend == BackendUFW {
		rules, err := a.ufw.Rules(ctx, a.agentID)
		if err != nil {
			return nil, err
		}
		if len(rules) > 0 {
			if table := a.usageTable(ctx); table != nil {
				rules = table.AnnotateRules(rules)
			}
		}
		metrics.Get().RulesObserved.WithLabelValues(a.backend, rule.ZonelessScope).Set(float64(len(rules)))
		return rules, nil
	}

	zone, err := a.Zone(ctx, zone)
	if err != nil {
		return nil, err
	}
	richTexts, err := a.zones.GetRichRules(ctx, zone, permanent)
	if err != nil {
		return nil, err
	}
	ports, err := a.zones.GetPorts(ctx, zone, permanent)
	if err != nil {
		return nil, err
	}

	plainPorts := make([]reconcile.PlainPort, 0, len(ports))
	for _, p := range ports {
		plainPorts = append(plainPorts, reconcile.PlainPort{Port: p.Port, Protocol: p.Protocol})
	}
	if len(plainPorts) > 0 {
		if table := a.usageTable(ctx); table != nil {
			plainPorts = table.Annotate(plainPorts)
		}
	}

	rules := Reconcile(zone, a.agentID, permanent, richTexts, plainPorts)
	metrics.Get().RulesObserved.WithLabelValues(a.backend, zone).Set(float64(len(rules)))
	slog.Debug("rules collected", "backend", a.backend, "zone", zone, "permanent", permanent,
		"rich", len(richTexts), "ports", len(ports), "rules", len(rules))
	return rules, nil
}

// Reconcile turns a zone's rich rule strings and plain port listing into
// one rule set. Plain ports apply to both families.
func Reconcile(zone, agentID string, permanent bool, richTexts []string, plainPorts []reconcile.PlainPort) []rule.Rule {
	var rich []rule.Rule
	for _, f := range richrule.ParseZoneFragments(richTexts, permanent) {
		rich = append(rich, f.Rule(zone, agentID))
	}
	var plain []rule.Rule
	for _, p := range plainPorts {
		for _, fam := range []rule.Family{rule.FamilyIPv4, rule.FamilyIPv6} {
			plain = append(plain, p.Rule(zone, fam, permanent, agentID))
		}
	}
	return reconcile.Merge(rich, plain)
}

// usageTable scans listening sockets. It returns nil when no scanner is
// configured or the scan fails; usage data is optional.
func (a *Agent) usageTable(ctx context.Context) *portusage.Table {
	if a.usage == nil {
		return nil
	}
	table, err := a.usage.Scan(ctx)
	if err != nil {
		slog.Warn("port usage unavailable", "error", err)
		return nil
	}
	return table
}

// Apply inserts or deletes a rule. The zone defaults like Zone and the
// agent id is stamped on the rule.
func (a *Agent) Apply(ctx context.Context, r rule.Rule, op apply.Operation) error {
	zone, err := a.Zone(ctx, r.Zone)
	if err != nil {
		return err
	}
	r.Zone = zone
	r.AgentID = a.agentID
	if a.backend == BackendUFW {
		r.Permanent = true
	}
	return a.applier.Apply(ctx, r, op)
}

// QueryPort asks the daemon whether port/protocol is open in the zone.
func (a *Agent) QueryPort(ctx context.Context, zone, port, protocol string, permanent bool) (bool, error) {
	if a.backend != BackendFirewalld {
		return false, fmt.Errorf("query port: %w", ErrNotSupported)
	}
	zone, err := a.Zone(ctx, zone)
	if err != nil {
		return false, err
	}
	return a.zones.QueryPort(ctx, zone, firewalld.Port{Port: port, Protocol: protocol}, permanent)
}

// Convert runs the ufw protocol conversion workflow.
func (a *Agent) Convert(ctx context.Context) (ufw.Report, error) {
	if a.backend != BackendUFW {
		return ufw.Report{}, fmt.Errorf("convert: %w", ErrNotSupported)
	}
	return ufw.NewConverter(a.ufw).Run(ctx)
}

// Subscribe delivers backend change notifications when the backend has
// them (firewalld over D-Bus).
func (a *Agent) Subscribe(ctx context.Context) (<-chan firewalld.SignalEvent, func(), error) {
	src, ok := a.zones.(signalSource)
	if !ok {
		return nil, nil, fmt.Errorf("subscribe: %w", ErrNotSupported)
	}
	return src.SubscribeSignals(ctx)
}
