package apply

import (
	"strings"

	"fwagent/internal/firewalld"
	"fwagent/internal/richrule"
	"fwagent/internal/rule"
	"fwagent/internal/ufw"
)

// Backend turns atomic operations into backend commands and interprets
// their exit codes.
type Backend interface {
	Name() string
	Argv(a Atomic) []string
	ReloadArgv() []string
	// Idempotent reports whether a non-zero exit code means the requested
	// state already holds.
	Idempotent(code int) bool
}

// ZoneCreator is implemented by backends whose zones must exist before
// rules can be added to them.
type ZoneCreator interface {
	MissingZone(code int) bool
	CreateZoneArgv(zone string) [][]string
}

// DeleteResolver is implemented by backends that store rules in a richer
// form than a canonical rule carries. Before a delete the applier runs
// ListArgv and removes the stored entry ResolveDelete picks out of the
// listing, so verdicts, log prefixes and family scoping the rule lost still
// match.
type DeleteResolver interface {
	// ListArgv returns nil when the operation needs no lookup.
	ListArgv(a Atomic) []string
	ResolveDelete(a Atomic, listing string) ([]string, bool)
}

// FirewalldCommands drives firewall-cmd. Rules with a source, and deny
// rules, are written as rich rules; the rest use --add-port, which only
// expresses allow.
type FirewalldCommands struct{}

func (FirewalldCommands) Name() string { return "firewalld" }

func (FirewalldCommands) Argv(a Atomic) []string {
	action := "add"
	if a.Op == Delete {
		action = "remove"
	}
	r := a.Rule
	port := firewalldPort(r.Port)
	if richShape(r) {
		text := richrule.NewPortRule(richrule.PortRule{
			Family:    r.Family,
			Source:    r.Source,
			Port:      port,
			Protocol:  r.Protocol,
			Allow:     r.Policy,
			LogPrefix: r.Descriptor,
		}).String()
		return firewalld.RichRuleArgv(action, r.Zone, text, r.Permanent)
	}
	return firewalld.PortArgv(action, r.Zone, firewalld.Port{Port: port, Protocol: r.Protocol}, r.Permanent)
}

func (FirewalldCommands) ListArgv(a Atomic) []string {
	if a.Op != Delete || !richShape(a.Rule) {
		return nil
	}
	return firewalld.ListRichRulesArgv(a.Rule.Zone, a.Rule.Permanent)
}

// ResolveDelete finds the stored rich rule the atomic rule was parsed from.
// A stored rule whose log prefix equals the descriptor is preferred over
// one that only matches on identity.
func (FirewalldCommands) ResolveDelete(a Atomic, listing string) ([]string, bool) {
	want := a.Rule
	want.Port = firewalldPort(want.Port)
	var fallback string
	for _, line := range strings.Split(listing, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		for _, f := range richrule.ParseFragments(text) {
			f.Permanent = want.Permanent
			if !rule.Equal(f.Rule(want.Zone, want.AgentID), want) {
				continue
			}
			if f.Description == want.Descriptor {
				return firewalld.RichRuleArgv("remove", want.Zone, text, want.Permanent), true
			}
			if fallback == "" {
				fallback = text
			}
		}
	}
	if fallback == "" {
		return nil, false
	}
	return firewalld.RichRuleArgv("remove", want.Zone, fallback, want.Permanent), true
}

func richShape(r rule.Rule) bool {
	return r.HasSource() || !r.Policy
}

func firewalldPort(port string) string {
	return strings.ReplaceAll(port, ":", "-")
}

func (FirewalldCommands) ReloadArgv() []string { return firewalld.ReloadArgv() }

func (FirewalldCommands) Idempotent(code int) bool { return firewalld.IsIdempotentCode(code) }

func (FirewalldCommands) MissingZone(code int) bool { return code == firewalld.ExitInvalidZone }

func (FirewalldCommands) CreateZoneArgv(zone string) [][]string {
	return [][]string{firewalld.NewZoneArgv(zone), firewalld.ReloadArgv()}
}

// UFWCommands drives ufw. ufw exits 0 when a rule already exists or is
// already gone, so no exit code is treated as idempotent.
type UFWCommands struct{}

func (UFWCommands) Name() string { return "ufw" }

func (UFWCommands) Argv(a Atomic) []string {
	r := a.Rule
	action := "deny"
	if r.Policy {
		action = "allow"
	}
	spec := ufw.RuleSpec{
		Action:   action,
		Port:     strings.ReplaceAll(r.Port, "-", ":"),
		Protocol: r.Protocol,
		Source:   r.Source,
		Family:   r.Family,
	}
	if !r.HasSource() {
		spec.Family = rule.FamilyBoth
	}
	if a.Op == Delete {
		return ufw.DeleteArgv(spec)
	}
	spec.Comment = r.Descriptor
	return ufw.InsertArgv(spec)
}

func (UFWCommands) ReloadArgv() []string { return ufw.ReloadArgv() }

func (UFWCommands) Idempotent(int) bool { return false }
