package rule

import (
	"fmt"
	"strings"
)

const (
	// AnySource means the rule has no source restriction.
	AnySource = "0.0.0.0"
	// ZonelessScope is the zone recorded for rules of backends without zones.
	ZonelessScope = "ufw"
)

type Kind int

const (
	KindPort Kind = iota
	KindService
	KindForwardPort
	KindMasquerade
	KindIcmpBlock
	KindRichRule
	KindInterface
	KindSource
	KindDirect
)

var kindNames = [...]string{
	KindPort:        "PORT",
	KindService:     "SERVICE",
	KindForwardPort: "FORWARD_PORT",
	KindMasquerade:  "MASQUERADE",
	KindIcmpBlock:   "ICMP_BLOCK",
	KindRichRule:    "RICH_RULE",
	KindInterface:   "INTERFACE",
	KindSource:      "SOURCE",
	KindDirect:      "DIRECT",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "UNKNOWN"
	}
	return kindNames[k]
}

func ParseKind(s string) (Kind, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return KindPort, fmt.Errorf("unknown rule type %q", s)
}

type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
	// FamilyBoth is only valid on write requests; Explode turns it into one
	// rule per family.
	FamilyBoth
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	case FamilyBoth:
		return "both"
	default:
		return "unknown"
	}
}

func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ipv4", "inet", "4":
		return FamilyIPv4, nil
	case "ipv6", "inet6", "6":
		return FamilyIPv6, nil
	case "both", "all", "":
		return FamilyBoth, nil
	default:
		return FamilyBoth, fmt.Errorf("unknown family %q", s)
	}
}

// Rule is the backend-agnostic firewall rule. Kinds other than KindPort
// carry their payload (service name, interface, raw rich rule text) in Value.
type Rule struct {
	Zone       string
	Kind       Kind
	Family     Family
	Port       string
	Protocol   string
	Source     string
	Policy     bool
	InUse      bool
	Permanent  bool
	Descriptor string
	AgentID    string
	Value      string
}

// Key is the identity of a rule. Descriptor and InUse are observations and
// are not part of it.
type Key struct {
	Zone      string
	Kind      Kind
	Permanent bool
	AgentID   string
	Family    Family
	Port      string
	Protocol  string
	Source    string
	Policy    bool
	Value     string
}

func (r Rule) Key() Key {
	return Key{
		Zone:      r.Zone,
		Kind:      r.Kind,
		Permanent: r.Permanent,
		AgentID:   r.AgentID,
		Family:    r.Family,
		Port:      r.Port,
		Protocol:  strings.ToLower(r.Protocol),
		Source:    NormalizeSource(r.Source),
		Policy:    r.Policy,
		Value:     r.Value,
	}
}

func Equal(a, b Rule) bool {
	return a.Key() == b.Key()
}

// HasSource reports whether the rule restricts the source address.
func (r Rule) HasSource() bool {
	return NormalizeSource(r.Source) != AnySource
}

func (r Rule) String() string {
	policy := "deny"
	if r.Policy {
		policy = "allow"
	}
	if r.Kind != KindPort {
		return fmt.Sprintf("%s %s %s %s", r.Zone, r.Kind, r.Value, policy)
	}
	return fmt.Sprintf("%s %s %s/%s from %s %s", r.Zone, r.Family, r.Port, r.Protocol, NormalizeSource(r.Source), policy)
}

// NormalizeSource maps every spelling of "no source restriction" to AnySource.
func NormalizeSource(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "anywhere", "0.0.0.0", "0.0.0.0/0", "::", "::/0":
		return AnySource
	default:
		return strings.TrimSpace(s)
	}
}

// PolicyFromAction maps a backend verdict keyword to a policy.
func PolicyFromAction(action string) (policy bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "accept", "allow", "limit":
		return true, true
	case "reject", "drop", "deny":
		return false, true
	default:
		return false, false
	}
}
