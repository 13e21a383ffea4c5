package ufw

import (
	"strings"

	"fwagent/internal/rule"
	"fwagent/internal/validation"
)

// PortAndProtocol splits the destination into its port token and optional
// protocol. ok is false when the destination is not a port (an application
// profile, an address, or Anywhere).
func (s StatusLine) PortAndProtocol() (port, protocol string, ok bool) {
	target := firstField(s.To)
	if target == "" || strings.EqualFold(target, anywhere) {
		return "", "", false
	}
	port, protocol, _ = strings.Cut(target, "/")
	if validation.ValidatePortToken(port) != nil {
		return "", "", false
	}
	return port, strings.ToLower(protocol), true
}

// IsConversionCandidate reports whether the line is an enabled inbound
// ALLOW/DENY/REJECT rule on a bare numeric port or range, which is what the
// conversion workflow rewrites into per-protocol rules.
func (s StatusLine) IsConversionCandidate() bool {
	if !s.Enabled || s.Direction != "IN" || s.IsProtocolSpecific {
		return false
	}
	switch s.Action {
	case "ALLOW", "DENY", "REJECT":
	default:
		return false
	}
	if strings.Contains(s.To, " ") {
		return false
	}
	return validation.IsNumericPort(s.To)
}

// SourceAddress returns the rule's source, or rule.AnySource for Anywhere.
func (s StatusLine) SourceAddress() string {
	return rule.NormalizeSource(firstField(s.From))
}

// Fold turns an inbound status line into canonical rules. A port without a
// protocol covers both tcp and udp; an application profile becomes a single
// SERVICE rule. Outbound, disabled and unparseable destinations yield nothing.
func Fold(s StatusLine, agentID string) []rule.Rule {
	if !s.Enabled || s.Direction != "IN" {
		return nil
	}
	policy, ok := rule.PolicyFromAction(s.Action)
	if !ok {
		return nil
	}
	family := rule.FamilyIPv4
	if s.IsIPv6 {
		family = rule.FamilyIPv6
	}
	base := rule.Rule{
		Zone:       rule.ZonelessScope,
		Kind:       rule.KindPort,
		Family:     family,
		Source:     s.SourceAddress(),
		Policy:     policy,
		Permanent:  true,
		Descriptor: s.Comment,
		AgentID:    agentID,
	}

	port, proto, ok := s.PortAndProtocol()
	if !ok {
		target := firstField(s.To)
		if target == "" || strings.EqualFold(target, anywhere) || isIPv6Literal(target) || strings.ContainsAny(target, ".:") {
			return nil
		}
		base.Kind = rule.KindService
		base.Value = target
		return []rule.Rule{base}
	}
	base.Port = port
	base.Protocol = proto
	if proto == "" {
		base.Protocol = "tcp/udp"
	}
	return rule.Explode(base)
}

// FoldAll folds every status line, keeping the output order of the listing.
func FoldAll(lines []StatusLine, agentID string) []rule.Rule {
	var out []rule.Rule
	for _, sl := range lines {
		out = append(out, Fold(sl, agentID)...)
	}
	return out
}
