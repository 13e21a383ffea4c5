// Package reconcile merges the rule fragments that different query paths
// report for the same zone into one deduplicated rule set.
package reconcile

import (
	"strings"

	"fwagent/internal/rule"
)

// PlainPort is one entry of a zone's plain port listing.
type PlainPort struct {
	Port     string
	Protocol string
	// Descriptor is typically the name of the process bound to the port.
	Descriptor string
	InUse      bool
}

// Rule builds the canonical rule a plain listing entry stands for: any
// source, allow. An empty protocol is kept empty; Merge expands it.
func (p PlainPort) Rule(zone string, family rule.Family, permanent bool, agentID string) rule.Rule {
	return rule.Rule{
		Zone:       zone,
		Kind:       rule.KindPort,
		Family:     family,
		Port:       p.Port,
		Protocol:   strings.ToLower(p.Protocol),
		Source:     rule.AnySource,
		Policy:     true,
		InUse:      p.InUse,
		Permanent:  permanent,
		Descriptor: p.Descriptor,
		AgentID:    agentID,
	}
}

// Merge returns the union of rich and plain in insertion order, keyed by
// rule identity. Rich-rule entries go in first, so on a key collision the
// rich-rule entry is kept and the plain one is dropped. A plain entry with
// no protocol stands for tcp and udp and is inserted as both.
func Merge(rich, plain []rule.Rule) []rule.Rule {
	s := newOrderedSet(len(rich) + 2*len(plain))
	for _, r := range rich {
		s.add(r)
	}
	for _, r := range plain {
		if strings.TrimSpace(r.Protocol) != "" {
			s.add(r)
			continue
		}
		for _, proto := range []string{"tcp", "udp"} {
			expanded := r
			expanded.Protocol = proto
			s.add(expanded)
		}
	}
	return s.items
}

type orderedSet struct {
	seen  map[rule.Key]struct{}
	items []rule.Rule
}

func newOrderedSet(capacity int) *orderedSet {
	return &orderedSet{
		seen:  make(map[rule.Key]struct{}, capacity),
		items: make([]rule.Rule, 0, capacity),
	}
}

func (s *orderedSet) add(r rule.Rule) bool {
	key := r.Key()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.items = append(s.items, r)
	return true
}
