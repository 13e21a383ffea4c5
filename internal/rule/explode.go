package rule

import "strings"

// Explode expands a compound rule into atomic rules: one per port in a
// comma list, per protocol in a slash list and, for FamilyBoth, per family.
// Order is port-major, then protocol, then IPv4 before IPv6.
func Explode(r Rule) []Rule {
	ports := splitList(r.Port, ",")
	protocols := splitList(r.Protocol, "/")
	families := []Family{r.Family}
	if r.Family == FamilyBoth {
		families = []Family{FamilyIPv4, FamilyIPv6}
	}

	out := make([]Rule, 0, len(ports)*len(protocols)*len(families))
	for _, port := range ports {
		for _, proto := range protocols {
			for _, fam := range families {
				atom := r
				atom.Port = port
				atom.Protocol = strings.ToLower(proto)
				atom.Family = fam
				atom.Source = NormalizeSource(r.Source)
				out = append(out, atom)
			}
		}
	}
	return out
}

// ExplodeFamily splits only the family, leaving port and protocol alone.
func ExplodeFamily(r Rule) []Rule {
	if r.Family != FamilyBoth {
		return []Rule{r}
	}
	v4, v6 := r, r
	v4.Family = FamilyIPv4
	v6.Family = FamilyIPv6
	return []Rule{v4, v6}
}

func splitList(value, sep string) []string {
	parts := strings.Split(value, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{strings.TrimSpace(value)}
	}
	return out
}
