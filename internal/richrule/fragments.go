package richrule

import (
	"log/slog"
	"regexp"
	"strings"

	"fwagent/internal/metrics"
	"fwagent/internal/rule"
)

// Fragment is one port rule harvested from a rich rule string.
type Fragment struct {
	Port        string
	Protocol    string
	Source      string
	Policy      string
	Description string
	Family      rule.Family
	Permanent   bool
}

// Allow reports whether the fragment's policy lets traffic through.
func (f Fragment) Allow() bool {
	allow, _ := rule.PolicyFromAction(f.Policy)
	return allow
}

// Rule converts the fragment into a canonical port rule.
func (f Fragment) Rule(zone, agentID string) rule.Rule {
	return rule.Rule{
		Zone:       zone,
		Kind:       rule.KindPort,
		Family:     f.Family,
		Port:       f.Port,
		Protocol:   strings.ToLower(f.Protocol),
		Source:     rule.NormalizeSource(f.Source),
		Policy:     f.Allow(),
		Permanent:  f.Permanent,
		Descriptor: f.Description,
		AgentID:    agentID,
	}
}

var (
	portDeclRe   = regexp.MustCompile(`(?:^|\s)port\s+port=["']?([^"'\s]+)["']?\s+protocol=["']?([^"'\s]+)["']?`)
	sourceDeclRe = regexp.MustCompile(`(?:^|\s)source\s+(?:NOT\s+)?address=["']?([^"'\s]+)["']?`)
	logDeclRe    = regexp.MustCompile(`(?:^|\s)log((?:\s+[\w-]+=(?:"[^"]*"|'[^']*'|\S+))+)`)
	logPrefixRe  = regexp.MustCompile(`prefix=(?:"([^"]*)"|'([^']*)'|(\S+))`)
	familyRe     = regexp.MustCompile(`family=["']?(ipv4|ipv6)["']?`)
	limitTailRe  = regexp.MustCompile(`\s+limit\s+value=["']?[^"'\s]+["']?\s*$`)
	rejectTypeRe = regexp.MustCompile(`\s+type=["']?[^"'\s]+["']?\s*$`)
)

type declaration struct {
	offset int
	value  string
}

// ParseFragments extracts port fragments from one rich rule.
//
// Each port declaration takes the source address declared closest before it
// in the text, or rule.AnySource when none precedes it. The description is
// the prefix of the closest preceding log declaration; without one it is the
// first log after the port and before the next port, else empty. Rules whose verdict is not
// accept, reject or drop yield nothing. A rule without a family attribute
// yields one fragment per family.
func ParseFragments(text string) []Fragment {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	policy, ok := trailingVerdict(text)
	if !ok {
		slog.Debug("rich rule skipped: unsupported verdict", "rule", text)
		metrics.Get().ParseSkipped.WithLabelValues("rich_rule").Inc()
		return nil
	}

	ports := portDeclRe.FindAllStringSubmatchIndex(text, -1)
	if len(ports) == 0 {
		slog.Debug("rich rule skipped: no port declaration", "rule", text)
		metrics.Get().ParseSkipped.WithLabelValues("rich_rule").Inc()
		return nil
	}
	sources := collectDeclarations(text, sourceDeclRe, func(m []string) string { return m[1] })
	prefixes := collectDeclarations(text, logDeclRe, func(m []string) string { return logPrefix(m[1]) })

	families := []rule.Family{rule.FamilyIPv4, rule.FamilyIPv6}
	if m := familyRe.FindStringSubmatch(text); m != nil {
		fam, _ := rule.ParseFamily(m[1])
		families = []rule.Family{fam}
	}

	out := make([]Fragment, 0, len(ports)*len(families))
	for i, loc := range ports {
		offset := loc[0]
		port := text[loc[2]:loc[3]]
		proto := text[loc[4]:loc[5]]
		source := precedingValue(sources, offset, rule.AnySource)
		next := len(text)
		if i+1 < len(ports) {
			next = ports[i+1][0]
		}
		desc, ok := precedingDeclaration(prefixes, offset)
		if !ok {
			desc = followingValue(prefixes, offset, next)
		}
		for _, fam := range families {
			out = append(out, Fragment{
				Port:        port,
				Protocol:    proto,
				Source:      source,
				Policy:      policy,
				Description: desc,
				Family:      fam,
			})
		}
	}
	return out
}

// ParseZoneFragments parses every rich rule of a zone listing and stamps the
// permanent flag on the results.
func ParseZoneFragments(texts []string, permanent bool) []Fragment {
	var out []Fragment
	for _, text := range texts {
		for _, f := range ParseFragments(text) {
			f.Permanent = permanent
			out = append(out, f)
		}
	}
	return out
}

func trailingVerdict(text string) (string, bool) {
	text = limitTailRe.ReplaceAllString(text, "")
	text = rejectTypeRe.ReplaceAllString(text, "")
	idx := strings.LastIndexAny(text, " \t")
	last := strings.ToLower(text[idx+1:])
	switch last {
	case "accept", "reject", "drop":
		return last, true
	default:
		return "", false
	}
}

func collectDeclarations(text string, re *regexp.Regexp, value func([]string) string) []declaration {
	locs := re.FindAllStringSubmatchIndex(text, -1)
	out := make([]declaration, 0, len(locs))
	for _, loc := range locs {
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		out = append(out, declaration{offset: loc[0], value: value(groups)})
	}
	return out
}

// precedingValue scans declarations in text order and returns the value of
// the last one that starts before offset.
func precedingValue(decls []declaration, offset int, fallback string) string {
	if value, ok := precedingDeclaration(decls, offset); ok {
		return value
	}
	return fallback
}

func precedingDeclaration(decls []declaration, offset int) (string, bool) {
	var value string
	found := false
	for _, d := range decls {
		if d.offset >= offset {
			break
		}
		value, found = d.value, true
	}
	return value, found
}

// followingValue returns the first declaration in [from, to).
func followingValue(decls []declaration, from, to int) string {
	for _, d := range decls {
		if d.offset > from && d.offset < to {
			return d.value
		}
	}
	return ""
}

func logPrefix(attrs string) string {
	m := logPrefixRe.FindStringSubmatch(attrs)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
