package ufw

import (
	"log/slog"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"fwagent/internal/metrics"
)

const anywhere = "Anywhere"

// StatusLine is one rule row of `ufw status [numbered]`.
type StatusLine struct {
	RuleNumber         int
	To                 string
	RawTo              string
	Action             string
	Direction          string
	From               string
	RawFrom            string
	Comment            string
	IsIPv6             bool
	Enabled            bool
	IsProtocolSpecific bool
}

var (
	numberRe   = regexp.MustCompile(`^\[\s*(\d+)\s*\]\s*`)
	disabledRe = regexp.MustCompile(`(?i)\s*\[disabled\]\s*`)
	v6MarkerRe = regexp.MustCompile(`(?i)\(v6\)`)
	markerRe   = regexp.MustCompile(`(?i)\s*\((?:v6|in|out|ein|aus|entrée|sortie|entrada|salida|entrant|sortant)\)`)
	spacesRe   = regexp.MustCompile(`\s{2,}`)

	fourColumnRe  = regexp.MustCompile(`(?i)^(.+?)\s{2,}(ALLOW|DENY|REJECT|LIMIT)(?:\s+(IN|OUT|FWD))?\s{2,}(.+)$`)
	threeColumnRe = regexp.MustCompile(`^(.+?)\s{2,}(\S+(?:\s\S+)?)\s{2,}(.+)$`)

	portTokenRe = regexp.MustCompile(`^\d+(?:[:-]\d+)?(?:,\d+(?:[:-]\d+)?)*(?:/[A-Za-z]+)?$`)
	protoOnlyRe = regexp.MustCompile(`^(?i:tcp|udp|sctp|dccp|esp|ah|gre|ipv6|igmp)$`)
	cidrRe      = regexp.MustCompile(`/\d{1,3}$`)
)

var headerWords = map[string]struct{}{
	"to":     {},
	"action": {},
	"from":   {},
	"zu":     {},
	"aktion": {},
	"von":    {},
	"vers":   {},
	"de":     {},
	"a":      {},
	"acción": {},
	"desde":  {},
}

var primaryActions = map[string]struct{}{
	"ALLOW":  {},
	"DENY":   {},
	"REJECT": {},
	"LIMIT":  {},
}

// ParseStatus parses the full output of `ufw status`, dropping every line
// that is not a rule.
func ParseStatus(output string, numbered bool) []StatusLine {
	var out []StatusLine
	for _, line := range strings.Split(output, "\n") {
		if sl, ok := ParseStatusLine(line, numbered); ok {
			out = append(out, sl)
		}
	}
	return out
}

// ParseStatusLine parses one status row. ok is false for headers,
// separators, summary lines and anything unparseable.
func ParseStatusLine(line string, numbered bool) (StatusLine, bool) {
	text := strings.TrimRight(line, "\r")
	if isNoiseLine(text) {
		return StatusLine{}, false
	}
	text = strings.TrimSpace(text)

	sl := StatusLine{RuleNumber: -1, Enabled: true}

	if m := numberRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return skip(line, "bad rule number")
		}
		sl.RuleNumber = n
		text = text[len(m[0]):]
	} else if numbered {
		return skip(line, "missing rule number")
	}

	if disabledRe.MatchString(text) {
		sl.Enabled = false
		text = disabledRe.ReplaceAllString(text, " ")
	}

	text, sl.Comment = splitComment(text)

	globalV6 := v6MarkerRe.MatchString(text)
	text = strings.TrimSpace(markerRe.ReplaceAllString(text, ""))
	if text == "" || isHeader(text) {
		return skip(line, "no columns")
	}

	to, action, direction, from, ok := splitColumns(text)
	if !ok {
		return skip(line, "no column layout matched")
	}
	action, direction = splitActionDirection(action, direction)
	if action == "" {
		return skip(line, "empty action")
	}

	sl.RawTo = to
	sl.RawFrom = from
	sl.Action = action
	sl.Direction = direction
	sl.To = strings.Join(strings.Fields(to), " ")
	sl.From = strings.Join(strings.Fields(from), " ")
	if sl.To == "" {
		sl.To = anywhere
	}
	if sl.From == "" {
		sl.From = anywhere
	}
	sl.IsIPv6 = resolveIPv6(globalV6, sl.To, sl.From)
	sl.IsProtocolSpecific = strings.Contains(firstField(sl.To), "/") && portTokenRe.MatchString(firstField(sl.To))
	return sl, true
}

func skip(line, reason string) (StatusLine, bool) {
	slog.Debug("status line skipped", "line", line, "reason", reason)
	metrics.Get().ParseSkipped.WithLabelValues("ufw_status").Inc()
	return StatusLine{}, false
}

func isNoiseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	if strings.Trim(trimmed, "- \t") == "" {
		return true
	}
	for _, prefix := range []string{"Status:", "Logging:", "Default:", "New profiles:"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return isHeader(trimmed)
}

func isHeader(text string) bool {
	fields := strings.Fields(text)
	if len(fields) < 3 || len(fields) > 4 {
		return false
	}
	for _, f := range fields {
		if _, ok := headerWords[strings.ToLower(f)]; !ok {
			return false
		}
	}
	return true
}

// splitComment cuts the line at the first '#' outside quotes.
func splitComment(line string) (string, string) {
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
		case quote == 0 && r == '#':
			return line[:i], strings.TrimSpace(line[i+1:])
		}
	}
	return line, ""
}

// splitColumns tries the strict four-column layout, then To/ActionDirection/From,
// then a plain split on runs of two or more spaces.
func splitColumns(text string) (to, action, direction, from string, ok bool) {
	if m := fourColumnRe.FindStringSubmatch(text); m != nil {
		return m[1], m[2], m[3], m[4], true
	}
	if m := threeColumnRe.FindStringSubmatch(text); m != nil {
		return m[1], m[2], "", m[3], true
	}
	fields := spacesRe.Split(text, -1)
	switch {
	case len(fields) == 2:
		return fields[0], fields[1], "", "", true
	case len(fields) >= 3:
		return fields[0], fields[1], "", strings.Join(fields[2:], " "), true
	default:
		return "", "", "", "", false
	}
}

// splitActionDirection separates "ALLOW IN" or a fused "ALLOWIN" and fills
// in the default IN direction for primary actions.
func splitActionDirection(action, direction string) (string, string) {
	action = strings.TrimSpace(action)
	direction = strings.ToUpper(strings.TrimSpace(direction))

	if direction == "" {
		if head, tail, ok := strings.Cut(action, " "); ok {
			action, direction = head, strings.ToUpper(strings.TrimSpace(tail))
		}
	}
	if direction == "" {
		action, direction = splitFusedDirection(action)
	}

	upper := strings.ToUpper(action)
	if _, ok := primaryActions[upper]; ok {
		action = upper
		if direction == "" {
			direction = "IN"
		}
	}
	return action, direction
}

func splitFusedDirection(action string) (string, string) {
	for _, suffix := range []string{"OUT", "FWD", "IN"} {
		// Upper-case suffixes split anything ("ALLOWIN", "ErlaubenIN"); a
		// lower-case suffix only splits a known action ("allowin").
		if strings.HasSuffix(action, suffix) && len(action) > len(suffix) {
			return action[:len(action)-len(suffix)], suffix
		}
		lower := strings.ToLower(suffix)
		if strings.HasSuffix(action, lower) && len(action) > len(lower) {
			head := action[:len(action)-len(lower)]
			if _, ok := primaryActions[strings.ToUpper(head)]; ok {
				return head, suffix
			}
		}
	}
	return action, ""
}

func resolveIPv6(globalMarker bool, to, from string) bool {
	if globalMarker {
		return true
	}
	if isIPv6Literal(firstField(from)) {
		return true
	}
	target := firstField(to)
	if strings.EqualFold(target, anywhere) || portTokenRe.MatchString(target) || protoOnlyRe.MatchString(target) {
		return false
	}
	return isIPv6Literal(target)
}

func isIPv6Literal(s string) bool {
	s = cidrRe.ReplaceAllString(s, "")
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is6() && !addr.Is4In6()
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
