// Package portusage reports which local ports have a listening process.
package portusage

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fwagent/internal/executor"
	"fwagent/internal/reconcile"
	"fwagent/internal/rule"
)

const DefaultTimeout = 5 * time.Second

var processRe = regexp.MustCompile(`users:\(\("([^"]+)"`)

// Listener is one listening socket.
type Listener struct {
	Port     int
	Protocol string
	Process  string
}

// Table indexes listeners by port.
type Table struct {
	byPort map[int][]Listener
}

// Scanner lists listening sockets with ss.
type Scanner struct {
	exec    executor.Executor
	Timeout time.Duration
}

func NewScanner(exec executor.Executor) *Scanner {
	return &Scanner{exec: exec, Timeout: DefaultTimeout}
}

func (s *Scanner) Scan(ctx context.Context) (*Table, error) {
	cmd := executor.Command{Argv: []string{"ss", "-Hlntup"}, Timeout: s.Timeout}
	out, err := executor.Output(ctx, s.exec, cmd)
	if err != nil {
		return nil, fmt.Errorf("list listening sockets: %w", err)
	}
	return ParseSS(out), nil
}

// ParseSS parses `ss -Hlntup` output. Lines it cannot read are dropped.
func ParseSS(output string) *Table {
	t := &Table{byPort: make(map[int][]Listener)}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		local := fields[4]
		idx := strings.LastIndex(local, ":")
		if idx < 0 {
			continue
		}
		port, err := strconv.Atoi(local[idx+1:])
		if err != nil {
			slog.Debug("ss line skipped", "line", line)
			continue
		}
		l := Listener{Port: port, Protocol: strings.ToLower(fields[0])}
		if m := processRe.FindStringSubmatch(line); m != nil {
			l.Process = m[1]
		}
		t.byPort[port] = append(t.byPort[port], l)
	}
	return t
}

// Lookup reports whether anything listens on the port token (a port or a
// range written with '-' or ':') for the protocol, and the first process
// name found. An empty protocol matches any.
func (t *Table) Lookup(portToken, protocol string) (string, bool) {
	if t == nil {
		return "", false
	}
	lo, hi, ok := portBounds(portToken)
	if !ok {
		return "", false
	}
	protocol = strings.ToLower(protocol)
	for p := lo; p <= hi; p++ {
		for _, l := range t.byPort[p] {
			if protocol == "" || l.Protocol == protocol {
				return l.Process, true
			}
		}
	}
	return "", false
}

// Annotate fills InUse and, when empty, Descriptor on each plain port.
func (t *Table) Annotate(ports []reconcile.PlainPort) []reconcile.PlainPort {
	out := make([]reconcile.PlainPort, len(ports))
	for i, p := range ports {
		process, inUse := t.Lookup(p.Port, p.Protocol)
		p.InUse = inUse
		if p.Descriptor == "" {
			p.Descriptor = process
		}
		out[i] = p
	}
	return out
}

// AnnotateRules does the same as Annotate for port rules that are already
// canonical, such as those folded from ufw status lines.
func (t *Table) AnnotateRules(rules []rule.Rule) []rule.Rule {
	out := make([]rule.Rule, len(rules))
	for i, r := range rules {
		if r.Kind == rule.KindPort {
			process, inUse := t.Lookup(r.Port, r.Protocol)
			r.InUse = inUse
			if r.Descriptor == "" {
				r.Descriptor = process
			}
		}
		out[i] = r
	}
	return out
}

func portBounds(token string) (int, int, bool) {
	token = strings.TrimSpace(token)
	start, end, isRange := strings.Cut(token, "-")
	if !isRange {
		start, end, isRange = strings.Cut(token, ":")
	}
	lo, err := strconv.Atoi(start)
	if err != nil {
		return 0, 0, false
	}
	if !isRange {
		return lo, lo, true
	}
	hi, err := strconv.Atoi(end)
	if err != nil || hi < lo {
		return 0, 0, false
	}
	return lo, hi, true
}
