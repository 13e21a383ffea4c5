package apply

import (
	"context"
	"sort"
	"strings"

	"fwagent/internal/executor"
)

// fakeFirewallCmd models the subset of firewall-cmd the applier uses,
// including its exit codes for already-present and missing entries.
type fakeFirewallCmd struct {
	zones     map[string]bool
	entries   map[string]bool
	calls     [][]string
	reloads   int
	failOn    string
	failCode  int
	failCount int
}

func newFakeFirewallCmd(zones ...string) *fakeFirewallCmd {
	f := &fakeFirewallCmd{zones: map[string]bool{}, entries: map[string]bool{}, failCode: 1}
	for _, z := range zones {
		f.zones[z] = true
	}
	return f
}

func (f *fakeFirewallCmd) Run(_ context.Context, cmd executor.Command) (executor.Result, error) {
	argv := cmd.Argv
	f.calls = append(f.calls, append([]string(nil), argv...))

	zone, permanent, mutation := "", false, ""
	for _, a := range argv[1:] {
		switch {
		case a == "--permanent":
			permanent = true
		case strings.HasPrefix(a, "--zone="):
			zone = strings.TrimPrefix(a, "--zone=")
		case a == "--reload":
			f.reloads++
			return executor.Result{Stdout: "success\n"}, nil
		case strings.HasPrefix(a, "--new-zone="):
			name := strings.TrimPrefix(a, "--new-zone=")
			if f.zones[name] {
				return executor.Result{ExitCode: 26, Stderr: "Error: NAME_CONFLICT"}, nil
			}
			f.zones[name] = true
			return executor.Result{Stdout: "success\n"}, nil
		default:
			mutation = a
		}
	}

	if f.failOn != "" && strings.Contains(mutation, f.failOn) {
		f.failCount++
		return executor.Result{ExitCode: f.failCode, Stderr: "Error: COMMAND_FAILED"}, nil
	}
	if !f.zones[zone] {
		return executor.Result{ExitCode: 112, Stderr: "Error: INVALID_ZONE: " + zone}, nil
	}

	if mutation == "--list-rich-rules" {
		prefix := zone + "|" + boolString(permanent) + "|rich-rule|"
		var lines []string
		for k := range f.entries {
			if strings.HasPrefix(k, prefix) {
				lines = append(lines, strings.TrimPrefix(k, prefix))
			}
		}
		sort.Strings(lines)
		return executor.Result{Stdout: strings.Join(lines, "\n") + "\n"}, nil
	}

	verb, value, ok := strings.Cut(strings.TrimPrefix(mutation, "--"), "=")
	if !ok {
		return executor.Result{ExitCode: 2, Stderr: "usage"}, nil
	}
	kind := verb[strings.Index(verb, "-")+1:]
	key := zone + "|" + boolString(permanent) + "|" + kind + "|" + value

	switch {
	case strings.HasPrefix(verb, "add-"):
		if f.entries[key] {
			return executor.Result{ExitCode: 11, Stderr: "Warning: ALREADY_ENABLED: " + value}, nil
		}
		f.entries[key] = true
	case strings.HasPrefix(verb, "remove-"):
		if !f.entries[key] {
			return executor.Result{ExitCode: 12, Stderr: "Warning: NOT_ENABLED: " + value}, nil
		}
		delete(f.entries, key)
	default:
		return executor.Result{ExitCode: 2, Stderr: "usage"}, nil
	}
	return executor.Result{Stdout: "success\n"}, nil
}

func (f *fakeFirewallCmd) store(zone string, permanent bool, richRule string) {
	f.entries[zone+"|"+boolString(permanent)+"|rich-rule|"+richRule] = true
}

func (f *fakeFirewallCmd) mutations() int {
	n := 0
	for _, c := range f.calls {
		last := c[len(c)-1]
		if strings.HasPrefix(last, "--add-") || strings.HasPrefix(last, "--remove-") {
			n++
		}
	}
	return n
}

func boolString(b bool) string {
	if b {
		return "permanent"
	}
	return "runtime"
}
