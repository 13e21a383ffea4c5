package ufw

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fwagent/internal/executor"
)

type fakeRule struct {
	to      string
	action  string
	from    string
	comment string
	v6      bool
}

// fakeUFW keeps a rule table and answers the ufw commands the client issues.
// It lists IPv4 rules before IPv6 rules and renumbers after every change,
// like ufw does.
type fakeUFW struct {
	v4       []fakeRule
	v6       []fakeRule
	inactive bool
	calls    [][]string

	failDelete func(fakeRule) bool
	failInsert func([]string) bool
	// resurrect re-adds every deleted IPv6 rule, so pruning never converges.
	resurrect bool
}

func (f *fakeUFW) Run(_ context.Context, cmd executor.Command) (executor.Result, error) {
	argv := cmd.Argv
	f.calls = append(f.calls, append([]string(nil), argv...))
	if len(argv) < 2 || argv[0] != "ufw" {
		return executor.Result{ExitCode: 1, Stderr: "unknown command"}, nil
	}
	switch {
	case argv[1] == "status":
		return executor.Result{Stdout: f.render()}, nil
	case argv[1] == "reload":
		return executor.Result{Stdout: "Firewall reloaded\n"}, nil
	case len(argv) == 4 && argv[1] == "--force" && argv[2] == "delete":
		n, err := strconv.Atoi(argv[3])
		if err != nil {
			return executor.Result{ExitCode: 1, Stderr: "ERROR: Invalid syntax"}, nil
		}
		return f.deleteNumber(n), nil
	default:
		return f.add(argv[1:]), nil
	}
}

func (f *fakeUFW) all() []fakeRule {
	return append(append([]fakeRule(nil), f.v4...), f.v6...)
}

func (f *fakeUFW) render() string {
	if f.inactive {
		return "Status: inactive\n"
	}
	var b strings.Builder
	b.WriteString("Status: active\n\n")
	b.WriteString("     To                         Action      From\n")
	b.WriteString("     --                         ------      ----\n")
	for i, r := range f.all() {
		to, from := r.to, r.from
		if r.v6 {
			to += " (v6)"
			if from == "Anywhere" {
				from += " (v6)"
			}
		}
		line := fmt.Sprintf("[%2d] %-26s %-11s %s", i+1, to, r.action+" IN", from)
		if r.comment != "" {
			line = fmt.Sprintf("[%2d] %-26s %-11s %-26s # %s", i+1, to, r.action+" IN", from, r.comment)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

func (f *fakeUFW) deleteNumber(n int) executor.Result {
	if n < 1 || n > len(f.v4)+len(f.v6) {
		return executor.Result{ExitCode: 1, Stderr: "ERROR: Could not find rule '" + strconv.Itoa(n) + "'"}
	}
	var victim fakeRule
	if n <= len(f.v4) {
		victim = f.v4[n-1]
	} else {
		victim = f.v6[n-1-len(f.v4)]
	}
	if f.failDelete != nil && f.failDelete(victim) {
		return executor.Result{ExitCode: 1, Stderr: "ERROR: delete refused"}
	}
	if n <= len(f.v4) {
		f.v4 = append(f.v4[:n-1], f.v4[n:]...)
	} else {
		i := n - 1 - len(f.v4)
		f.v6 = append(f.v6[:i], f.v6[i+1:]...)
		if f.resurrect {
			f.v6 = append(f.v6, victim)
		}
	}
	return executor.Result{Stdout: "Rule deleted\n"}
}

func (f *fakeUFW) add(args []string) executor.Result {
	if f.failInsert != nil && f.failInsert(args) {
		return executor.Result{ExitCode: 1, Stderr: "ERROR: insert refused"}
	}
	comment := ""
	if n := len(args); n >= 2 && args[n-2] == "comment" {
		comment = args[n-1]
		args = args[:n-2]
	}
	action := strings.ToUpper(args[0])

	switch {
	case len(args) == 2:
		f.insert(fakeRule{to: args[1], action: action, from: "Anywhere", comment: comment})
		f.insert(fakeRule{to: args[1], action: action, from: "Anywhere", comment: comment, v6: true})
	case len(args) >= 7 && args[1] == "from" && args[3] == "to" && args[5] == "port":
		to := args[6]
		if len(args) == 9 && args[7] == "proto" {
			to += "/" + args[8]
		}
		r := fakeRule{to: to, action: action, from: args[2], comment: comment}
		switch {
		case args[2] == "0.0.0.0/0":
			r.from = "Anywhere"
		case args[2] == "::/0":
			r.from = "Anywhere"
			r.v6 = true
		case strings.Contains(args[2], ":"):
			r.v6 = true
		}
		f.insert(r)
	default:
		return executor.Result{ExitCode: 1, Stderr: "ERROR: Invalid syntax"}
	}
	return executor.Result{Stdout: "Rule added\n"}
}

func (f *fakeUFW) insert(r fakeRule) {
	list := &f.v4
	if r.v6 {
		list = &f.v6
	}
	for _, existing := range *list {
		if existing.to == r.to && existing.action == r.action && existing.from == r.from {
			return
		}
	}
	*list = append(*list, r)
}

func (f *fakeUFW) has(to, action, from string, v6 bool) bool {
	for _, r := range f.all() {
		if r.to == to && r.action == action && r.from == from && r.v6 == v6 {
			return true
		}
	}
	return false
}

func (f *fakeUFW) commandsStartingWith(prefix ...string) int {
	count := 0
	for _, c := range f.calls {
		if len(c) < len(prefix) {
			continue
		}
		match := true
		for i, p := range prefix {
			if c[i] != p {
				match = false
				break
			}
		}
		if match {
			count++
		}
	}
	return count
}

func dualStack(rules ...fakeRule) *fakeUFW {
	f := &fakeUFW{}
	for _, r := range rules {
		f.v4 = append(f.v4, r)
		r.v6 = true
		f.v6 = append(f.v6, r)
	}
	return f
}
