//go:build linux
// +build linux

package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"

	"fwagent/internal/firewalld"
	"fwagent/internal/rule"
)

type familyFilter int

const (
	filterAll familyFilter = iota
	filterIPv4
	filterIPv6
)

func (f familyFilter) String() string {
	switch f {
	case filterIPv4:
		return "ipv4"
	case filterIPv6:
		return "ipv6"
	default:
		return "all"
	}
}

func (f familyFilter) next() familyFilter {
	return (f + 1) % 3
}

func (f familyFilter) match(r rule.Rule) bool {
	switch f {
	case filterIPv4:
		return r.Family == rule.FamilyIPv4
	case filterIPv6:
		return r.Family == rule.FamilyIPv6
	default:
		return true
	}
}

var columns = []table.Column{
	{Title: "Family", Width: 6},
	{Title: "Port", Width: 11},
	{Title: "Proto", Width: 5},
	{Title: "Source", Width: 20},
	{Title: "Policy", Width: 6},
	{Title: "In use", Width: 6},
	{Title: "Descriptor", Width: 24},
}

type Model struct {
	ctx context.Context
	src Source

	zones       []string
	preferred   string
	selected    int
	pendingZone string
	permanent   bool
	filter      familyFilter

	rules   []rule.Rule
	table   table.Model
	loading bool
	err     error
	notice  string

	signals       <-chan firewalld.SignalEvent
	signalsCancel func()

	width   int
	height  int
	spinner spinner.Model
}

func NewModel(ctx context.Context, src Source, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Line

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	m := Model{
		ctx:       ctx,
		src:       src,
		permanent: opts.Permanent,
		loading:   true,
		table:     t,
		spinner:   sp,
	}
	m.preferred = opts.Zone
	return m
}

func (m Model) currentZone() string {
	if m.selected < 0 || m.selected >= len(m.zones) {
		return ""
	}
	return m.zones[m.selected]
}

func (m Model) visibleRules() []rule.Rule {
	out := make([]rule.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		if m.filter.match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *Model) syncTable() {
	m.table.SetRows(tableRows(m.visibleRules()))
}

func tableRows(rules []rule.Rule) []table.Row {
	rows := make([]table.Row, 0, len(rules))
	for _, r := range rules {
		policy := "deny"
		if r.Policy {
			policy = "allow"
		}
		inUse := ""
		if r.InUse {
			inUse = "yes"
		}
		port := r.Port
		if r.Kind != rule.KindPort {
			port = r.Value
		}
		rows = append(rows, table.Row{
			r.Family.String(),
			port,
			r.Protocol,
			rule.NormalizeSource(r.Source),
			policy,
			inUse,
			r.Descriptor,
		})
	}
	return rows
}
