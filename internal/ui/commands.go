//go:build linux
// +build linux

package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"fwagent/internal/firewalld"
	"fwagent/internal/rule"
)

type zonesMsg struct {
	zones []string
	err   error
}

type rulesMsg struct {
	zone      string
	permanent bool
	rules     []rule.Rule
	err       error
}

type signalsReadyMsg struct {
	ch     <-chan firewalld.SignalEvent
	cancel func()
	err    error
}

type signalMsg struct {
	event firewalld.SignalEvent
	ok    bool
}

func fetchZonesCmd(ctx context.Context, src Source) tea.Cmd {
	return func() tea.Msg {
		zones, err := src.Zones(ctx)
		return zonesMsg{zones: zones, err: err}
	}
}

func fetchRulesCmd(ctx context.Context, src Source, zone string, permanent bool) tea.Cmd {
	return func() tea.Msg {
		rules, err := src.Rules(ctx, zone, permanent)
		return rulesMsg{zone: zone, permanent: permanent, rules: rules, err: err}
	}
}

func subscribeCmd(ctx context.Context, src Source) tea.Cmd {
	return func() tea.Msg {
		ch, cancel, err := src.Subscribe(ctx)
		return signalsReadyMsg{ch: ch, cancel: cancel, err: err}
	}
}

func waitSignalCmd(ch <-chan firewalld.SignalEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		return signalMsg{event: ev, ok: ok}
	}
}
