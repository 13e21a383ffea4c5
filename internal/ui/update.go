//go:build linux
// +build linux

package ui

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

var errNoZones = errors.New("no zones returned")

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, fetchZonesCmd(m.ctx, m.src), subscribeCmd(m.ctx, m.src))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 6; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m.reload()
		case "P":
			m.permanent = !m.permanent
			return m.reload()
		case "f":
			m.filter = m.filter.next()
			m.syncTable()
			return m, nil
		case "tab", "right", "l":
			return m.selectZone(m.selected + 1)
		case "shift+tab", "left", "h":
			return m.selectZone(m.selected - 1)
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	case zonesMsg:
		if msg.err != nil {
			m.loading = false
			m.err = msg.err
			return m, nil
		}
		if len(msg.zones) == 0 {
			m.loading = false
			m.err = errNoZones
			return m, nil
		}
		m.zones = msg.zones
		m.selected = 0
		for i, z := range m.zones {
			if z == m.preferred {
				m.selected = i
			}
		}
		return m.reload()
	case rulesMsg:
		if msg.zone != m.pendingZone || msg.permanent != m.permanent {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.rules = msg.rules
		m.syncTable()
		return m, nil
	case signalsReadyMsg:
		if msg.err != nil {
			slog.Debug("live updates unavailable", "error", msg.err)
			return m, nil
		}
		m.signals = msg.ch
		m.signalsCancel = msg.cancel
		return m, waitSignalCmd(m.signals)
	case signalMsg:
		if !msg.ok {
			m.signals = nil
			return m, nil
		}
		m.notice = fmt.Sprintf("firewalld: %s", msg.event.Name)
		if msg.event.Zone != "" && msg.event.Zone != m.currentZone() {
			return m, waitSignalCmd(m.signals)
		}
		next, cmd := m.reload()
		return next, tea.Batch(cmd, waitSignalCmd(m.signals))
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) selectZone(i int) (tea.Model, tea.Cmd) {
	if len(m.zones) == 0 {
		return m, nil
	}
	m.selected = (i + len(m.zones)) % len(m.zones)
	return m.reload()
}

func (m Model) reload() (tea.Model, tea.Cmd) {
	zone := m.currentZone()
	if zone == "" {
		return m, nil
	}
	m.loading = true
	m.err = nil
	m.pendingZone = zone
	return m, fetchRulesCmd(m.ctx, m.src, zone, m.permanent)
}
