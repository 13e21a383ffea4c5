//go:build linux
// +build linux

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	tabActiveStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62")).Padding(0, 1)
	tabInactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Background(lipgloss.Color("237")).Padding(0, 1)
	statusStyle      = lipgloss.NewStyle().Background(lipgloss.Color("236")).Foreground(lipgloss.Color("250")).Padding(0, 1)
	mainStyle        = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(renderZoneTabs(m))
	b.WriteString("\n")

	mode := "runtime"
	if m.permanent {
		mode = "permanent"
	}
	header := fmt.Sprintf("%s rules (%s, family %s)", m.currentZone(), mode, m.filter)
	if m.loading {
		header = fmt.Sprintf("%s %s loading...", header, m.spinner.View())
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}
	if len(m.visibleRules()) == 0 && !m.loading {
		b.WriteString(dimStyle.Render("No rules"))
	} else {
		b.WriteString(m.table.View())
	}

	main := mainStyle
	if m.width > 2 {
		main = main.Width(m.width - 2)
	}
	return lipgloss.JoinVertical(lipgloss.Left, main.Render(b.String()), renderStatus(m))
}

func renderZoneTabs(m Model) string {
	if len(m.zones) == 0 {
		return dimStyle.Render("No zones")
	}
	tabs := make([]string, 0, len(m.zones))
	for i, z := range m.zones {
		if i == m.selected {
			tabs = append(tabs, tabActiveStyle.Render(z))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(z))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func renderStatus(m Model) string {
	parts := []string{
		fmt.Sprintf("%d/%d rules", len(m.visibleRules()), len(m.rules)),
		"tab zone",
		"P runtime/permanent",
		"f family",
		"r refresh",
		"q quit",
	}
	if m.notice != "" {
		parts = append(parts, m.notice)
	}
	return statusStyle.Render(strings.Join(parts, " | "))
}
