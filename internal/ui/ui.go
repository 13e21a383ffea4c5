//go:build linux
// +build linux

package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"fwagent/internal/firewalld"
	"fwagent/internal/rule"
)

// Source is what the browser reads from; *agent.Agent implements it.
type Source interface {
	Zones(ctx context.Context) ([]string, error)
	Rules(ctx context.Context, zone string, permanent bool) ([]rule.Rule, error)
	Subscribe(ctx context.Context) (<-chan firewalld.SignalEvent, func(), error)
}

type Options struct {
	NoColor   bool
	Permanent bool
	Zone      string
}

func Run(ctx context.Context, src Source, opts Options) error {
	if opts.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	model := NewModel(ctx, src, opts)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	m, err := program.Run()
	if finalModel, ok := m.(Model); ok && finalModel.signalsCancel != nil {
		finalModel.signalsCancel()
	}
	return err
}
