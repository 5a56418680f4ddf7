package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"vidsqueeze/internal/session"
)

// Run launches the TUI over sess and blocks until the user quits. It returns
// the error of the last job the user ran, if that job failed.
func Run(ctx context.Context, sess *session.Session, opts Options) error {
	m := NewModel(ctx, sess, opts)
	prog := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	final, err := prog.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok {
		return fm.Err()
	}
	return nil
}
