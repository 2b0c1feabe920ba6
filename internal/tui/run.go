// Package tui is a terminal browser for the function graph: the list of
// functions, their aspect texts and lifecycles, and the call references the
// scanner finds in each implementation.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/store"
)

// Run starts the interactive browser over a loaded store and blocks until
// the user quits.
func Run(s *store.Store) error {
	p := tea.NewProgram(NewBrowseModel(s), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	return nil
}
