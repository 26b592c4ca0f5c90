package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

// StartTUI runs the view while ingest feeds the session in the background.
// Quitting the view cancels ingest; an ingest error is shown in the view and
// returned once the user quits.
func StartTUI(ctx context.Context, model *Model, ingest func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	var g errgroup.Group
	g.Go(func() error {
		err := ingest(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		program.Send(IngestDoneMsg{Err: err})
		return err
	})

	_, runErr := program.Run()
	cancel()
	ingestErr := g.Wait()

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return ingestErr
}
