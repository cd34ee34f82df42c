package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"fg/internal/progress"
)

// RunInstall renders an InstallTable on out while work runs. Quitting the
// table cancels the context handed to work; RunInstall returns only after
// work has returned, with work's error taking precedence.
func RunInstall(ctx context.Context, out io.Writer, title string, work func(context.Context, progress.Reporter) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewInstallTable(title), tea.WithOutput(out))
	workErr := make(chan error, 1)
	go func() {
		err := work(ctx, tableReporter{send: p.Send})
		workErr <- err
		p.Send(finishedMsg{err: err})
	}()

	_, runErr := p.Run()
	cancel()
	if err := <-workErr; err != nil {
		return err
	}
	return runErr
}
