package tui

import (
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"fg/internal/progress"
)

// tableReporter forwards events to a running InstallTable.
type tableReporter struct {
	send func(tea.Msg)
}

func (r tableReporter) Report(e progress.Event) { r.send(eventMsg(e)) }

// LineReporter prints a line for each settled item and each download start.
// It stands in for the table when output is not an interactive terminal.
type LineReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineReporter writes to w.
func NewLineReporter(w io.Writer) *LineReporter {
	return &LineReporter{w: w}
}

// Report implements progress.Reporter.
func (r *LineReporter) Report(e progress.Event) {
	state := string(e.State)
	if !IsTerminal(state) && e.State != progress.StateDownloading {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "  %s%s  %s\n",
		leadCells(string(e.Step), e.Item),
		StatusStyle(state).Render(pad(state, stateWidth)),
		NonEmptyOrDash(e.Detail))
}
