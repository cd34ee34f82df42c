package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"fg/internal/progress"
)

const frameInterval = 120 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Column widths of the install table, in display order.
const (
	stepWidth   = 10
	itemWidth   = 32
	stateWidth  = 11
	detailWidth = 48
)

type (
	frameMsg    time.Time
	eventMsg    progress.Event
	finishedMsg struct{ err error }
)

// InstallTable shows one row per install item, in the order items were
// first reported. Later events for the same item overwrite its row.
type InstallTable struct {
	title   string
	rows    []progress.Event
	index   map[string]int
	started time.Time
	frame   int
	closed  bool
	err     error
}

// NewInstallTable returns an empty table headed by title.
func NewInstallTable(title string) InstallTable {
	return InstallTable{title: title, index: make(map[string]int), started: time.Now()}
}

func nextFrame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// Init implements tea.Model.
func (t InstallTable) Init() tea.Cmd { return nextFrame() }

// Update implements tea.Model.
func (t InstallTable) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		if t.closed {
			return t, nil
		}
		t.frame++
		return t, nextFrame()
	case eventMsg:
		t.record(progress.Event(msg))
		return t, nil
	case finishedMsg:
		t.closed, t.err = true, msg.err
		return t, tea.Quit
	case tea.KeyMsg:
		if k := msg.String(); k == "ctrl+c" || k == "q" {
			t.closed = true
			return t, tea.Quit
		}
	}
	return t, nil
}

func (t *InstallTable) record(e progress.Event) {
	key := e.Key()
	if i, ok := t.index[key]; ok {
		t.rows[i] = e
		return
	}
	t.index[key] = len(t.rows)
	t.rows = append(t.rows, e)
}

// View implements tea.Model.
func (t InstallTable) View() string {
	var b strings.Builder
	if t.title != "" {
		b.WriteString(TitleStyle.Render(t.title))
		b.WriteString("\n\n")
	}
	b.WriteString(HeaderStyle.Render(leadCells("STEP", "ITEM") + pad("STATUS", stateWidth) + "  DETAIL"))
	b.WriteByte('\n')
	for _, e := range t.rows {
		state := string(e.State)
		b.WriteString(leadCells(string(e.Step), e.Item))
		b.WriteString(StatusStyle(state).Render(pad(state, stateWidth)))
		b.WriteString("  ")
		b.WriteString(clip(NonEmptyOrDash(e.Detail), detailWidth))
		b.WriteByte('\n')
	}

	settled := t.settled()
	switch {
	case t.err != nil:
		fmt.Fprintf(&b, "\n%s\n", StatusStyle(string(progress.StateFailed)).Render("Error: "+t.err.Error()))
	case t.closed:
		fmt.Fprintf(&b, "\n%d/%d settled in %s\n", settled, len(t.rows), t.elapsed())
	default:
		fmt.Fprintf(&b, "\n%s %d/%d settled, %s\n", spinnerFrames[t.frame%len(spinnerFrames)], settled, len(t.rows), t.elapsed())
	}
	return b.String()
}

// leadCells renders the step and item cells with their trailing gaps.
func leadCells(step, item string) string {
	return pad(clip(step, stepWidth), stepWidth) + "  " + pad(clip(NonEmptyOrDash(item), itemWidth), itemWidth) + "  "
}

func (t InstallTable) settled() int {
	n := 0
	for _, e := range t.rows {
		if IsTerminal(string(e.State)) {
			n++
		}
	}
	return n
}

func (t InstallTable) elapsed() time.Duration {
	return time.Since(t.started).Round(100 * time.Millisecond)
}

// Err returns the failure the table closed with, if any.
func (t InstallTable) Err() error { return t.err }
