package tui

import (
	"io"
	"os"
	"runtime"
	"strings"
)

// OutputMode selects how a command renders progress.
type OutputMode int

const (
	// ModeTUI draws the animated install table.
	ModeTUI OutputMode = iota
	// ModePlain prints a line per settled item.
	ModePlain
	// ModeJSON defers all output to a final JSON document.
	ModeJSON
)

// DetectMode chooses JSON when asked, the table only on an interactive
// terminal, and plain lines otherwise.
func DetectMode(out io.Writer, noProgress, jsonOutput bool) OutputMode {
	switch {
	case jsonOutput:
		return ModeJSON
	case noProgress || !interactive(out):
		return ModePlain
	}
	return ModeTUI
}

func interactive(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	term := os.Getenv("TERM")
	return term != "" && !strings.EqualFold(term, "dumb")
}
