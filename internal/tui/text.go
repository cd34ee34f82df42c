package tui

import "strings"

// NonEmptyOrDash returns "-" for blank values.
func NonEmptyOrDash(value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return "-"
	}
	return value
}

// clip shortens value to width, marking the cut with "...".
func clip(value string, width int) string {
	value = strings.TrimSpace(value)
	switch {
	case width <= 0:
		return ""
	case len(value) <= width:
		return value
	case width <= 3:
		return value[:width]
	}
	return value[:width-3] + "..."
}

func pad(s string, width int) string {
	if n := width - len(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
