package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fg/internal/paths"
)

// Options controls where log lines go besides the manager log file.
type Options struct {
	Level   string
	Verbose bool
	Console io.Writer
}

// New creates a logger that appends JSON lines to <root>/logs/fg.log. When
// Verbose is set a human-readable console writer is attached as well. The
// returned closer should be closed when logging is no longer needed.
func New(l paths.Layout, opts Options) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(l.LogsDir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("ensure logs directory: %w", err)
	}

	file, err := os.OpenFile(l.ManagerLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	level := ParseLevel(opts.Level)
	var out io.Writer = file
	if opts.Verbose {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		out = zerolog.MultiLevelWriter(file, NewConsoleWriter(console))
		if level > zerolog.DebugLevel {
			level = zerolog.DebugLevel
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, file, nil
}

// NewConsoleWriter returns a compact writer for interactive use.
func NewConsoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.Kitchen,
		FormatLevel: func(i interface{}) string {
			return fmt.Sprintf("[%s]", strings.ToUpper(fmt.Sprintf("%s", i)))
		},
	}
}

// ParseLevel maps a config value onto a zerolog level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || value == "" {
		return zerolog.InfoLevel
	}
	return level
}
