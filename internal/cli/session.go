package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fg/internal/config"
	"fg/internal/control"
	"fg/internal/logx"
	"fg/internal/paths"
)

// session bundles what a command needs: resolved layout, effective config,
// logger and the control surface.
type session struct {
	layout  paths.Layout
	cfg     config.Config
	log     zerolog.Logger
	manager *control.Manager
	closer  io.Closer
}

func (s *session) Close() {
	if s.closer != nil {
		_ = s.closer.Close()
	}
}

// managerOptions lets tests swap collaborators of the manager.
var managerOptions []control.Option

func resolveLayout() (paths.Layout, error) {
	return paths.Resolve(strings.TrimSpace(settings.GetString("home")))
}

// openSession loads config and logging for the resolved root. With create
// unset the root is left untouched and the manager log is only opened when
// the root already exists.
func openSession(cmd *cobra.Command, create bool) (*session, error) {
	layout, err := resolveLayout()
	if err != nil {
		return nil, err
	}
	if create {
		if err := layout.Ensure(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(layout.ConfigFile)
	if err != nil {
		return nil, err
	}

	log, closer, err := openLogger(cmd, layout, cfg)
	if err != nil {
		return nil, err
	}
	return &session{
		layout:  layout,
		cfg:     cfg,
		log:     log,
		manager: control.New(layout, cfg, log, managerOptions...),
		closer:  closer,
	}, nil
}

func openLogger(cmd *cobra.Command, layout paths.Layout, cfg config.Config) (zerolog.Logger, io.Closer, error) {
	exists, err := paths.DirExists(layout.Root)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("stat root: %w", err)
	}
	if exists {
		return logx.New(layout, logx.Options{Level: cfg.LogLevel, Verbose: verbose, Console: stderrOf(cmd)})
	}
	if verbose {
		return zerolog.New(logx.NewConsoleWriter(stderrOf(cmd))).Level(zerolog.DebugLevel).With().Timestamp().Logger(), nil, nil
	}
	return zerolog.Nop(), nil, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
