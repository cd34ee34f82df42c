package logx

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"fg/internal/paths"
)

func TestNewWritesJSONToManagerLog(t *testing.T) {
	layout := paths.New(filepath.Join(t.TempDir(), "fg"))

	logger, closer, err := New(layout, Options{Level: "info"})
	require.NoError(t, err)
	logger.Info().Str("version", "1.0").Msg("installed")
	logger.Debug().Msg("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(layout.ManagerLog)
	require.NoError(t, err)
	require.Contains(t, string(data), `"version":"1.0"`)
	require.Contains(t, string(data), `"message":"installed"`)
	require.NotContains(t, string(data), "hidden")
}

func TestVerboseMirrorsToConsole(t *testing.T) {
	layout := paths.New(t.TempDir())
	var console bytes.Buffer

	logger, closer, err := New(layout, Options{Verbose: true, Console: &console})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug().Msg("probing runtime")
	require.True(t, strings.Contains(console.String(), "probing runtime"))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
	require.Equal(t, zerolog.WarnLevel, ParseLevel("WARN"))
}
