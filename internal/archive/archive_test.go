package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"fg/internal/failure"
)

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"OpenJDK17U-jdk_x64_linux_hotspot_17.0.2_8.tar.gz":    FormatTarGz,
		"https://example.test/jdk.tgz?token=abc":               FormatTarGz,
		"https://example.test/OpenJDK17U-jdk_x64_windows.ZIP": FormatZip,
	}
	for name, want := range cases {
		got, err := DetectFormat(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}

	_, err := DetectFormat("https://example.test/jdk.rar")
	require.True(t, failure.Is(err, failure.UnsupportedFormat))
}

func TestRoundTripPreservesLayout(t *testing.T) {
	for _, format := range []Format{FormatZip, FormatTarGz} {
		t.Run(string(format), func(t *testing.T) {
			src := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(src, "fgmanifest.json"), []byte(`{"version":"1.0"}`), 0o644))
			require.NoError(t, os.MkdirAll(filepath.Join(src, "bin"), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(src, "bin", "java"), []byte("#!/bin/sh\n"), 0o755))

			bundle := filepath.Join(t.TempDir(), "bundle"+format.Extension())
			require.NoError(t, CreateFromDir(format, src, bundle))

			dst := filepath.Join(t.TempDir(), "out")
			require.NoError(t, Extract(format, bundle, dst))

			data, err := os.ReadFile(filepath.Join(dst, "fgmanifest.json"))
			require.NoError(t, err)
			require.JSONEq(t, `{"version":"1.0"}`, string(data))
			require.FileExists(t, filepath.Join(dst, "bin", "java"))
		})
	}
}

func TestExtractCorruptArchive(t *testing.T) {
	bogus := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(bogus, []byte("not a zip"), 0o644))
	require.Error(t, Extract(FormatZip, bogus, filepath.Join(t.TempDir(), "out")))
}
