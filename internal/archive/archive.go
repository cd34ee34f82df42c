// Package archive unpacks and builds the zip and tar.gz bundles fg handles.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver"

	"fg/internal/failure"
)

// Format identifies a supported archive encoding.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
)

// DetectFormat infers the format from a file name or URL suffix.
func DetectFormat(name string) (Format, error) {
	lower := strings.ToLower(name)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, nil
	default:
		return "", failure.New(failure.UnsupportedFormat, "unsupported archive format").With("name", name)
	}
}

// Extension returns the canonical file suffix for f.
func (f Format) Extension() string {
	return "." + string(f)
}

// Extract unpacks src into dst, creating dst when needed. Entries that would
// land outside dst are rejected.
func Extract(format Format, src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create extraction dir: %w", err)
	}
	var err error
	switch format {
	case FormatZip:
		z := archiver.NewZip()
		z.MkdirAll = true
		z.OverwriteExisting = true
		err = z.Unarchive(src, dst)
	case FormatTarGz:
		tgz := archiver.NewTarGz()
		tgz.MkdirAll = true
		tgz.OverwriteExisting = true
		err = tgz.Unarchive(src, dst)
	default:
		return failure.New(failure.UnsupportedFormat, "unsupported archive format").With("format", string(format))
	}
	if err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(src), err)
	}
	return nil
}

// Create packs sources into dst. Each source lands at the archive root under
// its base name; directories keep their contents beneath that name.
func Create(format Format, sources []string, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	var err error
	switch format {
	case FormatZip:
		err = archiver.NewZip().Archive(sources, dst)
	case FormatTarGz:
		err = archiver.NewTarGz().Archive(sources, dst)
	default:
		return failure.New(failure.UnsupportedFormat, "unsupported archive format").With("format", string(format))
	}
	if err != nil {
		return fmt.Errorf("create archive %s: %w", filepath.Base(dst), err)
	}
	return nil
}

// CreateFromDir packs every top-level entry of dir so the archive root
// mirrors dir's contents.
func CreateFromDir(format Format, dir, dst string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	sources := make([]string, 0, len(entries))
	for _, entry := range entries {
		sources = append(sources, filepath.Join(dir, entry.Name()))
	}
	return Create(format, sources, dst)
}
