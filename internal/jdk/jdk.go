// Package jdk provisions per-version Java runtimes under <root>/runtimes.
package jdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"fg/internal/archive"
	"fg/internal/failure"
	"fg/internal/fetch"
	"fg/internal/lockfile"
	"fg/internal/manifest"
	"fg/internal/paths"
	"fg/internal/progress"
)

const (
	maxSearchDepth   = 8
	maxSearchEntries = 50000
)

var goos = runtime.GOOS

// HostOS maps the running platform onto a manifest download key.
func HostOS() (string, error) {
	switch goos {
	case "linux":
		return "linux", nil
	case "darwin":
		return "mac", nil
	case "windows":
		return "windows", nil
	default:
		return "", failure.New(failure.UnsupportedPlatform, "unsupported platform %s", goos)
	}
}

// ExecutableName returns java with the platform suffix.
func ExecutableName() string {
	if goos == "windows" {
		return "java.exe"
	}
	return "java"
}

// Home returns the runtime home (parent of bin) for a java executable.
func Home(executable string) string {
	return filepath.Dir(filepath.Dir(executable))
}

// Provisioner downloads and unpacks runtimes once per (runtime, app) pair.
type Provisioner struct {
	layout     paths.Layout
	downloader fetch.Downloader
	log        zerolog.Logger
}

// NewProvisioner wires a Provisioner.
func NewProvisioner(layout paths.Layout, downloader fetch.Downloader, log zerolog.Logger) *Provisioner {
	return &Provisioner{layout: layout, downloader: downloader, log: log}
}

// Ensure returns the java executable for spec, provisioning it when the
// runtime directory is empty or absent.
func (p *Provisioner) Ensure(ctx context.Context, spec *manifest.Runtime, appVersion string, rep progress.Reporter) (string, error) {
	rep = progress.OrNop(rep)
	if !spec.Requested() {
		return "", failure.New(failure.InvalidArgument, "no runtime requested")
	}
	dir, err := p.layout.RuntimeDir(spec.Version, appVersion)
	if err != nil {
		return "", err
	}
	item := spec.Version

	release, err := lockfile.Acquire(ctx, dir+".lock", 0)
	if err != nil {
		return "", err
	}
	defer release()

	cached, err := paths.DirNonEmpty(dir)
	if err != nil {
		return "", fmt.Errorf("inspect runtime dir: %w", err)
	}
	if cached {
		exe, err := FindExecutable(dir)
		if err != nil {
			rep.Report(progress.Event{Step: progress.StepRuntime, Item: item, State: progress.StateFailed, Detail: err.Error()})
			return "", err
		}
		rep.Report(progress.Event{Step: progress.StepRuntime, Item: item, State: progress.StateCached, Detail: dir})
		return exe, nil
	}

	host, err := HostOS()
	if err != nil {
		return "", err
	}
	url, ok := spec.URLFor(host)
	if !ok {
		return "", failure.New(failure.MissingDownload, "no runtime download for %s", host).With("runtime", spec.Version)
	}
	format, err := archive.DetectFormat(url)
	if err != nil {
		return "", err
	}

	rep.Report(progress.Event{Step: progress.StepRuntime, Item: item, State: progress.StateDownloading, Detail: url})
	exe, err := p.provision(ctx, url, format, dir, rep, item)
	if err != nil {
		rep.Report(progress.Event{Step: progress.StepRuntime, Item: item, State: progress.StateFailed, Detail: err.Error()})
		return "", err
	}
	rep.Report(progress.Event{Step: progress.StepRuntime, Item: item, State: progress.StateDone, Detail: exe})
	p.log.Info().Str("runtime", spec.Version).Str("app_version", appVersion).Str("java", exe).Msg("runtime provisioned")
	return exe, nil
}

func (p *Provisioner) provision(ctx context.Context, url string, format archive.Format, dir string, rep progress.Reporter, item string) (string, error) {
	if err := os.MkdirAll(p.layout.DownloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare downloads dir: %w", err)
	}
	if err := os.MkdirAll(p.layout.RuntimesDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare runtimes dir: %w", err)
	}

	tmpDir, err := os.MkdirTemp(p.layout.DownloadsDir, "runtime-")
	if err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	archivePath := filepath.Join(tmpDir, "runtime"+format.Extension())
	if err := p.downloader.Download(ctx, url, archivePath, ""); err != nil {
		return "", failure.From(failure.ProvisionFailure, err, "download runtime").With("url", url)
	}

	extractDir, err := os.MkdirTemp(p.layout.RuntimesDir, ".extract-")
	if err != nil {
		return "", fmt.Errorf("create extract dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(extractDir)
		}
	}()

	rep.Report(progress.Event{Step: progress.StepRuntime, Item: item, State: progress.StateExtracting})
	if err := archive.Extract(format, archivePath, extractDir); err != nil {
		return "", failure.From(failure.ProvisionFailure, err, "extract runtime").With("url", url)
	}

	found, err := FindExecutable(extractDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(extractDir, found)
	if err != nil {
		return "", fmt.Errorf("relativize runtime executable: %w", err)
	}

	// An empty leftover directory would block the rename.
	_ = os.Remove(dir)
	if err := os.Rename(extractDir, dir); err != nil {
		return "", failure.From(failure.ProvisionFailure, err, "commit runtime").With("dir", dir)
	}
	committed = true
	return filepath.Join(dir, rel), nil
}

// Locate returns the java executable of an already provisioned runtime.
func (p *Provisioner) Locate(spec *manifest.Runtime, appVersion string) (string, error) {
	if !spec.Requested() {
		return "", failure.New(failure.RuntimeNotResolvable, "no runtime requested")
	}
	dir, err := p.layout.RuntimeDir(spec.Version, appVersion)
	if err != nil {
		return "", err
	}
	ok, err := paths.DirNonEmpty(dir)
	if err != nil {
		return "", fmt.Errorf("inspect runtime dir: %w", err)
	}
	if !ok {
		return "", failure.New(failure.RuntimeNotResolvable, "runtime %s is not provisioned", spec.Version).With("dir", dir)
	}
	return FindExecutable(dir)
}

// Remove deletes the runtime provisioned for (runtimeVersion, appVersion).
func (p *Provisioner) Remove(runtimeVersion, appVersion string) error {
	dir, err := p.layout.RuntimeDir(runtimeVersion, appVersion)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove runtime %s: %w", dir, err)
	}
	return nil
}

var errSearchLimit = errors.New("search limit reached")

// FindExecutable walks root for a java executable whose parent directory is
// bin. The walk is bounded in depth and entry count.
func FindExecutable(root string) (string, error) {
	name := ExecutableName()
	var (
		match   string
		visited int
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		visited++
		if visited > maxSearchEntries {
			return errSearchLimit
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		depth := 0
		if rel != "." {
			depth = strings.Count(rel, string(filepath.Separator)) + 1
		}
		if d.IsDir() {
			if depth >= maxSearchDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == name && filepath.Base(filepath.Dir(path)) == "bin" {
			match = path
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, errSearchLimit) {
		return "", fmt.Errorf("search runtime: %w", err)
	}
	if match == "" {
		return "", failure.New(failure.ExecutableNotFound, "no bin/%s under runtime", name).With("dir", root)
	}
	return match, nil
}
