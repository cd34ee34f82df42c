// Package install materialises application versions under <root>/versions.
package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"fg/internal/archive"
	"fg/internal/deps"
	"fg/internal/failure"
	"fg/internal/fetch"
	"fg/internal/lockfile"
	"fg/internal/manifest"
	"fg/internal/paths"
	"fg/internal/progress"
)

// legacyManifestFile is accepted at the archive root in place of fgmanifest.json.
const legacyManifestFile = "fgmanifest"

// RuntimeProvisioner ensures a dedicated runtime for an app version.
type RuntimeProvisioner interface {
	Ensure(ctx context.Context, spec *manifest.Runtime, appVersion string, rep progress.Reporter) (string, error)
	Remove(runtimeVersion, appVersion string) error
}

// DependencyInstaller places dependency jars into a libs directory.
type DependencyInstaller interface {
	Ensure(ctx context.Context, deps []manifest.Dependency, libsDir string, rep progress.Reporter) (deps.Result, error)
}

// Options wires an Installer.
type Options struct {
	Layout          paths.Layout
	Downloader      fetch.Downloader
	Runtimes        RuntimeProvisioner
	Dependencies    DependencyInstaller
	ManifestBaseURL string
	Logger          zerolog.Logger
}

// Installer installs, lists and removes versions.
type Installer struct {
	layout          paths.Layout
	downloader      fetch.Downloader
	runtimes        RuntimeProvisioner
	deps            DependencyInstaller
	manifestBaseURL string
	log             zerolog.Logger
}

// New constructs an Installer.
func New(opts Options) *Installer {
	return &Installer{
		layout:          opts.Layout,
		downloader:      opts.Downloader,
		runtimes:        opts.Runtimes,
		deps:            opts.Dependencies,
		manifestBaseURL: opts.ManifestBaseURL,
		log:             opts.Logger,
	}
}

// InstalledVersion summarises a version present on disk.
type InstalledVersion struct {
	Version      string    `json:"version"`
	Name         string    `json:"name,omitempty"`
	Description  string    `json:"description,omitempty"`
	Dir          string    `json:"dir"`
	Runtime      string    `json:"runtime,omitempty"`
	Dependencies int       `json:"dependencies"`
	InstalledAt  time.Time `json:"installed_at"`
}

// InstallArchive installs version from a local zip or tar.gz whose root holds
// the manifest.
func (i *Installer) InstallArchive(ctx context.Context, version, archivePath string, rep progress.Reporter) (InstalledVersion, error) {
	rep = progress.OrNop(rep)
	if err := paths.ValidateVersion(version); err != nil {
		return InstalledVersion{}, err
	}
	ok, err := paths.FileExists(archivePath)
	if err != nil {
		return InstalledVersion{}, fmt.Errorf("inspect archive: %w", err)
	}
	if !ok {
		return InstalledVersion{}, failure.New(failure.InvalidArgument, "archive %s does not exist", archivePath)
	}
	format, err := archive.DetectFormat(archivePath)
	if err != nil {
		return InstalledVersion{}, err
	}

	return i.install(ctx, version, rep, func(stageDir string) ([]byte, error) {
		rep.Report(progress.Event{Step: progress.StepManifest, Item: version, State: progress.StateExtracting, Detail: filepath.Base(archivePath)})
		if err := archive.Extract(format, archivePath, stageDir); err != nil {
			return nil, err
		}
		return readStagedManifest(stageDir)
	})
}

// InstallRemote installs version from its published description. The
// description is cached under manifests/ before it is parsed.
func (i *Installer) InstallRemote(ctx context.Context, version string, rep progress.Reporter) (InstalledVersion, error) {
	rep = progress.OrNop(rep)
	if err := paths.ValidateVersion(version); err != nil {
		return InstalledVersion{}, err
	}

	return i.install(ctx, version, rep, func(stageDir string) ([]byte, error) {
		data, err := i.description(ctx, version, rep)
		if err != nil {
			return nil, err
		}
		m, err := manifest.Parse(data)
		if err != nil {
			i.forgetDescription(version)
			return nil, err
		}
		if m.ArtifactURL != "" {
			entry, err := m.Entry()
			if err != nil {
				return nil, err
			}
			dest := filepath.Join(stageDir, entry)
			rep.Report(progress.Event{Step: progress.StepArtifact, Item: filepath.Base(entry), State: progress.StateDownloading, Detail: m.ArtifactURL})
			if err := i.downloader.Download(ctx, m.ArtifactURL, dest, ""); err != nil {
				rep.Report(progress.Event{Step: progress.StepArtifact, Item: filepath.Base(entry), State: progress.StateFailed, Detail: err.Error()})
				return nil, failure.From(failure.ArtifactMissing, err, "fetch entry artifact").With("url", m.ArtifactURL)
			}
			rep.Report(progress.Event{Step: progress.StepArtifact, Item: filepath.Base(entry), State: progress.StateDone})
		}
		return data, nil
	})
}

// description returns the cached remote description for version, fetching
// it first when absent.
func (i *Installer) description(ctx context.Context, version string, rep progress.Reporter) ([]byte, error) {
	path, err := i.layout.DescriptionPath(version)
	if err != nil {
		return nil, err
	}
	cached, err := paths.FileExists(path)
	if err != nil {
		return nil, fmt.Errorf("inspect description cache: %w", err)
	}
	item := filepath.Base(path)
	if cached {
		rep.Report(progress.Event{Step: progress.StepManifest, Item: item, State: progress.StateCached})
	} else {
		url := fmt.Sprintf("%s/version-%s.json", i.manifestBaseURL, version)
		rep.Report(progress.Event{Step: progress.StepManifest, Item: item, State: progress.StateDownloading, Detail: url})
		if err := i.downloader.Download(ctx, url, path, ""); err != nil {
			rep.Report(progress.Event{Step: progress.StepManifest, Item: item, State: progress.StateFailed, Detail: err.Error()})
			return nil, failure.From(failure.MissingManifest, err, "fetch description for %s", version).With("url", url)
		}
		rep.Report(progress.Event{Step: progress.StepManifest, Item: item, State: progress.StateDone})
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}
	return data, nil
}

func (i *Installer) forgetDescription(version string) {
	if path, err := i.layout.DescriptionPath(version); err == nil {
		_ = os.Remove(path)
	}
}

// install runs populate inside a fresh staging directory, provisions what
// the manifest asks for and swaps the result into versions/<version>. Any
// failure discards the staging directory and leaves versions/<version> as
// it was.
func (i *Installer) install(ctx context.Context, version string, rep progress.Reporter, populate func(stageDir string) ([]byte, error)) (InstalledVersion, error) {
	target, err := i.layout.VersionDir(version)
	if err != nil {
		return InstalledVersion{}, err
	}
	if err := os.MkdirAll(i.layout.StagingDir, 0o755); err != nil {
		return InstalledVersion{}, fmt.Errorf("prepare staging dir: %w", err)
	}
	if err := os.MkdirAll(i.layout.VersionsDir, 0o755); err != nil {
		return InstalledVersion{}, fmt.Errorf("prepare versions dir: %w", err)
	}

	release, err := lockfile.Acquire(ctx, filepath.Join(i.layout.StagingDir, version+".lock"), 0)
	if err != nil {
		return InstalledVersion{}, err
	}
	defer release()

	stageRoot, err := os.MkdirTemp(i.layout.StagingDir, version+"-")
	if err != nil {
		return InstalledVersion{}, fmt.Errorf("create staging dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(stageRoot) }()

	stageDir := filepath.Join(stageRoot, "version")
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return InstalledVersion{}, fmt.Errorf("create staging dir: %w", err)
	}

	logger := i.log.With().Str("version", version).Logger()
	logger.Info().Str("staging", stageDir).Msg("install started")

	raw, err := populate(stageDir)
	if err != nil {
		logger.Error().Err(err).Msg("install failed")
		return InstalledVersion{}, err
	}
	m, err := i.provision(ctx, version, stageDir, target, raw, rep)
	if err != nil {
		logger.Error().Err(err).Msg("install failed")
		return InstalledVersion{}, err
	}

	rep.Report(progress.Event{Step: progress.StepCommit, Item: version, State: progress.StateResolving})
	if err := commit(stageDir, target, filepath.Join(stageRoot, "previous")); err != nil {
		rep.Report(progress.Event{Step: progress.StepCommit, Item: version, State: progress.StateFailed, Detail: err.Error()})
		logger.Error().Err(err).Msg("install failed")
		return InstalledVersion{}, err
	}
	rep.Report(progress.Event{Step: progress.StepCommit, Item: version, State: progress.StateDone, Detail: target})
	logger.Info().Int("dependencies", len(m.Dependencies)).Msg("install complete")
	return describe(target, m), nil
}

func (i *Installer) provision(ctx context.Context, version, stageDir, target string, raw []byte, rep progress.Reporter) (manifest.Manifest, error) {
	m, err := manifest.Parse(raw)
	if err != nil {
		return manifest.Manifest{}, err
	}
	if m.Version == "" {
		m.Version = version
	}
	if m.Version != version {
		return manifest.Manifest{}, failure.New(failure.InvalidManifest, "manifest declares version %q, expected %q", m.Version, version)
	}

	if err := os.WriteFile(filepath.Join(stageDir, paths.ManifestFile), raw, 0o644); err != nil {
		return manifest.Manifest{}, fmt.Errorf("write manifest: %w", err)
	}
	_ = os.Remove(filepath.Join(stageDir, legacyManifestFile))

	libs := filepath.Join(stageDir, "libs")
	if len(m.Dependencies) > 0 {
		// Only jars the new manifest still lists carry over; the rest of the
		// old libs dir is dropped with the old install.
		keep := make(map[string]bool, len(m.Dependencies))
		for _, dep := range m.Dependencies {
			if name, err := dep.LocalName(); err == nil {
				keep[name] = true
			}
		}
		if _, err := seedDir(filepath.Join(target, "libs"), libs, keep); err != nil {
			return manifest.Manifest{}, err
		}
		if _, err := i.deps.Ensure(ctx, m.Dependencies, libs, rep); err != nil {
			return manifest.Manifest{}, err
		}
	} else if err := os.MkdirAll(libs, 0o755); err != nil {
		return manifest.Manifest{}, fmt.Errorf("create libs dir: %w", err)
	}

	if m.JDK.Requested() {
		if _, err := i.runtimes.Ensure(ctx, m.JDK, version, rep); err != nil {
			return manifest.Manifest{}, err
		}
	}

	entry, err := m.Entry()
	if err != nil {
		return manifest.Manifest{}, err
	}
	ok, err := paths.FileExists(filepath.Join(stageDir, entry))
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("inspect entry artifact: %w", err)
	}
	if !ok {
		return manifest.Manifest{}, failure.New(failure.ArtifactMissing, "entry artifact %s is missing", entry).With("version", version)
	}
	return m, nil
}

// commit swaps stageDir into target. An existing target is parked in backup
// and restored when the swap fails.
func commit(stageDir, target, backup string) error {
	existed, err := paths.DirExists(target)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", target, err)
	}
	if existed {
		if err := os.Rename(target, backup); err != nil {
			return fmt.Errorf("move previous install aside: %w", err)
		}
	}
	if err := os.Rename(stageDir, target); err != nil {
		if existed {
			if restoreErr := os.Rename(backup, target); restoreErr != nil {
				return errors.Join(fmt.Errorf("commit install: %w", err), fmt.Errorf("restore previous install: %w", restoreErr))
			}
		}
		return fmt.Errorf("commit install: %w", err)
	}
	return nil
}

func readStagedManifest(stageDir string) ([]byte, error) {
	for _, name := range []string{paths.ManifestFile, legacyManifestFile} {
		data, err := os.ReadFile(filepath.Join(stageDir, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
	}
	return nil, failure.New(failure.MissingManifest, "archive has no %s at its root", paths.ManifestFile)
}

func describe(dir string, m manifest.Manifest) InstalledVersion {
	iv := InstalledVersion{
		Version:      m.Version,
		Name:         m.Name,
		Description:  m.Description,
		Dir:          dir,
		Dependencies: len(m.Dependencies),
	}
	if m.JDK.Requested() {
		iv.Runtime = m.JDK.Version
	}
	if info, err := os.Stat(dir); err == nil {
		iv.InstalledAt = info.ModTime()
	}
	return iv
}

// IsInstalled reports whether versions/<version> holds a manifest.
func (i *Installer) IsInstalled(version string) (bool, error) {
	path, err := i.layout.ManifestPath(version)
	if err != nil {
		return false, err
	}
	return paths.FileExists(path)
}

// Manifest loads the installed manifest of version.
func (i *Installer) Manifest(version string) (manifest.Manifest, error) {
	path, err := i.layout.ManifestPath(version)
	if err != nil {
		return manifest.Manifest{}, err
	}
	m, err := manifest.Load(path)
	if err != nil {
		if failure.Is(err, failure.MissingManifest) {
			return manifest.Manifest{}, failure.New(failure.NotInstalled, "version %s is not installed", version)
		}
		return manifest.Manifest{}, err
	}
	if m.Version == "" {
		m.Version = version
	}
	return m, nil
}

// VersionDir returns the directory of an installed version.
func (i *Installer) VersionDir(version string) (string, error) {
	return i.layout.VersionDir(version)
}

// List returns installed versions, newest first. Directories without a
// readable manifest are skipped.
func (i *Installer) List() ([]InstalledVersion, error) {
	entries, err := os.ReadDir(i.layout.VersionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read versions dir: %w", err)
	}
	var out []InstalledVersion
	for _, entry := range entries {
		if !entry.IsDir() || paths.ValidateVersion(entry.Name()) != nil {
			continue
		}
		m, err := i.Manifest(entry.Name())
		if err != nil {
			i.log.Debug().Str("version", entry.Name()).Err(err).Msg("skipping version without usable manifest")
			continue
		}
		out = append(out, describe(filepath.Join(i.layout.VersionsDir, entry.Name()), m))
	}
	sort.Slice(out, func(a, b int) bool {
		return CompareVersions(out[a].Version, out[b].Version) > 0
	})
	return out, nil
}

// Uninstall removes versions/<version> and the runtime provisioned for it.
// It reports false, without touching the disk, when the version is absent.
func (i *Installer) Uninstall(version string) (bool, error) {
	dir, err := i.layout.VersionDir(version)
	if err != nil {
		return false, err
	}
	ok, err := paths.DirExists(dir)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", dir, err)
	}
	if !ok {
		return false, nil
	}

	m, manifestErr := i.Manifest(version)
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("remove version %s: %w", version, err)
	}
	if manifestErr == nil && m.JDK.Requested() && i.runtimes != nil {
		if err := i.runtimes.Remove(m.JDK.Version, version); err != nil {
			i.log.Warn().Err(err).Str("version", version).Msg("runtime left behind")
		}
	}
	i.log.Info().Str("version", version).Msg("uninstalled")
	return true, nil
}
