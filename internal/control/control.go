// Package control is the command surface shared by every fg front end. It
// composes the installer and the supervisor and holds no state of its own.
package control

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fg/internal/config"
	"fg/internal/deps"
	"fg/internal/failure"
	"fg/internal/fetch"
	"fg/internal/install"
	"fg/internal/jdk"
	"fg/internal/manifest"
	"fg/internal/paths"
	"fg/internal/progress"
	"fg/internal/registry"
	"fg/internal/supervisor"
)

// Manager exposes install, start, stop, status, uninstall, list and logs.
type Manager struct {
	layout     paths.Layout
	cfg        config.Config
	installer  *install.Installer
	supervisor *supervisor.Supervisor
	log        zerolog.Logger
}

type options struct {
	downloader fetch.Downloader
	launcher   supervisor.Launcher
	processes  supervisor.ProcessTable
}

// Option overrides a collaborator, mostly for tests.
type Option func(*options)

// WithDownloader replaces the HTTP downloader.
func WithDownloader(d fetch.Downloader) Option {
	return func(o *options) { o.downloader = d }
}

// WithLauncher replaces the process launcher.
func WithLauncher(l supervisor.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithProcesses replaces the OS process table.
func WithProcesses(p supervisor.ProcessTable) Option {
	return func(o *options) { o.processes = p }
}

// New wires every component for layout and cfg.
func New(layout paths.Layout, cfg config.Config, log zerolog.Logger, opts ...Option) *Manager {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.downloader == nil {
		o.downloader = fetch.New(fetch.Options{
			Timeout:   cfg.HTTP.Timeout(),
			RetryMax:  cfg.HTTP.RetryMax,
			UserAgent: cfg.HTTP.UserAgent,
			Logger:    log.With().Str("component", "fetch").Logger(),
		})
	}

	runtimes := jdk.NewProvisioner(layout, o.downloader, log.With().Str("component", "jdk").Logger())
	installer := install.New(install.Options{
		Layout:          layout,
		Downloader:      o.downloader,
		Runtimes:        runtimes,
		Dependencies:    deps.NewInstaller(o.downloader, cfg.MavenRepository, log.With().Str("component", "deps").Logger()),
		ManifestBaseURL: cfg.ManifestBaseURL,
		Logger:          log.With().Str("component", "install").Logger(),
	})
	sup := supervisor.New(supervisor.Options{
		Layout:    layout,
		Store:     registry.Open(layout.RegistryPath()),
		Catalog:   installer,
		Runtimes:  runtimes,
		Launcher:  o.launcher,
		Processes: o.processes,
		Settings: supervisor.Settings{
			DefaultJava: cfg.DefaultJava,
			JVMArgs:     cfg.JVMArgs,
			Env:         cfg.Env,
			StopTimeout: cfg.Stop.Timeout(),
			Graceful:    cfg.Stop.GracefulValue(),
		},
		Logger: log.With().Str("component", "supervisor").Logger(),
	})

	return &Manager{layout: layout, cfg: cfg, installer: installer, supervisor: sup, log: log}
}

// Layout returns the resolved root layout.
func (m *Manager) Layout() paths.Layout { return m.layout }

// Config returns the effective configuration.
func (m *Manager) Config() config.Config { return m.cfg }

// Install installs version from archivePath, or from its published
// description when archivePath is empty.
func (m *Manager) Install(ctx context.Context, version, archivePath string, rep progress.Reporter) (install.InstalledVersion, error) {
	if err := paths.ValidateVersion(version); err != nil {
		return install.InstalledVersion{}, err
	}
	if err := m.layout.Ensure(); err != nil {
		return install.InstalledVersion{}, err
	}
	if archivePath != "" {
		return m.installer.InstallArchive(ctx, version, archivePath, rep)
	}
	return m.installer.InstallRemote(ctx, version, rep)
}

// Start launches an installed version, appending extraJVMArgs to the
// configured ones.
func (m *Manager) Start(ctx context.Context, version string, extraJVMArgs ...string) (registry.Record, error) {
	return m.supervisor.Start(ctx, version, extraJVMArgs...)
}

// Stop stops a single instance.
func (m *Manager) Stop(ctx context.Context, pid int) (bool, error) {
	return m.supervisor.Stop(ctx, pid)
}

// StopAll stops every instance, or those of version when it is set.
func (m *Manager) StopAll(ctx context.Context, version string) ([]int, error) {
	if version != "" {
		if err := paths.ValidateVersion(version); err != nil {
			return nil, err
		}
	}
	return m.supervisor.StopAll(ctx, version)
}

// Status lists live instances, pruning exited ones.
func (m *Manager) Status(ctx context.Context) ([]supervisor.Instance, error) {
	return m.supervisor.Status(ctx)
}

// Uninstall removes version. It refuses while instances of it are running
// and reports false when the version is not installed.
func (m *Manager) Uninstall(ctx context.Context, version string) (bool, error) {
	if err := paths.ValidateVersion(version); err != nil {
		return false, err
	}
	running, err := m.supervisor.Running(ctx, version)
	if err != nil {
		return false, err
	}
	if len(running) > 0 {
		pids := make([]string, 0, len(running))
		for _, inst := range running {
			pids = append(pids, strconv.Itoa(inst.PID))
		}
		return false, failure.New(failure.VersionInUse, "version %s has running instances", version).
			With("pids", strings.Join(pids, ","))
	}
	return m.installer.Uninstall(version)
}

// List returns installed versions, newest first.
func (m *Manager) List() ([]install.InstalledVersion, error) {
	return m.installer.List()
}

// IsInstalled reports whether version is present under versions/.
func (m *Manager) IsInstalled(version string) (bool, error) {
	return m.installer.IsInstalled(version)
}

// Releases lists published versions, newest first.
func (m *Manager) Releases(ctx context.Context) ([]install.Release, error) {
	return m.installer.Releases(ctx)
}

// Resolve returns version when set, otherwise the newest published version.
func (m *Manager) Resolve(ctx context.Context, version string) (string, error) {
	if version != "" {
		return version, paths.ValidateVersion(version)
	}
	releases, err := m.installer.Releases(ctx)
	if err != nil {
		return "", err
	}
	if len(releases) == 0 {
		return "", failure.New(failure.MissingManifest, "version index lists no versions")
	}
	return releases[0].Version, nil
}

// Manifest returns the installed manifest of version.
func (m *Manager) Manifest(version string) (manifest.Manifest, error) {
	return m.installer.Manifest(version)
}

// Logs returns the log path of pid and its last n lines.
func (m *Manager) Logs(pid, n int) (string, []string, error) {
	path, err := m.supervisor.LogPath(pid)
	if err != nil {
		return "", nil, err
	}
	lines, err := supervisor.Tail(path, n)
	if err != nil {
		return path, nil, err
	}
	return path, lines, nil
}

// FollowLogs streams new output of pid into w until ctx is done.
func (m *Manager) FollowLogs(ctx context.Context, pid int, w io.Writer) error {
	path, err := m.supervisor.LogPath(pid)
	if err != nil {
		return err
	}
	if err := supervisor.Follow(ctx, path, w, 250*time.Millisecond); err != nil {
		return fmt.Errorf("follow %s: %w", path, err)
	}
	return nil
}
