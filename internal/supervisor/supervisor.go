// Package supervisor launches installed versions and tracks them through
// the process registry.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fg/internal/failure"
	"fg/internal/jdk"
	"fg/internal/manifest"
	"fg/internal/paths"
	"fg/internal/registry"
)

// stopConcurrency bounds parallel stops in StopAll.
const stopConcurrency = 8

// Catalog exposes installed versions.
type Catalog interface {
	Manifest(version string) (manifest.Manifest, error)
	VersionDir(version string) (string, error)
}

// RuntimeLocator finds an already provisioned runtime.
type RuntimeLocator interface {
	Locate(spec *manifest.Runtime, appVersion string) (string, error)
}

// Settings tunes launching and stopping.
type Settings struct {
	DefaultJava string
	JVMArgs     []string
	Env         map[string]string
	StopTimeout time.Duration
	Graceful    bool
}

// Options wires a Supervisor.
type Options struct {
	Layout    paths.Layout
	Store     *registry.Store
	Catalog   Catalog
	Runtimes  RuntimeLocator
	Launcher  Launcher
	Processes ProcessTable
	Settings  Settings
	Logger    zerolog.Logger
}

// Supervisor owns the instance lifecycle: start, observe, stop.
type Supervisor struct {
	layout    paths.Layout
	store     *registry.Store
	catalog   Catalog
	runtimes  RuntimeLocator
	launcher  Launcher
	processes ProcessTable
	settings  Settings
	log       zerolog.Logger

	now          func() time.Time
	lookPath     func(string) (string, error)
	pollInterval time.Duration
}

// New constructs a Supervisor.
func New(opts Options) *Supervisor {
	s := &Supervisor{
		layout:       opts.Layout,
		store:        opts.Store,
		catalog:      opts.Catalog,
		runtimes:     opts.Runtimes,
		launcher:     opts.Launcher,
		processes:    opts.Processes,
		settings:     opts.Settings,
		log:          opts.Logger,
		now:          time.Now,
		lookPath:     exec.LookPath,
		pollInterval: 100 * time.Millisecond,
	}
	if s.launcher == nil {
		s.launcher = ExecLauncher{}
	}
	if s.processes == nil {
		s.processes = SystemProcesses{}
	}
	if s.settings.DefaultJava == "" {
		s.settings.DefaultJava = "java"
	}
	if s.settings.StopTimeout <= 0 {
		s.settings.StopTimeout = 5 * time.Second
	}
	return s
}

// Instance is a live record joined with OS metrics.
type Instance struct {
	registry.Record
	Uptime      time.Duration `json:"uptime"`
	CPUPercent  float64       `json:"cpu_percent"`
	MemoryBytes uint64        `json:"memory_bytes"`
}

// Start launches version detached from fg and records it. extraJVMArgs
// follow the configured JVM arguments on the command line.
func (s *Supervisor) Start(ctx context.Context, version string, extraJVMArgs ...string) (registry.Record, error) {
	if err := paths.ValidateVersion(version); err != nil {
		return registry.Record{}, err
	}
	m, err := s.catalog.Manifest(version)
	if err != nil {
		return registry.Record{}, err
	}
	versionDir, err := s.catalog.VersionDir(version)
	if err != nil {
		return registry.Record{}, err
	}
	if err := s.layout.Ensure(); err != nil {
		return registry.Record{}, err
	}

	javaExe, javaHome, err := s.resolveRuntime(m, version)
	if err != nil {
		return registry.Record{}, err
	}

	entry, err := m.Entry()
	if err != nil {
		return registry.Record{}, err
	}
	ok, err := paths.FileExists(filepath.Join(versionDir, entry))
	if err != nil {
		return registry.Record{}, fmt.Errorf("inspect entry artifact: %w", err)
	}
	if !ok {
		return registry.Record{}, failure.New(failure.ArtifactMissing, "entry artifact %s is missing", entry).With("version", version)
	}

	launchArgs, err := m.LaunchArgs(versionDir)
	if err != nil {
		return registry.Record{}, err
	}
	args := make([]string, 0, len(s.settings.JVMArgs)+len(extraJVMArgs)+len(launchArgs))
	args = append(args, s.settings.JVMArgs...)
	args = append(args, extraJVMArgs...)
	args = append(args, launchArgs...)
	env := s.environment(javaHome)

	logTmp, err := os.CreateTemp(s.layout.LogsDir, "starting-*.log")
	if err != nil {
		return registry.Record{}, fmt.Errorf("create instance log: %w", err)
	}
	pid, launchErr := s.launcher.Launch(javaExe, args, LaunchOptions{Dir: versionDir, Env: env, Output: logTmp})
	// The child holds its own descriptor.
	_ = logTmp.Close()
	if launchErr != nil {
		_ = os.Remove(logTmp.Name())
		return registry.Record{}, failure.From(failure.LaunchFailure, launchErr, "launch %s", version).With("java", javaExe)
	}

	logFile := s.layout.LogFile(pid)
	if err := os.Rename(logTmp.Name(), logFile); err != nil {
		s.log.Warn().Err(err).Int("pid", pid).Msg("keeping temporary log name")
		logFile = logTmp.Name()
	}

	rec := registry.Record{
		PID:         pid,
		Version:     version,
		StartedAt:   s.now().UTC(),
		LogFile:     logFile,
		Executable:  javaExe,
		CommandLine: append([]string{javaExe}, args...),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		_ = s.processes.Kill(context.Background(), pid)
		return registry.Record{}, fmt.Errorf("record instance %d: %w", pid, err)
	}
	s.log.Info().Int("pid", pid).Str("version", version).Str("java", javaExe).Str("log", logFile).Msg("instance started")
	return rec, nil
}

// resolveRuntime prefers the version's provisioned runtime and falls back
// to the configured host java.
func (s *Supervisor) resolveRuntime(m manifest.Manifest, version string) (string, string, error) {
	if m.JDK.Requested() && s.runtimes != nil {
		exe, err := s.runtimes.Locate(m.JDK, version)
		if err == nil {
			return exe, jdk.Home(exe), nil
		}
		s.log.Warn().Err(err).Str("version", version).Msg("provisioned runtime unavailable, trying host java")
	}
	exe, err := s.lookPath(s.settings.DefaultJava)
	if err != nil {
		return "", "", failure.From(failure.RuntimeNotResolvable, err, "resolve java for %s", version).With("default_java", s.settings.DefaultJava)
	}
	return exe, "", nil
}

func (s *Supervisor) environment(javaHome string) []string {
	keys := make([]string, 0, len(s.settings.Env))
	for k := range s.settings.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		env = append(env, k+"="+s.settings.Env[k])
	}
	if javaHome != "" {
		env = append(env, "JAVA_HOME="+javaHome)
	}
	return env
}

// Status returns live instances. Records whose process is gone are pruned
// from the registry as a side effect.
func (s *Supervisor) Status(ctx context.Context) ([]Instance, error) {
	table, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	var (
		live []Instance
		dead []int
	)
	for _, rec := range table.Records() {
		info, err := s.processes.Inspect(ctx, rec.PID)
		if err != nil {
			s.log.Warn().Err(err).Int("pid", rec.PID).Msg("inspect failed")
			continue
		}
		if !info.Running {
			dead = append(dead, rec.PID)
			continue
		}
		started := rec.StartedAt
		if started.IsZero() {
			started = info.CreatedAt
		}
		inst := Instance{Record: rec, CPUPercent: info.CPUPercent, MemoryBytes: info.RSSBytes}
		if !started.IsZero() {
			inst.Uptime = s.now().Sub(started)
		}
		live = append(live, inst)
	}

	if len(dead) > 0 {
		if _, err := s.store.Remove(ctx, dead...); err != nil {
			return live, err
		}
		s.log.Info().Ints("pids", dead).Msg("pruned exited instances")
	}
	return live, nil
}

// Running reports live instances of version.
func (s *Supervisor) Running(ctx context.Context, version string) ([]Instance, error) {
	all, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	var out []Instance
	for _, inst := range all {
		if inst.Version == version {
			out = append(out, inst)
		}
	}
	return out, nil
}

// Stop ends the instance with pid and removes its record. It returns false
// when no live instance with that pid is registered. Once a signal has been
// delivered it returns true even if exit was not observed within the
// configured timeout.
func (s *Supervisor) Stop(ctx context.Context, pid int) (bool, error) {
	_, ok, err := s.store.Get(pid)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	info, err := s.processes.Inspect(ctx, pid)
	if err != nil {
		return false, err
	}
	if !info.Running {
		if _, err := s.store.Remove(ctx, pid); err != nil {
			return false, err
		}
		return false, nil
	}

	logger := s.log.With().Int("pid", pid).Logger()
	if s.settings.Graceful {
		if err := s.processes.Terminate(ctx, pid); err != nil {
			logger.Warn().Err(err).Msg("terminate failed, killing")
		}
		if !s.waitExit(ctx, pid, s.settings.StopTimeout) {
			if err := s.processes.Kill(ctx, pid); err != nil {
				return false, err
			}
		}
	} else if err := s.processes.Kill(ctx, pid); err != nil {
		return false, err
	}

	if !s.waitExit(ctx, pid, s.settings.StopTimeout) {
		logger.Warn().Dur("timeout", s.settings.StopTimeout).Msg("exit not observed")
	}
	if _, err := s.store.Remove(ctx, pid); err != nil {
		return true, err
	}
	logger.Info().Msg("instance stopped")
	return true, nil
}

// StopAll stops every live instance, or only those of version when set.
// Instances are stopped concurrently so graceful waits overlap.
func (s *Supervisor) StopAll(ctx context.Context, version string) ([]int, error) {
	live, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		stopped []int
		errs    []error
	)
	var g errgroup.Group
	g.SetLimit(stopConcurrency)
	for _, inst := range live {
		if version != "" && inst.Version != version {
			continue
		}
		pid := inst.PID
		g.Go(func() error {
			ok, err := s.Stop(ctx, pid)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("stop %d: %w", pid, err))
			}
			if ok {
				stopped = append(stopped, pid)
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Ints(stopped)
	return stopped, errors.Join(errs...)
}

func (s *Supervisor) waitExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		info, err := s.processes.Inspect(ctx, pid)
		if err == nil && !info.Running {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
}

// CommandLine renders a record's command for display.
func CommandLine(rec registry.Record) string {
	return strings.Join(rec.CommandLine, " ")
}
