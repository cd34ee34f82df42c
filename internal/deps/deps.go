// Package deps caches a manifest's dependency jars under a version's libs directory.
package deps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"fg/internal/failure"
	"fg/internal/fetch"
	"fg/internal/manifest"
	"fg/internal/paths"
	"fg/internal/progress"
)

// Installer fetches dependency artifacts one at a time.
type Installer struct {
	downloader fetch.Downloader
	repository string
	log        zerolog.Logger
}

// NewInstaller wires an Installer resolving coordinates against repository.
func NewInstaller(downloader fetch.Downloader, repository string, log zerolog.Logger) *Installer {
	return &Installer{downloader: downloader, repository: repository, log: log}
}

// Result summarises what Ensure did.
type Result struct {
	Fetched []string `json:"fetched,omitempty"`
	Skipped []string `json:"skipped,omitempty"`
}

// Ensure makes every dependency present in libsDir. Jars already on disk are
// skipped unless they fail the dependency's sha256. The first failure
// aborts; files fetched before it stay in libsDir and it is up to the
// caller to discard them.
func (i *Installer) Ensure(ctx context.Context, deps []manifest.Dependency, libsDir string, rep progress.Reporter) (Result, error) {
	rep = progress.OrNop(rep)
	var res Result
	if len(deps) == 0 {
		return res, nil
	}
	if err := os.MkdirAll(libsDir, 0o755); err != nil {
		return res, fmt.Errorf("create libs dir: %w", err)
	}

	for idx, dep := range deps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := dep.Validate(); err != nil {
			return res, failure.Wrap(failure.InvalidManifest, err, "dependency #%d", idx+1)
		}
		name, err := dep.LocalName()
		if err != nil {
			return res, failure.Wrap(failure.InvalidManifest, err, "dependency #%d", idx+1)
		}
		dest := filepath.Join(libsDir, name)

		present, err := paths.FileExists(dest)
		if err != nil {
			return res, fmt.Errorf("inspect %s: %w", dest, err)
		}
		if present && dep.SHA256 != "" {
			sum, err := fetch.ComputeChecksum(dest)
			if err != nil {
				return res, err
			}
			if !strings.EqualFold(sum, strings.TrimSpace(dep.SHA256)) {
				i.log.Warn().Str("artifact", name).Msg("cached jar fails checksum, fetching again")
				if err := os.Remove(dest); err != nil {
					return res, fmt.Errorf("discard %s: %w", dest, err)
				}
				present = false
			}
		}
		if present {
			res.Skipped = append(res.Skipped, name)
			rep.Report(progress.Event{Step: progress.StepDependency, Item: name, State: progress.StateCached})
			continue
		}

		src, err := dep.Source(i.repository)
		if err != nil {
			return res, failure.Wrap(failure.InvalidManifest, err, "dependency #%d", idx+1)
		}
		rep.Report(progress.Event{Step: progress.StepDependency, Item: name, State: progress.StateDownloading, Detail: src})
		if err := i.downloader.Download(ctx, src, dest, dep.SHA256); err != nil {
			rep.Report(progress.Event{Step: progress.StepDependency, Item: name, State: progress.StateFailed, Detail: err.Error()})
			return res, failure.From(failure.DependencyFetchFailure, err, "fetch dependency %s", dep).
				With("artifact", name).
				With("url", src)
		}
		res.Fetched = append(res.Fetched, name)
		rep.Report(progress.Event{Step: progress.StepDependency, Item: name, State: progress.StateDone})
		i.log.Debug().Str("artifact", name).Str("url", src).Msg("dependency fetched")
	}
	return res, nil
}
