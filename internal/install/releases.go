package install

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fg/internal/failure"
)

// indexPath is where the published version index lives under the
// manifest base URL.
const indexPath = "/versions/index.json"

// Release is one published version, optionally merged with what is on disk.
type Release struct {
	Version      string    `json:"version"`
	ReleaseDate  time.Time `json:"releaseDate"`
	Size         int64     `json:"size,omitempty"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Installed    bool      `json:"installed"`
	IsLatest     bool      `json:"isLatest"`
}

// Releases fetches the version index, newest first. The newest entry is
// marked latest and entries present under versions/ are marked installed.
// Nothing is written below the root.
func (i *Installer) Releases(ctx context.Context) ([]Release, error) {
	tmp, err := os.MkdirTemp("", "fg-index-")
	if err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	url := i.manifestBaseURL + indexPath
	dest := filepath.Join(tmp, "index.json")
	if err := i.downloader.Download(ctx, url, dest, ""); err != nil {
		return nil, failure.From(failure.MissingManifest, err, "fetch version index").With("url", url)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		return nil, fmt.Errorf("read version index: %w", err)
	}

	var releases []Release
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, failure.From(failure.InvalidManifest, err, "decode version index").With("url", url)
	}
	out := releases[:0]
	for _, r := range releases {
		if r.Version == "" {
			continue
		}
		ok, err := i.IsInstalled(r.Version)
		if err != nil {
			i.log.Debug().Str("version", r.Version).Err(err).Msg("skipping unusable index entry")
			continue
		}
		r.Installed = ok
		r.IsLatest = false
		out = append(out, r)
	}
	sortReleases(out)
	if len(out) > 0 {
		out[0].IsLatest = true
	}
	return out, nil
}

// MergeReleases combines installed versions with published ones into one
// newest-first list. Published metadata wins; local-only versions keep the
// install time as their date.
func MergeReleases(installed []InstalledVersion, published []Release) []Release {
	byVersion := make(map[string]Release, len(installed)+len(published))
	for _, iv := range installed {
		byVersion[iv.Version] = Release{Version: iv.Version, ReleaseDate: iv.InstalledAt, Installed: true}
	}
	for _, r := range published {
		if local, ok := byVersion[r.Version]; ok {
			r.Installed = r.Installed || local.Installed
		}
		byVersion[r.Version] = r
	}
	out := make([]Release, 0, len(byVersion))
	for _, r := range byVersion {
		out = append(out, r)
	}
	sortReleases(out)
	return out
}

func sortReleases(rs []Release) {
	sort.SliceStable(rs, func(a, b int) bool {
		return CompareVersions(rs[a].Version, rs[b].Version) > 0
	})
}
