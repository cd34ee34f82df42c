package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"fg/internal/failure"
)

// ManifestFile is the name of the per-version descriptor inside a version directory.
const ManifestFile = "fgmanifest.json"

// Layout captures canonical locations under an fg root.
type Layout struct {
	Root         string
	ConfigFile   string
	RegistryFile string
	VersionsDir  string
	RuntimesDir  string
	LogsDir      string
	ManifestsDir string
	DownloadsDir string
	StagingDir   string
	ManagerLog   string
}

var versionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)

// Resolve determines the root from an explicit value, falling back to
// DefaultRoot when it is empty. Nothing is created on disk.
func Resolve(root string) (Layout, error) {
	var err error
	if strings.TrimSpace(root) == "" {
		root, err = DefaultRoot()
	} else {
		root, err = filepath.Abs(root)
	}
	if err != nil {
		return Layout{}, fmt.Errorf("resolve fg root: %w", err)
	}
	return New(root), nil
}

// New derives every location from root.
func New(root string) Layout {
	root = filepath.Clean(root)
	logs := filepath.Join(root, "logs")
	return Layout{
		Root:         root,
		ConfigFile:   filepath.Join(root, "config.yaml"),
		RegistryFile: filepath.Join(root, "processes.json"),
		VersionsDir:  filepath.Join(root, "versions"),
		RuntimesDir:  filepath.Join(root, "runtimes"),
		LogsDir:      logs,
		ManifestsDir: filepath.Join(root, "manifests"),
		DownloadsDir: filepath.Join(root, "downloads"),
		StagingDir:   filepath.Join(root, "staging"),
		ManagerLog:   filepath.Join(logs, "fg.log"),
	}
}

// DefaultRoot returns ~/.fg.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}
	return filepath.Join(home, ".fg"), nil
}

// ValidateVersion rejects ids that are empty or could escape the versions directory.
func ValidateVersion(version string) error {
	if version == "" {
		return failure.New(failure.InvalidArgument, "version id is empty")
	}
	if version == "." || version == ".." || !versionPattern.MatchString(version) {
		return failure.New(failure.InvalidArgument, "invalid version id %q", version)
	}
	return nil
}

// VersionDir returns versions/<version>.
func (l Layout) VersionDir(version string) (string, error) {
	if err := ValidateVersion(version); err != nil {
		return "", err
	}
	return filepath.Join(l.VersionsDir, version), nil
}

// ManifestPath returns versions/<version>/fgmanifest.json.
func (l Layout) ManifestPath(version string) (string, error) {
	dir, err := l.VersionDir(version)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ManifestFile), nil
}

// LibsDir returns versions/<version>/libs.
func (l Layout) LibsDir(version string) (string, error) {
	dir, err := l.VersionDir(version)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "libs"), nil
}

// RuntimeDir returns runtimes/jdk-<runtimeVersion>-<appVersion>.
func (l Layout) RuntimeDir(runtimeVersion, appVersion string) (string, error) {
	if err := ValidateVersion(runtimeVersion); err != nil {
		return "", err
	}
	if err := ValidateVersion(appVersion); err != nil {
		return "", err
	}
	return filepath.Join(l.RuntimesDir, fmt.Sprintf("jdk-%s-%s", runtimeVersion, appVersion)), nil
}

// DescriptionPath returns the cached remote description for version.
func (l Layout) DescriptionPath(version string) (string, error) {
	if err := ValidateVersion(version); err != nil {
		return "", err
	}
	return filepath.Join(l.ManifestsDir, "version-"+version+".json"), nil
}

// LogFile returns logs/<pid>.log.
func (l Layout) LogFile(pid int) string {
	return filepath.Join(l.LogsDir, strconv.Itoa(pid)+".log")
}

// RegistryPath returns the process registry file.
func (l Layout) RegistryPath() string {
	return l.RegistryFile
}

// Ensure creates the root hierarchy. It is idempotent.
func (l Layout) Ensure() error {
	dirs := []string{l.Root, l.VersionsDir, l.LogsDir, l.RuntimesDir, l.ManifestsDir, l.DownloadsDir, l.StagingDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// DirNonEmpty reports whether path is a directory holding at least one entry.
func DirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return len(entries) > 0, nil
}
