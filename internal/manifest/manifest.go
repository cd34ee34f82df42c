// Package manifest models the per-version descriptor (fgmanifest.json).
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"fg/internal/failure"
	"fg/internal/fetch"
)

// Manifest describes one installable version of the application.
type Manifest struct {
	Name          string       `json:"name,omitempty"`
	Version       string       `json:"version"`
	Description   string       `json:"description,omitempty"`
	JDK           *Runtime     `json:"jdk,omitempty"`
	Dependencies  []Dependency `json:"dependencies,omitempty"`
	RunCommand    string       `json:"runCommand,omitempty"`
	EntryArtifact string       `json:"entryArtifact,omitempty"`
	ArtifactURL   string       `json:"artifactUrl,omitempty"`
}

// Runtime requests a dedicated Java runtime, keyed by OS family.
type Runtime struct {
	Version  string            `json:"version"`
	Download map[string]string `json:"download,omitempty"`
}

// Dependency is either a direct URL or Maven coordinates.
type Dependency struct {
	URL        string `json:"url,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
	ArtifactID string `json:"artifactId,omitempty"`
	Version    string `json:"version,omitempty"`
	SHA256     string `json:"sha256,omitempty"`
}

// UnmarshalJSON accepts "runtime" and "java" as aliases of "jdk", and a
// dependencies object of named groups as well as a flat list.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	type plain Manifest
	var raw struct {
		plain
		Dependencies json.RawMessage `json:"dependencies,omitempty"`
		Runtime      *Runtime        `json:"runtime,omitempty"`
		Java         *Runtime        `json:"java,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Manifest(raw.plain)
	switch {
	case m.JDK != nil:
	case raw.Runtime != nil:
		m.JDK = raw.Runtime
	case raw.Java != nil:
		m.JDK = raw.Java
	}
	deps, err := decodeDependencies(raw.Dependencies)
	if err != nil {
		return fmt.Errorf("dependencies: %w", err)
	}
	m.Dependencies = deps
	return nil
}

// decodeDependencies reads either a list of descriptors or an object whose
// values are a descriptor or a group {"dependencies": [...]}. Group order is
// preserved.
func decodeDependencies(data json.RawMessage) ([]Dependency, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []Dependency
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("expected list or object")
	}
	var out []Dependency
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var group struct {
			Dependency
			Dependencies []Dependency `json:"dependencies"`
		}
		if err := dec.Decode(&group); err != nil {
			return nil, err
		}
		if len(group.Dependencies) > 0 {
			out = append(out, group.Dependencies...)
			continue
		}
		out = append(out, group.Dependency)
	}
	return out, nil
}

// Parse decodes and validates a manifest.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, failure.Wrap(failure.InvalidManifest, err, "decode manifest")
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Load reads the manifest at path.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, failure.Wrap(failure.MissingManifest, err, "read manifest")
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Validate checks the fields fg needs to provision and launch the version.
func (m Manifest) Validate() error {
	if m.JDK.Requested() {
		if strings.TrimSpace(m.JDK.Version) == "" {
			return failure.New(failure.InvalidManifest, "jdk.version is required when jdk.download is set")
		}
	}
	for i, dep := range m.Dependencies {
		if err := dep.Validate(); err != nil {
			return failure.Wrap(failure.InvalidManifest, err, "dependency #%d", i+1)
		}
	}
	entry, err := m.Entry()
	if err != nil {
		return err
	}
	if filepath.IsAbs(entry) || escapes(entry) {
		return failure.New(failure.InvalidManifest, "entry artifact %q must stay inside the version directory", entry)
	}
	return nil
}

// Entry returns the primary jar relative to the version directory. An
// explicit entryArtifact wins; otherwise the first .jar token of runCommand.
func (m Manifest) Entry() (string, error) {
	if e := strings.TrimSpace(m.EntryArtifact); e != "" {
		return filepath.FromSlash(e), nil
	}
	tokens, err := splitCommand(m.RunCommand)
	if err != nil {
		return "", failure.Wrap(failure.InvalidManifest, err, "parse runCommand")
	}
	for _, tok := range tokens {
		if strings.HasSuffix(strings.ToLower(tok), ".jar") {
			return filepath.FromSlash(tok), nil
		}
	}
	return "", failure.New(failure.InvalidManifest, "manifest names no entry artifact")
}

// LaunchArgs returns the arguments passed to the java executable. A leading
// java token is dropped and relative jar paths are anchored at versionDir.
func (m Manifest) LaunchArgs(versionDir string) ([]string, error) {
	tokens, err := splitCommand(m.RunCommand)
	if err != nil {
		return nil, failure.Wrap(failure.InvalidManifest, err, "parse runCommand")
	}
	if len(tokens) == 0 {
		entry, err := m.Entry()
		if err != nil {
			return nil, err
		}
		return []string{"-jar", filepath.Join(versionDir, entry)}, nil
	}
	if isJavaToken(tokens[0]) {
		tokens = tokens[1:]
	}

	args := make([]string, 0, len(tokens))
	classpathNext := false
	for _, tok := range tokens {
		switch {
		case classpathNext:
			args = append(args, anchorClasspath(versionDir, tok))
			classpathNext = false
		case tok == "-cp" || tok == "-classpath" || tok == "--class-path":
			args = append(args, tok)
			classpathNext = true
		case strings.HasSuffix(strings.ToLower(tok), ".jar") && !strings.HasPrefix(tok, "-"):
			args = append(args, anchor(versionDir, tok))
		default:
			args = append(args, tok)
		}
	}
	return args, nil
}

// Requested reports whether a dedicated runtime is wanted.
func (r *Runtime) Requested() bool {
	return r != nil && (strings.TrimSpace(r.Version) != "" || len(r.Download) > 0)
}

// URLFor returns the download URL for an OS family (linux, mac, windows).
func (r *Runtime) URLFor(osFamily string) (string, bool) {
	if r == nil {
		return "", false
	}
	for key, url := range r.Download {
		if normalizeOS(key) == osFamily && strings.TrimSpace(url) != "" {
			return strings.TrimSpace(url), true
		}
	}
	return "", false
}

func normalizeOS(key string) string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "mac", "macos", "darwin", "osx":
		return "mac"
	case "windows", "win":
		return "windows"
	case "linux":
		return "linux"
	default:
		return strings.ToLower(key)
	}
}

// Validate reports missing fields.
func (d Dependency) Validate() error {
	if strings.TrimSpace(d.URL) != "" {
		if d.ArtifactID == "" && d.Version == "" {
			if _, err := fetch.BaseName(d.URL); err != nil {
				return err
			}
		}
		return nil
	}
	var missing []string
	if strings.TrimSpace(d.GroupID) == "" {
		missing = append(missing, "groupId")
	}
	if strings.TrimSpace(d.ArtifactID) == "" {
		missing = append(missing, "artifactId")
	}
	if strings.TrimSpace(d.Version) == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// LocalName is the file name under libs/.
func (d Dependency) LocalName() (string, error) {
	if d.ArtifactID != "" && d.Version != "" {
		return d.ArtifactID + "-" + d.Version + ".jar", nil
	}
	if d.URL != "" {
		return fetch.BaseName(d.URL)
	}
	return "", fmt.Errorf("dependency has neither coordinates nor url")
}

// Source returns the direct URL, or the Maven layout URL under repo.
func (d Dependency) Source(repo string) (string, error) {
	if u := strings.TrimSpace(d.URL); u != "" {
		return u, nil
	}
	if err := d.Validate(); err != nil {
		return "", err
	}
	name, _ := d.LocalName()
	group := strings.ReplaceAll(d.GroupID, ".", "/")
	return strings.TrimRight(repo, "/") + "/" + path.Join(group, d.ArtifactID, d.Version, name), nil
}

// String renders coordinates or the URL for messages.
func (d Dependency) String() string {
	if d.GroupID != "" || d.ArtifactID != "" {
		return d.GroupID + ":" + d.ArtifactID + ":" + d.Version
	}
	return d.URL
}

func isJavaToken(tok string) bool {
	base := strings.ToLower(filepath.Base(tok))
	return base == "java" || base == "java.exe"
}

func anchor(versionDir, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(versionDir, p)
}

func anchorClasspath(versionDir, cp string) string {
	sep := string(os.PathListSeparator)
	parts := strings.Split(cp, sep)
	for i, part := range parts {
		if part == "" || part == "." {
			continue
		}
		parts[i] = anchor(versionDir, part)
	}
	return strings.Join(parts, sep)
}

func escapes(rel string) bool {
	clean := filepath.Clean(rel)
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

// splitCommand tokenises a command line, honouring single and double quotes.
func splitCommand(cmd string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range cmd {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", cmd)
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}
