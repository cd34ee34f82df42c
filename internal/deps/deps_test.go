package deps

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"fg/internal/failure"
	"fg/internal/fetch"
	"fg/internal/manifest"
)

type mavenStub struct {
	mu       sync.Mutex
	requests []string
	missing  map[string]bool
}

func (m *mavenStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, r.URL.Path)
	missing := m.missing[r.URL.Path]
	m.mu.Unlock()
	if missing {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte("jar:" + r.URL.Path))
}

func (m *mavenStub) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

func newInstaller(t *testing.T, stub *mavenStub) (*Installer, string) {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	dl := fetch.New(fetch.Options{Logger: zerolog.Nop()})
	return NewInstaller(dl, srv.URL+"/maven2", zerolog.Nop()), srv.URL
}

func TestEnsureFetchesMavenAndDirectURLs(t *testing.T) {
	stub := &mavenStub{}
	inst, base := newInstaller(t, stub)
	libs := filepath.Join(t.TempDir(), "libs")

	deps := []manifest.Dependency{
		{GroupID: "junit", ArtifactID: "junit", Version: "4.13.2"},
		{GroupID: "org.hamcrest", ArtifactID: "hamcrest-core", Version: "1.3", URL: base + "/mirror/hamcrest.jar"},
	}
	res, err := inst.Ensure(context.Background(), deps, libs, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"junit-4.13.2.jar", "hamcrest-core-1.3.jar"}, res.Fetched)
	require.Equal(t, []string{"/maven2/junit/junit/4.13.2/junit-4.13.2.jar", "/mirror/hamcrest.jar"}, stub.Requests())

	data, err := os.ReadFile(filepath.Join(libs, "junit-4.13.2.jar"))
	require.NoError(t, err)
	require.Equal(t, "jar:/maven2/junit/junit/4.13.2/junit-4.13.2.jar", string(data))
}

func TestEnsureSkipsPresentArtifacts(t *testing.T) {
	stub := &mavenStub{}
	inst, _ := newInstaller(t, stub)
	libs := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(libs, "junit-4.13.2.jar"), []byte("local"), 0o644))

	res, err := inst.Ensure(context.Background(), []manifest.Dependency{
		{GroupID: "junit", ArtifactID: "junit", Version: "4.13.2"},
	}, libs, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"junit-4.13.2.jar"}, res.Skipped)
	require.Empty(t, stub.Requests())

	data, err := os.ReadFile(filepath.Join(libs, "junit-4.13.2.jar"))
	require.NoError(t, err)
	require.Equal(t, "local", string(data))
}

func TestEnsureStopsAtFirstFailure(t *testing.T) {
	stub := &mavenStub{missing: map[string]bool{"/maven2/com/example/gone/1.0/gone-1.0.jar": true}}
	inst, _ := newInstaller(t, stub)
	libs := t.TempDir()

	_, err := inst.Ensure(context.Background(), []manifest.Dependency{
		{GroupID: "junit", ArtifactID: "junit", Version: "4.13.2"},
		{GroupID: "com.example", ArtifactID: "gone", Version: "1.0"},
		{GroupID: "org.never", ArtifactID: "reached", Version: "1.0"},
	}, libs, nil)
	require.True(t, failure.Is(err, failure.DependencyFetchFailure), "got %v", err)
	require.Contains(t, err.Error(), "gone-1.0.jar")
	require.Len(t, stub.Requests(), 2)
	require.NoFileExists(t, filepath.Join(libs, "gone-1.0.jar"))
}

func TestEnsureRejectsIncompleteDescriptor(t *testing.T) {
	stub := &mavenStub{}
	inst, _ := newInstaller(t, stub)
	_, err := inst.Ensure(context.Background(), []manifest.Dependency{{ArtifactID: "junit"}}, t.TempDir(), nil)
	require.True(t, failure.Is(err, failure.InvalidManifest), "got %v", err)
	require.Empty(t, stub.Requests())
}

func TestEnsureChecksumMismatch(t *testing.T) {
	stub := &mavenStub{}
	inst, _ := newInstaller(t, stub)
	_, err := inst.Ensure(context.Background(), []manifest.Dependency{
		{GroupID: "junit", ArtifactID: "junit", Version: "4.13.2", SHA256: "00"},
	}, t.TempDir(), nil)
	require.True(t, failure.Is(err, failure.DependencyFetchFailure), "got %v", err)
}

func TestEnsureRefetchesCachedJarFailingChecksum(t *testing.T) {
	stub := &mavenStub{}
	inst, _ := newInstaller(t, stub)
	libs := t.TempDir()
	const path = "/maven2/junit/junit/4.13.2/junit-4.13.2.jar"
	require.NoError(t, os.WriteFile(filepath.Join(libs, "junit-4.13.2.jar"), []byte("truncated"), 0o644))

	sum := sha256.Sum256([]byte("jar:" + path))
	res, err := inst.Ensure(context.Background(), []manifest.Dependency{
		{GroupID: "junit", ArtifactID: "junit", Version: "4.13.2", SHA256: hex.EncodeToString(sum[:])},
	}, libs, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"junit-4.13.2.jar"}, res.Fetched)
	require.Equal(t, []string{path}, stub.Requests())

	data, err := os.ReadFile(filepath.Join(libs, "junit-4.13.2.jar"))
	require.NoError(t, err)
	require.Equal(t, "jar:"+path, string(data))

	res, err = inst.Ensure(context.Background(), []manifest.Dependency{
		{GroupID: "junit", ArtifactID: "junit", Version: "4.13.2", SHA256: hex.EncodeToString(sum[:])},
	}, libs, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"junit-4.13.2.jar"}, res.Skipped)
	require.Len(t, stub.Requests(), 1)
}
