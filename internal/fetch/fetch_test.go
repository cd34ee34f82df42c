package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDownloader(retries int) *HTTPDownloader {
	return New(Options{RetryMax: retries, Logger: zerolog.Nop()})
}

func TestDownloadWritesBodyAndSetsUserAgent(t *testing.T) {
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("jar-bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "libs", "junit-4.13.2.jar")
	require.NoError(t, newTestDownloader(0).Download(context.Background(), srv.URL+"/junit.jar", dest, ""))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "jar-bytes", string(data))
	require.Equal(t, "fg-cli", agent.Load())
}

func TestDownloadNotFoundLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "missing.jar")
	err := newTestDownloader(0).Download(context.Background(), srv.URL+"/missing.jar", dest, "")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.NoFileExists(t, dest)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "temp files must be cleaned up")
}

func TestDownloadSingleAttemptByDefault(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newTestDownloader(0).Download(context.Background(), srv.URL+"/x", filepath.Join(t.TempDir(), "x"), "")
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDownloadChecksum(t *testing.T) {
	body := []byte("runtime archive")
	sum := sha256.Sum256(body)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	d := newTestDownloader(0)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.bin")
	require.NoError(t, d.Download(context.Background(), srv.URL, good, hex.EncodeToString(sum[:])))

	computed, err := ComputeChecksum(good)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(sum[:]), computed)

	bad := filepath.Join(dir, "bad.bin")
	err = d.Download(context.Background(), srv.URL, bad, "deadbeef")
	var sumErr *ChecksumError
	require.True(t, errors.As(err, &sumErr))
	require.NoFileExists(t, bad)
}

func TestDownloadHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newTestDownloader(0).Download(ctx, srv.URL, filepath.Join(t.TempDir(), "x"), "")
	require.Error(t, err)
}

func TestBaseName(t *testing.T) {
	name, err := BaseName("https://repo1.maven.org/maven2/junit/junit/4.13.2/junit-4.13.2.jar?x=1")
	require.NoError(t, err)
	require.Equal(t, "junit-4.13.2.jar", name)

	for _, raw := range []string{"https://example.test/", "https://example.test/libs/", "https://example.test?x=1"} {
		_, err = BaseName(raw)
		require.Error(t, err, raw)
	}
}

func TestTimeoutBoundsHeadersNotBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow-headers.jar" {
			time.Sleep(500 * time.Millisecond)
		}
		_, _ = w.Write([]byte("first-"))
		w.(http.Flusher).Flush()
		if r.URL.Path == "/slow-body.jar" {
			time.Sleep(500 * time.Millisecond)
		}
		_, _ = w.Write([]byte("second"))
	}))
	defer srv.Close()

	dl := New(Options{Timeout: 200 * time.Millisecond, Logger: zerolog.Nop()})
	dir := t.TempDir()

	dest := filepath.Join(dir, "body.jar")
	require.NoError(t, dl.Download(context.Background(), srv.URL+"/slow-body.jar", dest, ""))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "first-second", string(data))

	err = dl.Download(context.Background(), srv.URL+"/slow-headers.jar", filepath.Join(dir, "headers.jar"), "")
	require.Error(t, err)
	require.NoFileExists(t, filepath.Join(dir, "headers.jar"))
}
