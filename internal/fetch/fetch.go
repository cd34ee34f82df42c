// Package fetch streams remote artifacts to disk.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// Downloader saves the body behind a URL to a local file.
type Downloader interface {
	Download(ctx context.Context, src, dest, checksum string) error
}

// Options configures an HTTPDownloader. Timeout bounds connecting and
// waiting for response headers; body transfer is bounded only by the
// request context.
type Options struct {
	Timeout   time.Duration
	RetryMax  int
	UserAgent string
	Logger    zerolog.Logger
}

// HTTPDownloader downloads over HTTP(S) using a retrying client. With
// RetryMax zero each download is attempted exactly once.
type HTTPDownloader struct {
	client    *retryablehttp.Client
	userAgent string
	log       zerolog.Logger
}

var _ Downloader = (*HTTPDownloader)(nil)

// New constructs an HTTPDownloader.
func New(opts Options) *HTTPDownloader {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	if client.RetryMax < 0 {
		client.RetryMax = 0
	}
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	if opts.Timeout > 0 {
		applyTimeout(client.HTTPClient, opts.Timeout)
	}
	client.Logger = leveledLogger{log: opts.Logger}

	ua := opts.UserAgent
	if ua == "" {
		ua = "fg-cli"
	}
	return &HTTPDownloader{client: client, userAgent: ua, log: opts.Logger}
}

// applyTimeout bounds dial, TLS handshake and response headers. The
// client-wide Timeout stays zero so large bodies may stream for as long as
// the caller's context allows.
func applyTimeout(c *http.Client, timeout time.Duration) {
	c.Timeout = 0
	t, ok := c.Transport.(*http.Transport)
	if !ok {
		return
	}
	t.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	t.TLSHandshakeTimeout = timeout
	t.ResponseHeaderTimeout = timeout
}

// Download streams src into dest. The body is written to a temp file beside
// dest and renamed into place only after an optional sha256 check passes, so
// dest never holds a partial file.
func (d *HTTPDownloader) Download(ctx context.Context, src, dest, checksum string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("prepare download destination: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: src, Code: resp.StatusCode, Status: resp.Status}
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmpFile, hasher), resp.Body)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if checksum != "" {
		sum := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(sum, strings.TrimSpace(checksum)) {
			return &ChecksumError{URL: src, Expected: checksum, Actual: sum}
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	d.log.Debug().
		Str("url", src).
		Str("dest", dest).
		Int64("bytes", written).
		Dur("elapsed", time.Since(start)).
		Msg("downloaded")
	return nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s: unexpected status %s", e.URL, e.Status)
}

// ChecksumError reports a sha256 mismatch.
type ChecksumError struct {
	URL      string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.URL, e.Expected, e.Actual)
}

// BaseName infers a file name from the last path segment of rawURL. Query
// and fragment are ignored; a path ending in "/" has no name.
func BaseName(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	if parsed.Path == "" || strings.HasSuffix(parsed.Path, "/") {
		return "", fmt.Errorf("infer file name from url: %s", rawURL)
	}
	base := path.Base(parsed.Path)
	if base == "." || base == "" || base == "/" {
		return "", fmt.Errorf("infer file name from url: %s", rawURL)
	}
	return base, nil
}

// ComputeChecksum returns the hex sha256 of the file at path.
func ComputeChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// leveledLogger routes retryablehttp's request logging into zerolog.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Trace().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}

var _ retryablehttp.LeveledLogger = leveledLogger{}
