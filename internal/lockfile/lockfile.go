// Package lockfile provides an advisory cross-process lock backed by an
// exclusively created file holding the owner's pid.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// DefaultStaleAfter is how old a lock file may get before it is presumed
// abandoned by a crashed holder.
const DefaultStaleAfter = 30 * time.Second

// unreadableGrace is how long a lock without a readable pid is left alone;
// the holder writes its pid right after creating the file.
const unreadableGrace = 2 * time.Second

var pollInterval = 100 * time.Millisecond

// holderAlive reports whether the process owning a lock still exists.
var holderAlive = func(ctx context.Context, pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	ok, err := process.PidExistsWithContext(ctx, int32(pid))
	return err != nil || ok
}

// Acquire blocks until path can be created exclusively or ctx is done. A
// lock whose recorded holder is no longer running is broken at once. Locks
// older than staleAfter are broken as well; zero disables the age check.
// The returned func releases the lock.
func Acquire(ctx context.Context, path string, staleAfter time.Duration) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare lock dir: %w", err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			_ = f.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if abandoned(ctx, path, staleAfter) {
			_ = os.Remove(path)
			continue
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func abandoned(ctx context.Context, path string, staleAfter time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	age := time.Since(info.ModTime())
	if staleAfter > 0 && age > staleAfter {
		return true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return age > unreadableGrace
	}
	return !holderAlive(ctx, pid)
}
