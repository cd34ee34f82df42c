package lockfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.lock")
	release, err := Acquire(context.Background(), path, 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected lock file: %v", err)
	}
	release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected lock file removed, got %v", err)
	}
}

func TestAcquireWaitsForHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "held.lock")
	release, err := Acquire(context.Background(), path, 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if _, err := Acquire(ctx, path, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	release()
	again, err := Acquire(context.Background(), path, 0)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}

func TestAcquireBreaksStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stale.lock")
	if err := os.WriteFile(path, []byte("99999"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release, err := Acquire(ctx, path, time.Minute)
	if err != nil {
		t.Fatalf("expected stale lock to be broken: %v", err)
	}
	release()
}

func TestAcquireBreaksLockOfExitedHolder(t *testing.T) {
	prev := holderAlive
	holderAlive = func(_ context.Context, pid int) bool { return pid != 424242 }
	t.Cleanup(func() { holderAlive = prev })

	path := filepath.Join(t.TempDir(), "install.lock")
	if err := os.WriteFile(path, []byte("424242"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release, err := Acquire(ctx, path, 0)
	if err != nil {
		t.Fatalf("expected lock of exited holder to be broken: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("expected own pid in lock, got %q", data)
	}
	release()
}

func TestAcquireKeepsLockOfLiveHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "install.lock")
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-24 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if _, err := Acquire(ctx, path, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected live holder to keep the lock, got %v", err)
	}
}

func TestAcquireBreaksOldUnreadableLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "install.lock")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-24 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release, err := Acquire(ctx, path, 0)
	if err != nil {
		t.Fatalf("expected empty day-old lock to be broken: %v", err)
	}
	release()
}
