package paths

import (
	"os"
	"path/filepath"
	"testing"

	"fg/internal/failure"
)

func TestNewDerivesLayout(t *testing.T) {
	root := t.TempDir()
	l := New(root)

	if l.RegistryPath() != filepath.Join(root, "processes.json") {
		t.Fatalf("unexpected registry path %s", l.RegistryPath())
	}
	if got := l.LogFile(4242); got != filepath.Join(root, "logs", "4242.log") {
		t.Fatalf("unexpected log path %s", got)
	}

	manifest, err := l.ManifestPath("1.0")
	if err != nil {
		t.Fatalf("manifest path: %v", err)
	}
	if manifest != filepath.Join(root, "versions", "1.0", "fgmanifest.json") {
		t.Fatalf("unexpected manifest path %s", manifest)
	}

	libs, err := l.LibsDir("1.0")
	if err != nil {
		t.Fatalf("libs dir: %v", err)
	}
	if libs != filepath.Join(root, "versions", "1.0", "libs") {
		t.Fatalf("unexpected libs dir %s", libs)
	}

	runtime, err := l.RuntimeDir("17", "1.0")
	if err != nil {
		t.Fatalf("runtime dir: %v", err)
	}
	if runtime != filepath.Join(root, "runtimes", "jdk-17-1.0") {
		t.Fatalf("unexpected runtime dir %s", runtime)
	}
}

func TestDerivationsDoNotTouchDisk(t *testing.T) {
	root := filepath.Join(t.TempDir(), "fg")
	l := New(root)
	if _, err := l.VersionDir("2.1.0"); err != nil {
		t.Fatalf("version dir: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("expected root to be absent, stat err=%v", err)
	}
}

func TestValidateVersionRejectsUnsafeIDs(t *testing.T) {
	cases := []string{"", ".", "..", "../etc", "a/b", `a\b`, "-rf", "with space"}
	for _, tc := range cases {
		t.Run(tc, func(t *testing.T) {
			err := ValidateVersion(tc)
			if !failure.Is(err, failure.InvalidArgument) {
				t.Fatalf("expected invalid argument for %q, got %v", tc, err)
			}
		})
	}
	for _, ok := range []string{"1.0", "2.0.0-rc1", "17.0.2+8", "latest"} {
		if err := ValidateVersion(ok); err != nil {
			t.Fatalf("expected %q to be valid: %v", ok, err)
		}
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "home"))
	for i := 0; i < 2; i++ {
		if err := l.Ensure(); err != nil {
			t.Fatalf("ensure #%d: %v", i, err)
		}
	}
	for _, dir := range []string{l.VersionsDir, l.LogsDir, l.RuntimesDir} {
		ok, err := DirExists(dir)
		if err != nil || !ok {
			t.Fatalf("expected %s to exist (err=%v)", dir, err)
		}
	}
}

func TestDirNonEmpty(t *testing.T) {
	dir := t.TempDir()
	ok, err := DirNonEmpty(dir)
	if err != nil || ok {
		t.Fatalf("expected empty dir, got ok=%v err=%v", ok, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	ok, err = DirNonEmpty(dir)
	if err != nil || !ok {
		t.Fatalf("expected non-empty dir, got ok=%v err=%v", ok, err)
	}
	ok, err = DirNonEmpty(filepath.Join(dir, "missing"))
	if err != nil || ok {
		t.Fatalf("expected missing dir to be empty, got ok=%v err=%v", ok, err)
	}
}
