package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultJava != "java" {
		t.Fatalf("expected default java, got %q", cfg.DefaultJava)
	}
	if cfg.HTTP.RetryMax != 0 {
		t.Fatalf("expected no retries by default, got %d", cfg.HTTP.RetryMax)
	}
	if cfg.Stop.GracefulValue() {
		t.Fatal("expected hard kill by default")
	}
}

func TestLoadMergesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "maven_repository: https://mirror.example.test/maven2/\njvm_args: [\"-Xmx512m\"]\nstop:\n  graceful: true\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MavenRepository != "https://mirror.example.test/maven2" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.MavenRepository)
	}
	if len(cfg.JVMArgs) != 1 || cfg.JVMArgs[0] != "-Xmx512m" {
		t.Fatalf("unexpected jvm args %v", cfg.JVMArgs)
	}
	if !cfg.Stop.GracefulValue() {
		t.Fatal("expected graceful stop")
	}
	if cfg.Stop.Timeout() != 5*time.Second {
		t.Fatalf("expected default stop timeout, got %s", cfg.Stop.Timeout())
	}
	if cfg.ManifestBaseURL == "" {
		t.Fatal("expected manifest base url default")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Env = map[string]string{"SPRING_PROFILES_ACTIVE": "dev"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Env["SPRING_PROFILES_ACTIVE"] != "dev" {
		t.Fatalf("expected env to survive, got %v", loaded.Env)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if results := cfg.Validate(); HasErrors(results) {
		t.Fatalf("expected defaults to validate, got %v", results)
	}

	cfg.MavenRepository = "ftp://example.test/maven"
	cfg.LogLevel = "chatty"
	cfg.JVMArgs = []string{"-jar"}
	results := cfg.Validate()
	if !HasErrors(results) {
		t.Fatal("expected validation errors")
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 findings, got %d: %v", len(results), results)
	}
}
