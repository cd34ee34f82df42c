package config

import (
	"strings"
	"testing"
)

func TestValidateDefaultsClean(t *testing.T) {
	if results := Default().Validate(); len(results) != 0 {
		t.Fatalf("expected no findings for defaults, got %+v", results)
	}
}

func TestValidateFindings(t *testing.T) {
	cfg := Default()
	cfg.ManifestBaseURL = "ftp://example.com/manifests"
	cfg.MavenRepository = "http://nexus.local/maven2"
	cfg.LogLevel = "loud"
	cfg.JVMArgs = []string{"-Xmx1g", "-jar", " "}
	cfg.HTTP.RetryMax = 20

	results := cfg.Validate()
	if !HasErrors(results) {
		t.Fatal("expected errors")
	}

	var errors, warnings []string
	for _, r := range results {
		switch r.Level {
		case "error":
			errors = append(errors, r.Message)
		case "warning":
			warnings = append(warnings, r.Message)
		}
	}
	if len(errors) != 3 {
		t.Fatalf("expected 3 errors (scheme, log level, -jar), got %v", errors)
	}
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings (http, empty arg, retries), got %v", warnings)
	}
	if !strings.Contains(strings.Join(errors, "\n"), `"-jar"`) {
		t.Fatalf("expected -jar finding, got %v", errors)
	}
}

func TestValidateRejectsRelativeURL(t *testing.T) {
	cfg := Default()
	cfg.MavenRepository = "repo/maven2"
	if !HasErrors(cfg.Validate()) {
		t.Fatal("expected error for relative repository url")
	}
}
