package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// Validate runs all checks against the config and returns structured results.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, validateURL("manifest_base_url", c.ManifestBaseURL)...)
	results = append(results, validateURL("maven_repository", c.MavenRepository)...)
	results = append(results, c.validateLogLevel()...)
	results = append(results, c.validateJVMArgs()...)
	if c.HTTP.RetryMax > 10 {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: fmt.Sprintf("http.retry_max=%d retries each failed download many times", c.HTTP.RetryMax),
		})
	}
	return results
}

// HasErrors reports whether any result is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func validateURL(key, raw string) []ValidationResult {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return []ValidationResult{{Level: "error", Message: fmt.Sprintf("%s %q is not an absolute URL", key, raw)}}
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		return []ValidationResult{{Level: "warning", Message: fmt.Sprintf("%s uses plain http", key)}}
	default:
		return []ValidationResult{{Level: "error", Message: fmt.Sprintf("%s has unsupported scheme %q", key, u.Scheme)}}
	}
}

func (c Config) validateLogLevel() []ValidationResult {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return []ValidationResult{{Level: "error", Message: fmt.Sprintf("log_level %q is not recognised", c.LogLevel)}}
	}
	return nil
}

func (c Config) validateJVMArgs() []ValidationResult {
	var results []ValidationResult
	for _, arg := range c.JVMArgs {
		if strings.TrimSpace(arg) == "" {
			results = append(results, ValidationResult{Level: "warning", Message: "jvm_args contains an empty entry"})
			continue
		}
		if arg == "-jar" || arg == "-cp" || arg == "-classpath" {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("jvm_args must not contain %q; the launch command supplies it", arg),
			})
		}
	}
	return results
}
