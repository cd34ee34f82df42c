package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures manager-wide settings stored in <root>/config.yaml.
type Config struct {
	Version         int               `yaml:"version"`
	ManifestBaseURL string            `yaml:"manifest_base_url"`
	MavenRepository string            `yaml:"maven_repository"`
	DefaultJava     string            `yaml:"default_java"`
	JVMArgs         []string          `yaml:"jvm_args,omitempty"`
	Env             map[string]string `yaml:"env,omitempty"`
	HTTP            HTTPConfig        `yaml:"http"`
	Stop            StopConfig        `yaml:"stop"`
	LogLevel        string            `yaml:"log_level"`
}

// HTTPConfig controls downloads of runtimes, dependencies and descriptions.
type HTTPConfig struct {
	TimeoutSec int    `yaml:"timeout_sec"`
	RetryMax   int    `yaml:"retry_max"`
	UserAgent  string `yaml:"user_agent"`
}

// StopConfig controls how instances are terminated.
type StopConfig struct {
	TimeoutSec int   `yaml:"timeout_sec"`
	Graceful   *bool `yaml:"graceful,omitempty"`
}

// GracefulValue returns the effective graceful flag applying defaults.
func (s StopConfig) GracefulValue() bool {
	if s.Graceful == nil {
		return false
	}
	return *s.Graceful
}

// Timeout returns the stop wait bound as a duration.
func (s StopConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// Timeout returns the connect and response-header bound as a duration.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSec) * time.Second
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version:         1,
		ManifestBaseURL: "https://raw.githubusercontent.com/allan-bispo/fg/main/java-aplication/src/dependencies",
		MavenRepository: "https://repo1.maven.org/maven2",
		DefaultJava:     "java",
		HTTP: HTTPConfig{
			TimeoutSec: 300,
			RetryMax:   0,
			UserAgent:  "fg-cli",
		},
		Stop: StopConfig{
			TimeoutSec: 5,
			Graceful:   boolPtr(false),
		},
		LogLevel: "info",
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults ensures fields fall back to sensible defaults when the YAML
// omits or blanks them.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	c.ManifestBaseURL = strings.TrimRight(strings.TrimSpace(c.ManifestBaseURL), "/")
	if c.ManifestBaseURL == "" {
		c.ManifestBaseURL = defaults.ManifestBaseURL
	}
	c.MavenRepository = strings.TrimRight(strings.TrimSpace(c.MavenRepository), "/")
	if c.MavenRepository == "" {
		c.MavenRepository = defaults.MavenRepository
	}
	if strings.TrimSpace(c.DefaultJava) == "" {
		c.DefaultJava = defaults.DefaultJava
	}
	if c.HTTP.TimeoutSec <= 0 {
		c.HTTP.TimeoutSec = defaults.HTTP.TimeoutSec
	}
	if c.HTTP.RetryMax < 0 {
		c.HTTP.RetryMax = 0
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = defaults.HTTP.UserAgent
	}
	if c.Stop.TimeoutSec <= 0 {
		c.Stop.TimeoutSec = defaults.Stop.TimeoutSec
	}
	if c.Stop.Graceful == nil {
		c.Stop.Graceful = boolPtr(false)
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

// Save writes the configuration to path, replacing any existing file.
func (c Config) Save(path string) error {
	buf, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func boolPtr(v bool) *bool {
	return &v
}
