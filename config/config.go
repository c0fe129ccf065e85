// Package config provides YAML configuration parsing for the feedstore CLI.
//
// Example configuration:
//
//	port: 8080
//	database: ${FEEDSTORE_DB:-feedstore.db}
//	log_level: info
//	dispatch_trace: false
//	task_timeout: 2m
//
//	fetch:
//	  timeout: 15s
//	  max_concurrency: 4
//	  retries: 2
//	  user_agent: feedstore/1.0
//
//	feeds:
//	  - https://go.dev/blog/feed.atom
//	  - https://blog.golang.org/feed.atom
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultDatabase       = "feedstore.db"
	defaultLogLevel       = "info"
	defaultTaskTimeout    = 2 * time.Minute
	defaultFetchTimeout   = 15 * time.Second
	defaultMaxConcurrency = 4
	defaultRetries        = 2
	defaultUserAgent      = "feedstore/1.0"

	maxConcurrencyLimit = 64
	maxRetries          = 10
)

// Config is the root configuration structure for the feedstore CLI.
//
// It maps directly to the YAML configuration file structure.
// Use [Load], [Parse] or [Default] to create a Config.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Database is the SQLite file path. Defaults to "feedstore.db".
	// Supports environment variable substitution.
	Database string `yaml:"database"`

	// LogLevel is one of debug, info, warn or error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// DispatchTrace emits the diagnostic effect on every dispatch.
	// Defaults to true.
	DispatchTrace *bool `yaml:"dispatch_trace"`

	// TaskTimeout bounds each feed service operation. Defaults to 2m.
	// Set to "0s" to disable.
	TaskTimeout *Duration `yaml:"task_timeout"`

	// EffectBuffer is the per-subscriber effect buffer. Defaults to 100.
	EffectBuffer int `yaml:"effect_buffer"`

	// Fetch tunes feed downloads.
	Fetch FetchConfig `yaml:"fetch"`

	// Feeds are subscribed on first start if not stored yet.
	// Each entry supports environment variable substitution.
	Feeds []string `yaml:"feeds"`
}

// FetchConfig tunes the HTTP side of the feed reader.
type FetchConfig struct {
	// Timeout bounds a single download attempt. Defaults to 15s.
	Timeout Duration `yaml:"timeout"`

	// MaxConcurrency limits parallel downloads. Defaults to 4.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Retries is the number of extra attempts on network errors and 5xx.
	// Defaults to 2.
	Retries *int `yaml:"retries"`

	// InitialBackoff is the first delay between attempts. Defaults to 250ms.
	InitialBackoff Duration `yaml:"initial_backoff"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, applies defaults and validates
// the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.DispatchTrace == nil {
		trace := true
		c.DispatchTrace = &trace
	}
	if c.TaskTimeout == nil {
		timeout := Duration(defaultTaskTimeout)
		c.TaskTimeout = &timeout
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = Duration(defaultFetchTimeout)
	}
	if c.Fetch.MaxConcurrency == 0 {
		c.Fetch.MaxConcurrency = defaultMaxConcurrency
	}
	if c.Fetch.Retries == nil {
		retries := defaultRetries
		c.Fetch.Retries = &retries
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	expanded, err := expandEnvVars(c.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if strings.TrimSpace(expanded) == "" {
		return fmt.Errorf("database cannot be empty")
	}
	c.Database = expanded

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.TaskTimeout.Duration() < 0 {
		return fmt.Errorf("task_timeout cannot be negative, got %s", c.TaskTimeout.Duration())
	}

	if c.EffectBuffer < 0 {
		return fmt.Errorf("effect_buffer cannot be negative, got %d", c.EffectBuffer)
	}

	if err := c.Fetch.validate(); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Feeds))
	for i, raw := range c.Feeds {
		feedURL, err := expandEnvVars(raw)
		if err != nil {
			return fmt.Errorf("feeds[%d]: %w", i, err)
		}
		if err := validateFeedURL(feedURL); err != nil {
			return fmt.Errorf("feeds[%d]: %w", i, err)
		}
		if _, dup := seen[feedURL]; dup {
			return fmt.Errorf("feeds[%d]: duplicate feed %q", i, feedURL)
		}
		seen[feedURL] = struct{}{}
		c.Feeds[i] = feedURL
	}

	return nil
}

func (f *FetchConfig) validate() error {
	if f.Timeout.Duration() < time.Second {
		return fmt.Errorf("fetch.timeout must be at least 1s, got %s", f.Timeout.Duration())
	}
	if f.MaxConcurrency < 1 || f.MaxConcurrency > maxConcurrencyLimit {
		return fmt.Errorf("fetch.max_concurrency must be between 1 and %d, got %d",
			maxConcurrencyLimit, f.MaxConcurrency)
	}
	if *f.Retries < 0 || *f.Retries > maxRetries {
		return fmt.Errorf("fetch.retries must be between 0 and %d, got %d", maxRetries, *f.Retries)
	}
	if f.InitialBackoff.Duration() < 0 {
		return fmt.Errorf("fetch.initial_backoff cannot be negative, got %s", f.InitialBackoff.Duration())
	}

	expanded, err := expandEnvVars(f.UserAgent)
	if err != nil {
		return fmt.Errorf("fetch.user_agent: %w", err)
	}
	f.UserAgent = expanded
	return nil
}

func validateFeedURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// ParseLevel maps a log_level value to a [slog.Level].
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level must be debug, info, warn or error, got %q", s)
	}
}
