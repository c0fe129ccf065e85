package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Database != "feedstore.db" {
		t.Errorf("Database = %q, want %q", cfg.Database, "feedstore.db")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.DispatchTrace == nil || !*cfg.DispatchTrace {
		t.Errorf("DispatchTrace = %v, want true", cfg.DispatchTrace)
	}
	if got := cfg.TaskTimeout.Duration(); got != 2*time.Minute {
		t.Errorf("TaskTimeout = %v, want 2m", got)
	}
	if got := cfg.Fetch.Timeout.Duration(); got != 15*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 15s", got)
	}
	if cfg.Fetch.MaxConcurrency != 4 {
		t.Errorf("Fetch.MaxConcurrency = %d, want 4", cfg.Fetch.MaxConcurrency)
	}
	if cfg.Fetch.Retries == nil || *cfg.Fetch.Retries != 2 {
		t.Errorf("Fetch.Retries = %v, want 2", cfg.Fetch.Retries)
	}
	if cfg.Fetch.UserAgent != "feedstore/1.0" {
		t.Errorf("Fetch.UserAgent = %q, want %q", cfg.Fetch.UserAgent, "feedstore/1.0")
	}
	if len(cfg.Feeds) != 0 {
		t.Errorf("len(Feeds) = %d, want 0", len(cfg.Feeds))
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
port: 9090
database: /var/lib/feedstore/feeds.db
log_level: debug
dispatch_trace: false
task_timeout: 30s
effect_buffer: 16

fetch:
  timeout: 5s
  max_concurrency: 8
  retries: 0
  initial_backoff: 100ms
  user_agent: test-agent

feeds:
  - https://go.dev/blog/feed.atom
  - http://example.com/rss
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Database != "/var/lib/feedstore/feeds.db" {
		t.Errorf("Database = %q, want %q", cfg.Database, "/var/lib/feedstore/feeds.db")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.DispatchTrace == nil || *cfg.DispatchTrace {
		t.Errorf("DispatchTrace = %v, want false", cfg.DispatchTrace)
	}
	if got := cfg.TaskTimeout.Duration(); got != 30*time.Second {
		t.Errorf("TaskTimeout = %v, want 30s", got)
	}
	if cfg.EffectBuffer != 16 {
		t.Errorf("EffectBuffer = %d, want 16", cfg.EffectBuffer)
	}
	if got := cfg.Fetch.Timeout.Duration(); got != 5*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 5s", got)
	}
	if cfg.Fetch.MaxConcurrency != 8 {
		t.Errorf("Fetch.MaxConcurrency = %d, want 8", cfg.Fetch.MaxConcurrency)
	}
	if cfg.Fetch.Retries == nil || *cfg.Fetch.Retries != 0 {
		t.Errorf("Fetch.Retries = %v, want 0", cfg.Fetch.Retries)
	}
	if got := cfg.Fetch.InitialBackoff.Duration(); got != 100*time.Millisecond {
		t.Errorf("Fetch.InitialBackoff = %v, want 100ms", got)
	}
	if cfg.Fetch.UserAgent != "test-agent" {
		t.Errorf("Fetch.UserAgent = %q, want %q", cfg.Fetch.UserAgent, "test-agent")
	}
	if len(cfg.Feeds) != 2 || cfg.Feeds[1] != "http://example.com/rss" {
		t.Errorf("Feeds = %v, want 2 feeds ending with http://example.com/rss", cfg.Feeds)
	}
}

func TestParse_TaskTimeoutDisabled(t *testing.T) {
	cfg, err := Parse([]byte("task_timeout: 0s\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := cfg.TaskTimeout.Duration(); got != 0 {
		t.Errorf("TaskTimeout = %v, want 0", got)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("FEED_HOST", "feeds.example.com")
	t.Setenv("FEEDSTORE_DB", "/tmp/env.db")

	yaml := `
database: ${FEEDSTORE_DB}
fetch:
  user_agent: ${AGENT:-env-agent}
feeds:
  - https://${FEED_HOST}/rss
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Database != "/tmp/env.db" {
		t.Errorf("Database = %q, want %q", cfg.Database, "/tmp/env.db")
	}
	if cfg.Fetch.UserAgent != "env-agent" {
		t.Errorf("Fetch.UserAgent = %q, want %q", cfg.Fetch.UserAgent, "env-agent")
	}
	if cfg.Feeds[0] != "https://feeds.example.com/rss" {
		t.Errorf("Feeds[0] = %q, want %q", cfg.Feeds[0], "https://feeds.example.com/rss")
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
feeds:
  - https://${FEEDSTORE_MISSING_HOST}/rss
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "FEEDSTORE_MISSING_HOST") {
		t.Errorf("error = %q, want to contain variable name", err.Error())
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		wantErrLike string
	}{
		{"negative port", "port: -1", "port must be between"},
		{"port too large", "port: 70000", "port must be between"},
		{"blank database", "database: ' '", "database cannot be empty"},
		{"unknown log level", "log_level: loud", "log_level must be"},
		{"negative task timeout", "task_timeout: -1s", "task_timeout cannot be negative"},
		{"negative effect buffer", "effect_buffer: -1", "effect_buffer cannot be negative"},
		{"fetch timeout too short", "fetch:\n  timeout: 500ms", "fetch.timeout must be at least 1s"},
		{"fetch concurrency too large", "fetch:\n  max_concurrency: 100", "fetch.max_concurrency must be between"},
		{"negative concurrency", "fetch:\n  max_concurrency: -2", "fetch.max_concurrency must be between"},
		{"negative retries", "fetch:\n  retries: -1", "fetch.retries must be between"},
		{"too many retries", "fetch:\n  retries: 11", "fetch.retries must be between"},
		{"negative backoff", "fetch:\n  initial_backoff: -1s", "fetch.initial_backoff cannot be negative"},
		{"feed without scheme", "feeds:\n  - example.com/rss", "url scheme must be http or https"},
		{"feed with ftp scheme", "feeds:\n  - ftp://example.com/rss", "url scheme must be http or https"},
		{"feed without host", "feeds:\n  - https:///rss", "has no host"},
		{"empty feed", "feeds:\n  - ''", "url is required"},
		{"duplicate feed", "feeds:\n  - https://a.example.com\n  - https://a.example.com", "duplicate feed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrLike) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErrLike)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	yaml := `
this is not: valid: yaml: at all
  - broken
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte("task_timeout: not-a-duration\n"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error = %q, want to contain 'invalid duration'", err.Error())
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"seconds", "10s", 10 * time.Second, false},
		{"milliseconds", "1500ms", 1500 * time.Millisecond, false},
		{"minutes", "2m", 2 * time.Minute, false},
		{"combined", "1m30s", 90 * time.Second, false},
		{"invalid", "not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// fetch timeout must be >= 1s, so every valid case is above that
			cfg, err := Parse([]byte("fetch:\n  timeout: " + tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.Fetch.Timeout.Duration() != tt.want {
				t.Errorf("Timeout = %v, want %v", cfg.Fetch.Timeout.Duration(), tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// UNSET and MISSING are expected to not exist in environment
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseLevel(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedstore.yaml")
	if err := os.WriteFile(path, []byte("port: 9191\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %q, want to contain 'failed to read config file'", err.Error())
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Database != "feedstore.db" {
		t.Errorf("Database = %q, want %q", cfg.Database, "feedstore.db")
	}
	if err := cfg.expandAndValidate(); err != nil {
		t.Errorf("Default() is not valid: %v", err)
	}
}
