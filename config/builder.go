package config

import (
	"log/slog"

	"github.com/jpalmerr/feedstore"
	"github.com/jpalmerr/feedstore/internal/reader"
)

// BuildReaderConfig converts parsed configuration into a [reader.Config].
func BuildReaderConfig(cfg *Config) reader.Config {
	rc := reader.Config{
		Timeout:        cfg.Fetch.Timeout.Duration(),
		InitialBackoff: cfg.Fetch.InitialBackoff.Duration(),
		MaxConcurrency: cfg.Fetch.MaxConcurrency,
		UserAgent:      cfg.Fetch.UserAgent,
		DefaultFeeds:   append([]string(nil), cfg.Feeds...),
	}
	if cfg.Fetch.Retries != nil {
		rc.Retries = *cfg.Fetch.Retries
	}
	return rc
}

// BuildStoreOptions converts parsed configuration into [feedstore.Option]
// values, starting with logger.
func BuildStoreOptions(cfg *Config, logger *slog.Logger) []feedstore.Option {
	opts := []feedstore.Option{feedstore.WithLogger(logger)}

	if cfg.DispatchTrace != nil {
		opts = append(opts, feedstore.WithDispatchTrace(*cfg.DispatchTrace))
	}
	if cfg.TaskTimeout != nil && *cfg.TaskTimeout > 0 {
		opts = append(opts, feedstore.WithTaskTimeout(cfg.TaskTimeout.Duration()))
	}
	if cfg.EffectBuffer > 0 {
		opts = append(opts, feedstore.WithEffectBuffer(cfg.EffectBuffer))
	}

	return opts
}
