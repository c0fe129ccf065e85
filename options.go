package feedstore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jpalmerr/feedstore/internal/flow"
)

// storeConfig holds mutable state during Store construction.
type storeConfig struct {
	logger        *slog.Logger
	taskTimeout   time.Duration
	dispatchTrace bool
	effectBuffer  int
}

func defaultStoreConfig() *storeConfig {
	return &storeConfig{
		dispatchTrace: true,
		effectBuffer:  flow.DefaultBuffer,
	}
}

// Option is a function that configures a [Store] during construction.
//
// Built-in options: [WithLogger], [WithTaskTimeout], [WithDispatchTrace],
// [WithEffectBuffer].
type Option func(*storeConfig) error

// WithLogger sets a custom [slog.Logger] for the store.
//
// Actions and published states are logged at debug level, recovered task
// panics at error level. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *storeConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTaskTimeout bounds every scheduled feed service pipeline.
//
// A pipeline still running when the timeout elapses has its context
// cancelled and is resolved with an [Error] wrapping [ErrTaskTimeout].
// Zero, the default, disables the timeout.
//
// Returns an error if the duration is negative.
func WithTaskTimeout(d time.Duration) Option {
	return func(cfg *storeConfig) error {
		if d < 0 {
			return errors.New("task timeout cannot be negative")
		}
		cfg.taskTimeout = d
		return nil
	}
}

// WithDispatchTrace controls the diagnostic [ErrorEffect] carrying
// [ErrDispatchAction] that is emitted at the start of every dispatch.
//
// Tracing is enabled by default. Consumers that keep it on can filter the
// trace with [ErrorEffect.IsDiagnostic].
func WithDispatchTrace(enabled bool) Option {
	return func(cfg *storeConfig) error {
		cfg.dispatchTrace = enabled
		return nil
	}
}

// WithEffectBuffer sets the per-subscriber effect buffer. Effects beyond a
// full buffer are dropped for that subscriber. Defaults to 100.
//
// Returns an error if n is zero or negative.
func WithEffectBuffer(n int) Option {
	return func(cfg *storeConfig) error {
		if n <= 0 {
			return errors.New("effect buffer must be positive")
		}
		cfg.effectBuffer = n
		return nil
	}
}
