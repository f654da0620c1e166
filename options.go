package gobzlshard

import (
	"context"
	"errors"
	"log/slog"

	"github.com/albertocavalcante/go-bzlshard/batch"
	"github.com/albertocavalcante/go-bzlshard/expand"
)

// Option configures a Sharder.
type Option func(*sharderConfig) error

// sharderConfig holds all sharding configuration.
type sharderConfig struct {
	batcher          batch.Batcher
	parallelism      int
	packageShardSize int

	// logger is the structured logger for debug/info output.
	// If nil, logging is disabled (silent mode).
	logger *slog.Logger
}

// WithBatcher replaces the default lexicographic batching strategy.
func WithBatcher(b batch.Batcher) Option {
	return func(c *sharderConfig) error {
		if b == nil {
			return errors.New("batcher must not be nil")
		}
		c.batcher = b
		return nil
	}
}

// WithParallelism sets how many expansion queries may run at once.
func WithParallelism(n int) Option {
	return func(c *sharderConfig) error {
		c.parallelism = n
		return nil
	}
}

// WithPackageShardSize sets how many package wildcards are sent per expansion query.
func WithPackageShardSize(n int) Option {
	return func(c *sharderConfig) error {
		c.packageShardSize = n
		return nil
	}
}

// WithLogger sets a structured logger for sharding diagnostics.
// If not set, logging is disabled (silent mode).
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "bzlshard")
//	sharder, err := NewSharder(runner, WithLogger(logger))
func WithLogger(l *slog.Logger) Option {
	return func(c *sharderConfig) error {
		c.logger = l
		return nil
	}
}

// validate checks the configuration for logical consistency.
func (c *sharderConfig) validate() error {
	if c.parallelism < 1 {
		return errors.New("parallelism must be positive")
	}
	if c.packageShardSize < 1 {
		return errors.New("package shard size must be positive")
	}
	return nil
}

// log returns the configured logger, or a no-op logger if none was set.
func (c *sharderConfig) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(discardHandler{})
}

// discardHandler is a slog.Handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// newSharderConfig creates a configuration by applying the given options
// over the defaults and validating the result.
func newSharderConfig(opts ...Option) (*sharderConfig, error) {
	c := &sharderConfig{
		batcher:          batch.Lexicographic{},
		parallelism:      1,
		packageShardSize: expand.DefaultPackageShardSize,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}
