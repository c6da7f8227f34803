package ember

import (
	"time"

	"github.com/emberdb/ember/storage"
)

// config holds the configuration for a Server
type config struct {
	// Listen settings
	addr     string
	password string

	// Limits
	maxConnections int
	maxBulkSize    int64
	readTimeout    time.Duration

	// Storage tuning
	shardCount int
	cleanup    storage.CleanupConfig

	// Observability
	logger  Logger
	metrics MetricsCollector
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		addr:        ":6379",
		maxBulkSize: 512 * 1024 * 1024,
		shardCount:  0, // storage default
		cleanup:     storage.CleanupConfigDefault,
	}
}

// Option represents a configuration option for a Server
type Option func(*config) error

// WithAddr sets the listen address
//
// Example:
//
//	WithAddr(":6379")
//	WithAddr("127.0.0.1:7000")
func WithAddr(addr string) Option {
	return func(c *config) error {
		if addr == "" {
			return ErrInvalidConfig
		}
		c.addr = addr
		return nil
	}
}

// WithPassword requires clients to authenticate with AUTH before
// issuing other commands
func WithPassword(password string) Option {
	return func(c *config) error {
		c.password = password
		return nil
	}
}

// WithMaxConnections limits concurrent client connections.
// Zero means unlimited.
func WithMaxConnections(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return ErrInvalidConfig
		}
		c.maxConnections = n
		return nil
	}
}

// WithMaxBulkSize sets the maximum accepted bulk string payload in bytes
//
// Example:
//
//	WithMaxBulkSize(64 * 1024 * 1024) // 64MB
func WithMaxBulkSize(bytes int64) Option {
	return func(c *config) error {
		if bytes <= 0 {
			return ErrInvalidConfig
		}
		c.maxBulkSize = bytes
		return nil
	}
}

// WithReadTimeout sets the per-read deadline on client connections.
// Zero disables the deadline, which blocking commands require.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return ErrInvalidConfig
		}
		c.readTimeout = timeout
		return nil
	}
}

// WithShardCount sets the number of storage shards.
// Must be a power of two.
func WithShardCount(count int) Option {
	return func(c *config) error {
		if count <= 0 || count&(count-1) != 0 {
			return ErrInvalidConfig
		}
		c.shardCount = count
		return nil
	}
}

// WithCleanupConfig tunes the background expired-key sampler
//
// Example:
//
//	WithCleanupConfig(storage.CleanupConfigLargeDataset)
func WithCleanupConfig(cfg storage.CleanupConfig) Option {
	return func(c *config) error {
		if cfg.SampleSize <= 0 || cfg.MaxRounds <= 0 || cfg.BatchSize <= 0 {
			return ErrInvalidConfig
		}
		c.cleanup = cfg
		return nil
	}
}

// WithLogger sets a custom logger for the server
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return ErrInvalidConfig
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics enables metrics collection with the provided collector
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		c.metrics = collector
		return nil
	}
}
