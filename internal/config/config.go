// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Seed      SeedConfig      `yaml:"seed"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string          `yaml:"addr"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	StaticDir       string          `yaml:"static_dir"` // served under /static/ when set
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig controls the per-client token bucket on /api routes.
// RPM 0 disables limiting.
type RateLimitConfig struct {
	RPM         int64         `yaml:"rpm"`
	Burst       int64         `yaml:"burst"`
	IdleTimeout time.Duration `yaml:"idle_timeout"` // buckets idle this long are evicted
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // file path or ":memory:"
}

// AuthConfig holds admin credentials for catalog writes and cache operations.
type AuthConfig struct {
	AdminKeys []string `yaml:"admin_keys"` // plaintext, hashed at startup
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Backend       string        `yaml:"backend"` // "memory" or "redis"
	MaxSize       int           `yaml:"max_size"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Coalesce      bool          `yaml:"coalesce"` // share one handler run between concurrent misses
	TTLs          CacheTTLs     `yaml:"ttls"`
	Redis         RedisConfig   `yaml:"redis"`
}

// CacheTTLs holds per-route freshness windows.
type CacheTTLs struct {
	Default    time.Duration `yaml:"default"`
	Products   time.Duration `yaml:"products"`
	Product    time.Duration `yaml:"product"`
	Categories time.Duration `yaml:"categories"`
}

// RedisConfig selects the Redis server backing a shared entry table.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig controls the circuit breaker in front of Redis. While open,
// lookups miss and stores are skipped.
type BreakerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ErrorThreshold float64       `yaml:"error_threshold"`
	MinSamples     int           `yaml:"min_samples"`
	Window         time.Duration `yaml:"window"` // at most 60s
	OpenTimeout    time.Duration `yaml:"open_timeout"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

// SeedConfig lists catalog rows created on first run.
type SeedConfig struct {
	Categories []CategoryEntry `yaml:"categories"`
	Products   []ProductEntry  `yaml:"products"`
}

// CategoryEntry is a category seed.
type CategoryEntry struct {
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ProductEntry is a product seed. Category refers to a category slug.
type ProductEntry struct {
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	PriceCents  int64  `yaml:"price_cents"`
	Currency    string `yaml:"currency"`
	Category    string `yaml:"category"`
	Stock       int    `yaml:"stock"`
	Featured    bool   `yaml:"featured"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the configuration used when a file leaves a field unset.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit: RateLimitConfig{
				RPM:         600,
				Burst:       100,
				IdleTimeout: 10 * time.Minute,
			},
		},
		Database: DatabaseConfig{
			DSN: "storefront.db",
		},
		Cache: CacheConfig{
			Enabled:       true,
			Backend:       "memory",
			MaxSize:       10_000,
			SweepInterval: 60 * time.Second,
			TTLs: CacheTTLs{
				Default:    60 * time.Second,
				Products:   300 * time.Second,
				Product:    120 * time.Second,
				Categories: 3600 * time.Second,
			},
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Breaker: BreakerConfig{
					Enabled:        true,
					ErrorThreshold: 0.5,
					MinSamples:     5,
					Window:         30 * time.Second,
					OpenTimeout:    10 * time.Second,
				},
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if rl := c.Server.RateLimit; rl.RPM < 0 || rl.Burst < 0 {
		return fmt.Errorf("config: server.rate_limit values must not be negative")
	} else if rl.RPM > 0 && rl.IdleTimeout <= 0 {
		return fmt.Errorf("config: server.rate_limit.idle_timeout must be positive")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("config: cache.max_size must not be negative")
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("config: cache.sweep_interval must be positive")
	}
	if b := c.Cache.Redis.Breaker; b.Enabled {
		if b.ErrorThreshold <= 0 || b.ErrorThreshold > 1 {
			return fmt.Errorf("config: cache.redis.breaker.error_threshold must be in (0, 1]")
		}
		if b.Window < time.Second || b.Window > time.Minute {
			return fmt.Errorf("config: cache.redis.breaker.window must be between 1s and 60s")
		}
	}
	if c.Telemetry.Tracing.Enabled && c.Telemetry.Tracing.Endpoint == "" {
		return fmt.Errorf("config: telemetry.tracing.endpoint is required when tracing is enabled")
	}
	return nil
}
