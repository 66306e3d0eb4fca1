// Package config defines all configuration structures for the DiagnoVera
// platform.  No I/O or parsing logic lives here, only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters for the profile cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer/consumer parameters.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	ProducerRetries int           `mapstructure:"producer_retries"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	MinBytes        int           `mapstructure:"min_bytes"`
	MaxBytes        int           `mapstructure:"max_bytes"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	CommitInterval time.Duration `mapstructure:"commit_interval"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine configuration
// ─────────────────────────────────────────────────────────────────────────────

// RangeConfig is a (min, max) affine-normalization range for one numeric
// variable.
type RangeConfig struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// EnsembleWeights is the weight vector combining the three similarity
// measures into one ranking value.  Weights are renormalized to sum to 1 at
// engine construction, so any non-negative vector is acceptable.
type EnsembleWeights struct {
	Bayesian float64 `mapstructure:"bayesian"`
	Kuramoto float64 `mapstructure:"kuramoto"`
	Markov   float64 `mapstructure:"markov"`
}

// EngineConfig carries every tunable of the diagnostic matching engine.
// Nothing in the engine is hard-coded: sector geometry, normalization
// ranges, ensemble weights, truncation, and scoring concurrency all come
// from here.
type EngineConfig struct {
	// SectorIncrementDegrees is the angular step between consecutive keys
	// inside a domain's 60° sector.  It bounds sector capacity: with the
	// default 1° a domain holds 60 distinct variables before allocation
	// fails with a sector-exhausted error.
	SectorIncrementDegrees float64 `mapstructure:"sector_increment_degrees"`

	// Weights is the ensemble weight vector, default (0.4, 0.3, 0.3).
	Weights EnsembleWeights `mapstructure:"weights"`

	// TopK truncates the ranked differential-diagnosis list.
	TopK int `mapstructure:"top_k"`

	// ScoreWorkers bounds the number of candidates scored concurrently.
	ScoreWorkers int `mapstructure:"score_workers"`

	// ScoreDeadline bounds total scoring latency; candidates not scored by
	// the deadline are omitted from the ranked output (partial result, not
	// an error).
	ScoreDeadline time.Duration `mapstructure:"score_deadline"`

	// PresenceFallback, when true, maps a numeric observation whose variable
	// has no configured range to a presence-only magnitude of 1.0 instead of
	// skipping it.
	PresenceFallback bool `mapstructure:"presence_fallback"`

	// Ranges maps domain → variable name → normalization range for numeric
	// observations.
	Ranges map[string]map[string]RangeConfig `mapstructure:"ranges"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the entire platform.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Log      LogConfig      `mapstructure:"log"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be ≥ 1, got %d", c.Worker.Concurrency)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return c.Engine.Validate()
}

// Validate checks the engine tunables.  The 60° sector bound comes from the
// six-domain partition of the full circle.
func (e *EngineConfig) Validate() error {
	if e.SectorIncrementDegrees <= 0 || e.SectorIncrementDegrees > 60 {
		return fmt.Errorf("config: engine.sector_increment_degrees %v is out of range (0, 60]", e.SectorIncrementDegrees)
	}
	if e.Weights.Bayesian < 0 || e.Weights.Kuramoto < 0 || e.Weights.Markov < 0 {
		return fmt.Errorf("config: engine.weights must be non-negative")
	}
	if e.Weights.Bayesian+e.Weights.Kuramoto+e.Weights.Markov == 0 {
		return fmt.Errorf("config: engine.weights must not all be zero")
	}
	if e.TopK < 1 {
		return fmt.Errorf("config: engine.top_k must be ≥ 1, got %d", e.TopK)
	}
	if e.ScoreWorkers < 1 {
		return fmt.Errorf("config: engine.score_workers must be ≥ 1, got %d", e.ScoreWorkers)
	}
	if e.ScoreDeadline <= 0 {
		return fmt.Errorf("config: engine.score_deadline must be positive, got %v", e.ScoreDeadline)
	}
	for domain, vars := range e.Ranges {
		for name, r := range vars {
			if r.Max <= r.Min {
				return fmt.Errorf("config: engine.ranges.%s.%s: max %v must exceed min %v", domain, name, r.Max, r.Min)
			}
		}
	}
	return nil
}
