package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "diagnovera"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "diagnovera:"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "diagnovera-workers"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 4

	DefaultSectorIncrementDegrees = 1.0
	DefaultTopK                   = 10
	DefaultScoreWorkers           = 8
	DefaultScoreDeadline          = 2 * time.Second
)

// DefaultEnsembleWeights is the three-term ensemble default.  The two-term
// 0.7/0.3 variant is expressible by zeroing the markov weight.
var DefaultEnsembleWeights = EnsembleWeights{Bayesian: 0.4, Kuramoto: 0.3, Markov: 0.3}

// defaultVitalsRanges are the affine-normalization ranges for the six
// standard vital signs.
func defaultVitalsRanges() map[string]RangeConfig {
	return map[string]RangeConfig{
		"temperature":       {Min: 35, Max: 42},
		"heart_rate":        {Min: 40, Max: 200},
		"bp_systolic":       {Min: 70, Max: 200},
		"bp_diastolic":      {Min: 40, Max: 120},
		"oxygen_saturation": {Min: 70, Max: 100},
		"respiratory_rate":  {Min: 8, Max: 40},
	}
}

// defaultSubjectiveRanges covers the numeric demographics carried in the
// subjective domain.
func defaultSubjectiveRanges() map[string]RangeConfig {
	return map[string]RangeConfig{
		"age": {Min: 0, Max: 100},
	}
}

// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// It must be called after unmarshalling raw config data and before
// Validate().
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "diagnovera"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = 15 * time.Minute
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.ProducerRetries == 0 {
		cfg.Kafka.ProducerRetries = 3
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.Kafka.MaxBytes == 0 {
		cfg.Kafka.MaxBytes = 10 << 20
	}

	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = 2 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	applyEngineDefaults(&cfg.Engine)
}

func applyEngineDefaults(e *EngineConfig) {
	if e.SectorIncrementDegrees == 0 {
		e.SectorIncrementDegrees = DefaultSectorIncrementDegrees
	}
	if e.Weights == (EnsembleWeights{}) {
		e.Weights = DefaultEnsembleWeights
	}
	if e.TopK == 0 {
		e.TopK = DefaultTopK
	}
	if e.ScoreWorkers == 0 {
		e.ScoreWorkers = DefaultScoreWorkers
	}
	if e.ScoreDeadline == 0 {
		e.ScoreDeadline = DefaultScoreDeadline
	}
	if e.Ranges == nil {
		e.Ranges = map[string]map[string]RangeConfig{}
	}
	if _, ok := e.Ranges["vitals"]; !ok {
		e.Ranges["vitals"] = defaultVitalsRanges()
	}
	if _, ok := e.Ranges["subjective"]; !ok {
		e.Ranges["subjective"] = defaultSubjectiveRanges()
	}
}

// NewDefaultConfig returns a Config populated entirely from defaults.
// Intended for local development and tests.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
