// Package config defines all configuration structures for RxDossier.
// No I/O or parsing logic lives here — only plain data types and validation.
// Loading, env overrides, and file watching live in loader.go; defaults for
// unset fields live in defaults.go.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/backoff"
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
	RateLimitPerSec float64       `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
}

// PipelineConfig holds enrichment-pipeline execution parameters.
type PipelineConfig struct {
	// MaxInFlight bounds how many candidates are enriched concurrently
	// within one run, to respect external rate limits.
	MaxInFlight int `mapstructure:"max_in_flight"`

	// RunTimeout bounds a whole run; candidates not done by then are
	// flushed as degraded.  Zero means no run-level timeout.
	RunTimeout time.Duration `mapstructure:"run_timeout"`

	NormalizeTimeout  time.Duration `mapstructure:"normalize_timeout"`
	RegulatoryTimeout time.Duration `mapstructure:"regulatory_timeout"`
	LiteratureTimeout time.Duration `mapstructure:"literature_timeout"`
	GradingTimeout    time.Duration `mapstructure:"grading_timeout"`
}

// RetryConfig holds the backoff budget applied to transient external-call
// failures.  Semantic failures are never retried regardless of this budget.
type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
}

// Policy converts the configured budget into the executable form consumed
// by pkg/backoff.
func (r RetryConfig) Policy() backoff.Policy {
	return backoff.Policy{
		MaxRetries: r.MaxRetries,
		Initial:    r.InitialBackoff,
		Max:        r.MaxBackoff,
		Multiplier: r.BackoffMultiplier,
	}
}

// NormalizationConfig holds nomenclature-index parameters.
type NormalizationConfig struct {
	RxNavBaseURL string        `mapstructure:"rxnav_base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retry        RetryConfig   `mapstructure:"retry"`
}

// RegulatoryConfig holds regulatory-authority checker parameters.
type RegulatoryConfig struct {
	FDABaseURL     string        `mapstructure:"fda_base_url"`
	EMABaseURL     string        `mapstructure:"ema_base_url"`
	BNFCorpusPath  string        `mapstructure:"bnf_corpus_path"`
	CheckerTimeout time.Duration `mapstructure:"checker_timeout"`
	Retry          RetryConfig   `mapstructure:"retry"`
}

// LiteratureCacheConfig holds literature-cache parameters.
type LiteratureCacheConfig struct {
	// Backend selects the cache implementation: "memory" | "redis".
	Backend string `mapstructure:"backend"`

	// Freshness is how long a cached article list is served before a
	// re-query.  Expired entries are treated as misses on next access.
	Freshness time.Duration `mapstructure:"freshness"`
}

// LiteratureConfig holds biomedical literature index parameters.
type LiteratureConfig struct {
	EntrezBaseURL string                `mapstructure:"entrez_base_url"`
	APIKey        string                `mapstructure:"api_key"`
	Email         string                `mapstructure:"email"`
	MaxResults    int                   `mapstructure:"max_results"`
	RatePerSecond float64               `mapstructure:"rate_per_second"`
	Timeout       time.Duration         `mapstructure:"timeout"`
	Retry         RetryConfig           `mapstructure:"retry"`
	Cache         LiteratureCacheConfig `mapstructure:"cache"`
}

// AIConfig holds the language-model inference capability parameters.
type AIConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Retry           RetryConfig   `mapstructure:"retry"`
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer/consumer parameters.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	AutoOffsetReset string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	ProducerRetries int           `mapstructure:"producer_retries"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
}

// StorageConfig holds MinIO / S3-compatible object-storage parameters.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// WorkerConfig holds background-worker execution parameters.
type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	HealthPort     int           `mapstructure:"health_port"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration for all RxDossier processes.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Normalization NormalizationConfig `mapstructure:"normalization"`
	Regulatory    RegulatoryConfig    `mapstructure:"regulatory"`
	Literature    LiteratureConfig    `mapstructure:"literature"`
	AI            AIConfig            `mapstructure:"ai"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Log           logging.Config      `mapstructure:"log"`
}

// Validate checks cross-field consistency after defaults have been applied.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Pipeline.MaxInFlight <= 0 {
		return fmt.Errorf("pipeline.max_in_flight must be positive, got %d", c.Pipeline.MaxInFlight)
	}
	if err := validateRetry("normalization.retry", c.Normalization.Retry); err != nil {
		return err
	}
	if err := validateRetry("regulatory.retry", c.Regulatory.Retry); err != nil {
		return err
	}
	if err := validateRetry("literature.retry", c.Literature.Retry); err != nil {
		return err
	}
	if err := validateRetry("ai.retry", c.AI.Retry); err != nil {
		return err
	}
	switch c.Literature.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("literature.cache.backend must be \"memory\" or \"redis\", got %q", c.Literature.Cache.Backend)
	}
	if c.Literature.Cache.Freshness <= 0 {
		return fmt.Errorf("literature.cache.freshness must be positive, got %s", c.Literature.Cache.Freshness)
	}
	if c.Literature.RatePerSecond <= 0 {
		return fmt.Errorf("literature.rate_per_second must be positive, got %f", c.Literature.RatePerSecond)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2.0 {
		return fmt.Errorf("ai.temperature must be within [0, 2.0], got %f", c.AI.Temperature)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	return nil
}

func validateRetry(section string, r RetryConfig) error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("%s.max_retries must not be negative, got %d", section, r.MaxRetries)
	}
	if r.InitialBackoff < 0 || r.MaxBackoff < 0 {
		return fmt.Errorf("%s backoff durations must not be negative", section)
	}
	if r.MaxBackoff > 0 && r.InitialBackoff > r.MaxBackoff {
		return fmt.Errorf("%s.initial_backoff %s exceeds max_backoff %s", section, r.InitialBackoff, r.MaxBackoff)
	}
	if r.BackoffMultiplier < 1.0 {
		return fmt.Errorf("%s.backoff_multiplier must be >= 1.0, got %f", section, r.BackoffMultiplier)
	}
	return nil
}
