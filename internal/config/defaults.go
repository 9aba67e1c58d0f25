package config

import "time"

// Default endpoints for the external knowledge sources.  Overridable so
// tests and air-gapped deployments can point at local stand-ins.
const (
	DefaultRxNavBaseURL  = "https://rxnav.nlm.nih.gov/REST"
	DefaultFDABaseURL    = "https://api.fda.gov"
	DefaultEMABaseURL    = "https://www.ema.europa.eu"
	DefaultEntrezBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
)

// defaultRetry is the standard transient-failure budget: up to 2 retries,
// exponential backoff starting at 100ms and capped at 2s.
func defaultRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func mergeRetry(r *RetryConfig) {
	d := defaultRetry()
	if r.MaxRetries == 0 && r.InitialBackoff == 0 && r.MaxBackoff == 0 {
		r.MaxRetries = d.MaxRetries
	}
	if r.InitialBackoff == 0 {
		r.InitialBackoff = d.InitialBackoff
	}
	if r.MaxBackoff == 0 {
		r.MaxBackoff = d.MaxBackoff
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = d.BackoffMultiplier
	}
}

// ApplyDefaults fills every unset field of cfg with a production-sane value.
// Called by the loader between unmarshalling and validation; also usable
// directly by tests that build configs by hand.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.RateLimitPerSec == 0 {
		cfg.Server.RateLimitPerSec = 20
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = 40
	}

	// Pipeline
	if cfg.Pipeline.MaxInFlight == 0 {
		cfg.Pipeline.MaxInFlight = 8
	}
	if cfg.Pipeline.NormalizeTimeout == 0 {
		cfg.Pipeline.NormalizeTimeout = 15 * time.Second
	}
	if cfg.Pipeline.RegulatoryTimeout == 0 {
		cfg.Pipeline.RegulatoryTimeout = 30 * time.Second
	}
	if cfg.Pipeline.LiteratureTimeout == 0 {
		cfg.Pipeline.LiteratureTimeout = 30 * time.Second
	}
	if cfg.Pipeline.GradingTimeout == 0 {
		cfg.Pipeline.GradingTimeout = 60 * time.Second
	}

	// Normalization
	if cfg.Normalization.RxNavBaseURL == "" {
		cfg.Normalization.RxNavBaseURL = DefaultRxNavBaseURL
	}
	if cfg.Normalization.Timeout == 0 {
		cfg.Normalization.Timeout = 10 * time.Second
	}
	mergeRetry(&cfg.Normalization.Retry)

	// Regulatory
	if cfg.Regulatory.FDABaseURL == "" {
		cfg.Regulatory.FDABaseURL = DefaultFDABaseURL
	}
	if cfg.Regulatory.EMABaseURL == "" {
		cfg.Regulatory.EMABaseURL = DefaultEMABaseURL
	}
	if cfg.Regulatory.CheckerTimeout == 0 {
		cfg.Regulatory.CheckerTimeout = 10 * time.Second
	}
	mergeRetry(&cfg.Regulatory.Retry)

	// Literature
	if cfg.Literature.EntrezBaseURL == "" {
		cfg.Literature.EntrezBaseURL = DefaultEntrezBaseURL
	}
	if cfg.Literature.MaxResults == 0 {
		cfg.Literature.MaxResults = 5
	}
	if cfg.Literature.RatePerSecond == 0 {
		// NCBI allows 10 req/s with an API key; stay one under.
		cfg.Literature.RatePerSecond = 9
	}
	if cfg.Literature.Timeout == 0 {
		cfg.Literature.Timeout = 15 * time.Second
	}
	mergeRetry(&cfg.Literature.Retry)
	if cfg.Literature.Cache.Backend == "" {
		cfg.Literature.Cache.Backend = "memory"
	}
	if cfg.Literature.Cache.Freshness == 0 {
		cfg.Literature.Cache.Freshness = 24 * time.Hour
	}

	// AI
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-4o-mini"
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.1
	}
	if cfg.AI.MaxOutputTokens == 0 {
		cfg.AI.MaxOutputTokens = 2048
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60 * time.Second
	}
	mergeRetry(&cfg.AI.Retry)

	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.MinConns == 0 {
		cfg.Database.MinConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "file://migrations"
	}

	// Redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "rxdossier:"
	}

	// Kafka
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "rxdossier-worker"
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.ProducerRetries == 0 {
		cfg.Kafka.ProducerRetries = 3
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 50 * time.Millisecond
	}

	// Storage
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "rxdossier-exports"
	}

	// Metrics
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "rxdossier"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Worker
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 4
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryBackoff == 0 {
		cfg.Worker.RetryBackoff = time.Second
	}
	if cfg.Worker.HandlerTimeout == 0 {
		cfg.Worker.HandlerTimeout = 5 * time.Minute
	}
	if cfg.Worker.HealthPort == 0 {
		cfg.Worker.HealthPort = 8081
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}
