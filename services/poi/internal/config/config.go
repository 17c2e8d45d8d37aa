package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/PoiCatalog/pkg/config"
	"github.com/utafrali/PoiCatalog/pkg/database"
	"github.com/utafrali/PoiCatalog/pkg/tracing"
	"github.com/utafrali/PoiCatalog/services/poi/internal/score"
)

// Live event sources for the SSE hub.
const (
	LiveSourceLocal = "local"
	LiveSourceKafka = "kafka"
)

// Config holds all configuration for the poi service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort        int           `env:"POI_HTTP_PORT" envDefault:"8010"`
	ShutdownTimeout time.Duration `env:"POI_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"" envSeparator:","`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"poi"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"poi_secret"`
	PostgresDB   string `env:"POI_DB_NAME" envDefault:"poi_catalog"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`
	RunMigrations         bool  `env:"POI_RUN_MIGRATIONS" envDefault:"true"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Poi view cache
	CacheTTL     time.Duration `env:"POI_CACHE_TTL" envDefault:"1h"`
	CacheTimeout time.Duration `env:"POI_CACHE_TIMEOUT" envDefault:"150ms"`

	// Kafka
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	LiveEventSource string   `env:"POI_LIVE_SOURCE" envDefault:"local"`
	LiveGroupID     string   `env:"POI_LIVE_GROUP_ID" envDefault:""`

	// Popularity scoring
	ScoreHalfLifeDays     float64       `env:"SCORE_HALF_LIFE_DAYS" envDefault:"180"`
	ScoreConfidence       float64       `env:"SCORE_CONFIDENCE" envDefault:"5"`
	ScoreNeutralAverage   float64       `env:"SCORE_NEUTRAL_AVERAGE" envDefault:"3"`
	ScoreRecomputeEvery   time.Duration `env:"SCORE_RECOMPUTE_INTERVAL" envDefault:"24h"`
	ScoreSchedulerEnabled bool          `env:"SCORE_SCHEDULER_ENABLED" envDefault:"true"`

	// Notifications
	NotifyWorkers    int           `env:"NOTIFY_WORKERS" envDefault:"4"`
	NotifyQueueSize  int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	NotifyTimeout    time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
	NotifyAttempts   int           `env:"NOTIFY_ATTEMPTS" envDefault:"2"`
	NotifyBackoff    time.Duration `env:"NOTIFY_BACKOFF" envDefault:"200ms"`
	NotifyGatewayURL string        `env:"NOTIFY_GATEWAY_URL" envDefault:""`

	// Auth
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-me-in-production"`

	// Rate limiting on review submission
	ReviewRateLimitRPS   float64 `env:"REVIEW_RATE_LIMIT_RPS" envDefault:"1"`
	ReviewRateLimitBurst int     `env:"REVIEW_RATE_LIMIT_BURST" envDefault:"5"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load poi config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges that env tags cannot express.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.LiveEventSource != LiveSourceLocal && c.LiveEventSource != LiveSourceKafka {
		return fmt.Errorf("POI_LIVE_SOURCE must be %q or %q, got %q", LiveSourceLocal, LiveSourceKafka, c.LiveEventSource)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("POI_CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.CacheTimeout <= 0 {
		return fmt.Errorf("POI_CACHE_TIMEOUT must be positive, got %s", c.CacheTimeout)
	}
	if err := c.Score().Validate(); err != nil {
		return fmt.Errorf("score config: %w", err)
	}
	if c.ScoreRecomputeEvery <= 0 {
		return fmt.Errorf("SCORE_RECOMPUTE_INTERVAL must be positive, got %s", c.ScoreRecomputeEvery)
	}
	if c.NotifyWorkers < 1 {
		return fmt.Errorf("NOTIFY_WORKERS must be at least 1, got %d", c.NotifyWorkers)
	}
	if c.NotifyQueueSize < 1 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be at least 1, got %d", c.NotifyQueueSize)
	}
	if c.NotifyAttempts < 1 {
		return fmt.Errorf("NOTIFY_ATTEMPTS must be at least 1, got %d", c.NotifyAttempts)
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive, got %s", c.NotifyTimeout)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.ReviewRateLimitRPS <= 0 || c.ReviewRateLimitBurst < 1 {
		return fmt.Errorf("review rate limit must be positive, got %v rps burst %d", c.ReviewRateLimitRPS, c.ReviewRateLimitBurst)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the connection and pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// Score returns the popularity scoring parameters.
func (c *Config) Score() score.Config {
	return score.Config{
		HalfLifeDays:   c.ScoreHalfLifeDays,
		Confidence:     c.ScoreConfidence,
		NeutralAverage: c.ScoreNeutralAverage,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing(service string) tracing.Config {
	return tracing.Config{
		ServiceName:    service,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}

// SlowQueryThreshold returns LOG_SLOW_QUERY_MS as a duration. Zero disables
// slow query logging.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
