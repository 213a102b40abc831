// Package config provides application configuration management using Viper.
// Configuration is loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Feed     FeedConfig     `mapstructure:"feed"`
	AdSlots  AdSlotsConfig  `mapstructure:"adslots"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"` // development, staging, production
	Port  int    `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
}

// DatabaseConfig holds database connection settings. Only used when the
// cache backend is postgres.
type DatabaseConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Name         string        `mapstructure:"name"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	SSLMode      string        `mapstructure:"ssl_mode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis connection settings, shared by the cache backend
// and the sweeper's distributed lock.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SourcesConfig holds the upstream endpoints.
type SourcesConfig struct {
	Primary     SourceEndpoint `mapstructure:"primary"`
	Recommended SourceEndpoint `mapstructure:"recommended"`
	AdServer    SourceEndpoint `mapstructure:"adserver"`
}

// SourceEndpoint holds a single upstream's configuration.
type SourceEndpoint struct {
	// Enabled gates optional upstreams. The primary source ignores it.
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   RetryConfig   `mapstructure:"retry"`
	CB      CBConfig      `mapstructure:"circuit_breaker"`
}

// RetryConfig holds retry settings.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	WaitTime    time.Duration `mapstructure:"wait_time"`
	MaxWaitTime time.Duration `mapstructure:"max_wait_time"`
}

// CBConfig holds circuit breaker settings.
type CBConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// FeedConfig holds feed assembly settings.
type FeedConfig struct {
	// ItemsPerLoad is the recommendation page size per extension.
	ItemsPerLoad int `mapstructure:"items_per_load"`

	// TriggerThreshold is the remaining-lookahead at which an extension
	// fires.
	TriggerThreshold int `mapstructure:"trigger_threshold"`
}

// AdSlotsConfig holds the slot lifecycle windows. PreloadDistance must be
// strictly below UnloadDistance; the gap is the hysteresis band.
type AdSlotsConfig struct {
	PreloadDistance int `mapstructure:"preload_distance"`
	UnloadDistance  int `mapstructure:"unload_distance"`
}

// CacheConfig holds caching settings.
type CacheConfig struct {
	// Backend selects the storage implementation: redis or postgres.
	Backend   string `mapstructure:"backend"`
	KeyPrefix string `mapstructure:"key_prefix"`

	// Retention bounds how long the redis backend keeps entries at all;
	// it must exceed every TTL times the sweeper grace multiple.
	Retention time.Duration `mapstructure:"retention"`

	DefaultTTL time.Duration            `mapstructure:"default_ttl"`
	TTL        map[string]time.Duration `mapstructure:"ttl"`
}

// SweeperConfig holds cache sweeper settings.
type SweeperConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	GraceMultiple int           `mapstructure:"grace_multiple"`
	OnStartup     bool          `mapstructure:"on_startup"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, file path
}

// SentryConfig holds Sentry error tracking settings.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Load reads configuration from file and environment variables.
// Priority: env vars > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found, continue with defaults + env vars
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate rejects settings that would misbehave silently at runtime.
func (c *Config) validate() error {
	if c.AdSlots.PreloadDistance < 0 || c.AdSlots.PreloadDistance >= c.AdSlots.UnloadDistance {
		return fmt.Errorf(
			"adslots: preload_distance (%d) must be non-negative and below unload_distance (%d)",
			c.AdSlots.PreloadDistance, c.AdSlots.UnloadDistance,
		)
	}

	if c.Feed.ItemsPerLoad <= 0 {
		return fmt.Errorf("feed: items_per_load must be positive, got %d", c.Feed.ItemsPerLoad)
	}
	if c.Feed.TriggerThreshold < 0 {
		return fmt.Errorf("feed: trigger_threshold must be non-negative, got %d", c.Feed.TriggerThreshold)
	}

	switch c.Cache.Backend {
	case "redis", "postgres":
	default:
		return fmt.Errorf("cache: unknown backend %q", c.Cache.Backend)
	}

	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "feed-engine-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.debug", true)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "feed_engine")
	v.SetDefault("database.user", "app")
	v.SetDefault("database.password", "secret")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", "5m")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Primary catalog defaults
	v.SetDefault("sources.primary.base_url", "http://localhost:8081")
	v.SetDefault("sources.primary.timeout", "10s")
	v.SetDefault("sources.primary.retry.max_attempts", 3)
	v.SetDefault("sources.primary.retry.wait_time", "1s")
	v.SetDefault("sources.primary.retry.max_wait_time", "5s")
	v.SetDefault("sources.primary.circuit_breaker.max_requests", 3)
	v.SetDefault("sources.primary.circuit_breaker.interval", "60s")
	v.SetDefault("sources.primary.circuit_breaker.timeout", "30s")
	v.SetDefault("sources.primary.circuit_breaker.failure_ratio", 0.5)

	// Recommendation service defaults
	v.SetDefault("sources.recommended.enabled", true)
	v.SetDefault("sources.recommended.base_url", "http://localhost:8082")
	v.SetDefault("sources.recommended.timeout", "10s")
	v.SetDefault("sources.recommended.retry.max_attempts", 3)
	v.SetDefault("sources.recommended.retry.wait_time", "1s")
	v.SetDefault("sources.recommended.retry.max_wait_time", "5s")
	v.SetDefault("sources.recommended.circuit_breaker.max_requests", 3)
	v.SetDefault("sources.recommended.circuit_breaker.interval", "60s")
	v.SetDefault("sources.recommended.circuit_breaker.timeout", "30s")
	v.SetDefault("sources.recommended.circuit_breaker.failure_ratio", 0.5)

	// Ad server defaults
	v.SetDefault("sources.adserver.base_url", "http://localhost:8083")
	v.SetDefault("sources.adserver.timeout", "5s")
	v.SetDefault("sources.adserver.retry.max_attempts", 2)
	v.SetDefault("sources.adserver.retry.wait_time", "500ms")
	v.SetDefault("sources.adserver.retry.max_wait_time", "2s")
	v.SetDefault("sources.adserver.circuit_breaker.max_requests", 3)
	v.SetDefault("sources.adserver.circuit_breaker.interval", "60s")
	v.SetDefault("sources.adserver.circuit_breaker.timeout", "30s")
	v.SetDefault("sources.adserver.circuit_breaker.failure_ratio", 0.6)

	// Feed defaults
	v.SetDefault("feed.items_per_load", 10)
	v.SetDefault("feed.trigger_threshold", 3)

	// Ad slot defaults
	v.SetDefault("adslots.preload_distance", 2)
	v.SetDefault("adslots.unload_distance", 4)

	// Cache defaults
	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.key_prefix", "feed-engine")
	v.SetDefault("cache.retention", "72h")
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.ttl.feed", "15m")
	v.SetDefault("cache.ttl.editions", "15m")
	v.SetDefault("cache.ttl.covers", "24h")
	v.SetDefault("cache.ttl.pdfs", "24h")
	v.SetDefault("cache.ttl.articles", "1h")

	// Sweeper defaults
	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval", "10m")
	v.SetDefault("sweeper.timeout", "1m")
	v.SetDefault("sweeper.grace_multiple", 2)
	v.SetDefault("sweeper.on_startup", false)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stdout")

	// Sentry defaults
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)
}
