// Package config provides application configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ratefeed/internal/rate"
)

// Config holds the complete application configuration.
type Config struct {
	Server   ServerConfig
	Pricing  PricingConfig
	Sources  SourcesConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Worker   WorkerConfig
	Cache    CacheConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          int  `mapstructure:"port"`
	ServeSwagger  bool `mapstructure:"serve_swagger"`
	ServeAsynqmon bool `mapstructure:"serve_asynqmon"`
	ServeRelay    bool `mapstructure:"serve_relay"`
}

// PricingConfig holds the initial pricing configuration. Runtime changes made
// through the API are persisted by the config store and take precedence.
type PricingConfig struct {
	BaseCurrency      string   `mapstructure:"base_currency"`
	TargetCurrency    string   `mapstructure:"target_currency"`
	RefreshIntervalMs int64    `mapstructure:"refresh_interval_ms"`
	FallbackRate      float64  `mapstructure:"fallback_rate"`
	Sources           []string `mapstructure:"sources"`
	HistoryLimit      int      `mapstructure:"history_limit"`
	StaleAfterMinutes float64  `mapstructure:"stale_after_minutes"`
}

// Rate converts the section into the domain configuration.
func (p PricingConfig) Rate() rate.PricingConfig {
	return rate.PricingConfig{
		BaseCurrency:    strings.ToUpper(p.BaseCurrency),
		TargetCurrency:  strings.ToUpper(p.TargetCurrency),
		RefreshInterval: time.Duration(p.RefreshIntervalMs) * time.Millisecond,
		FallbackRate:    p.FallbackRate,
		Sources:         slices.Clone(p.Sources),
	}
}

// SourcesConfig holds provider endpoints and the relay they fall back to.
type SourcesConfig struct {
	CoinGeckoURL string `mapstructure:"coingecko_url"`
	BinanceURL   string `mapstructure:"binance_url"`
	CoinbaseURL  string `mapstructure:"coinbase_url"`
	// RelayURL defaults to this server's own relay when server.serve_relay is
	// set. Empty otherwise, which disables the proxy fallback.
	RelayURL     string `mapstructure:"relay_url"`
	TimeoutSec   int    `mapstructure:"timeout_sec"`
}

// DatabaseConfig holds PostgreSQL connection settings. The config store is
// enabled only when Host is set.
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Name               string `mapstructure:"name"`
	SSLMode            string `mapstructure:"sslmode"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSec int    `mapstructure:"conn_max_lifetime_sec"`
	DSN                string
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool { return d.Host != "" }

// RedisConfig holds connection settings for both Redis instances. Either may be empty.
type RedisConfig struct {
	AsynqAddr string `mapstructure:"asynq_addr"` // Redis instance for the Asynq task queue.
	CacheAddr string `mapstructure:"cache_addr"` // Redis instance for source cache and latest-rate snapshot.
}

// KafkaConfig holds the rate event publisher settings. Publishing is enabled
// only when Brokers is set.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Enabled reports whether Kafka publishing is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// WorkerConfig holds background worker and task queue settings.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	MaxRetry    int `mapstructure:"max_retry"`
	TimeoutSec  int `mapstructure:"timeout_sec"`
	CoalesceSec int `mapstructure:"coalesce_sec"` // async refresh requests within this window share one task
}

// CacheConfig holds caching settings.
type CacheConfig struct {
	SourceTTLSec         int `mapstructure:"source_ttl_sec"`
	LatestSnapshotTTLSec int `mapstructure:"latest_snapshot_ttl_sec"`
}

var currencyCode = regexp.MustCompile(`^[A-Z]{3,5}$`)

// LoadConfig reads configuration from config files, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file found or error loading it: %v\n", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config search paths
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./internal/config")

	v.SetEnvPrefix("RATEFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// It's okay if no config file, we have defaults and env
		fmt.Printf("Config file not found: %v\n", err)
	}

	return fromViper(v)
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	def := rate.DefaultPricingConfig()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.serve_swagger", true)
	v.SetDefault("server.serve_asynqmon", true)
	v.SetDefault("server.serve_relay", true)
	v.SetDefault("pricing.base_currency", def.BaseCurrency)
	v.SetDefault("pricing.target_currency", def.TargetCurrency)
	v.SetDefault("pricing.refresh_interval_ms", def.RefreshInterval.Milliseconds())
	v.SetDefault("pricing.fallback_rate", def.FallbackRate)
	v.SetDefault("pricing.sources", def.Sources)
	v.SetDefault("pricing.history_limit", 1000)
	v.SetDefault("pricing.stale_after_minutes", 5)
	v.SetDefault("sources.coingecko_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("sources.binance_url", "https://api.binance.com")
	v.SetDefault("sources.coinbase_url", "https://api.coinbase.com")
	v.SetDefault("sources.relay_url", "")
	v.SetDefault("sources.timeout_sec", 10)
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "ratefeed")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_sec", 300)
	v.SetDefault("redis.asynq_addr", "")
	v.SetDefault("redis.cache_addr", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "ratefeed.rates")
	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.max_retry", 3)
	v.SetDefault("worker.timeout_sec", 60)
	v.SetDefault("worker.coalesce_sec", 5)
	v.SetDefault("cache.source_ttl_sec", 15)
	v.SetDefault("cache.latest_snapshot_ttl_sec", 600)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// env values arrive as one comma-separated string
	cfg.Pricing.Sources = splitList(cfg.Pricing.Sources)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Pricing.BaseCurrency = strings.ToUpper(cfg.Pricing.BaseCurrency)
	cfg.Pricing.TargetCurrency = strings.ToUpper(cfg.Pricing.TargetCurrency)
	if cfg.Sources.RelayURL == "" && cfg.Server.ServeRelay {
		cfg.Sources.RelayURL = fmt.Sprintf("http://localhost:%d/api/proxy", cfg.Server.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeSec <= 0 {
		cfg.Database.ConnMaxLifetimeSec = 300
	}

	if cfg.Database.Enabled() {
		cfg.Database.DSN = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Database.User, cfg.Database.Password,
			cfg.Database.Host, cfg.Database.Port,
			cfg.Database.Name, cfg.Database.SSLMode)
	}

	return &cfg, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks that all required configuration fields are set and valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be positive, got %d", c.Server.Port))
	}

	if !currencyCode.MatchString(c.Pricing.BaseCurrency) {
		errs = append(errs, fmt.Errorf("pricing.base_currency must be 3-5 letters, got %q", c.Pricing.BaseCurrency))
	}
	if !currencyCode.MatchString(c.Pricing.TargetCurrency) {
		errs = append(errs, fmt.Errorf("pricing.target_currency must be 3-5 letters, got %q", c.Pricing.TargetCurrency))
	}
	if c.Pricing.RefreshIntervalMs < 1000 {
		errs = append(errs, fmt.Errorf("pricing.refresh_interval_ms must be at least 1000, got %d", c.Pricing.RefreshIntervalMs))
	}
	if !rate.Valid(c.Pricing.FallbackRate) {
		errs = append(errs, fmt.Errorf("pricing.fallback_rate must be a positive finite number, got %v", c.Pricing.FallbackRate))
	}
	if len(c.Pricing.Sources) == 0 {
		errs = append(errs, fmt.Errorf("pricing.sources must not be empty"))
	}
	for _, s := range c.Pricing.Sources {
		if !slices.Contains(rate.KnownSources, s) {
			errs = append(errs, fmt.Errorf("pricing.sources: unknown source %q", s))
		}
	}
	if c.Pricing.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("pricing.history_limit must be positive, got %d", c.Pricing.HistoryLimit))
	}
	if c.Pricing.StaleAfterMinutes <= 0 || math.IsInf(c.Pricing.StaleAfterMinutes, 0) {
		errs = append(errs, fmt.Errorf("pricing.stale_after_minutes must be positive, got %v", c.Pricing.StaleAfterMinutes))
	}

	if c.Sources.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("sources.timeout_sec must be positive, got %d", c.Sources.TimeoutSec))
	}

	if c.Database.Enabled() {
		if c.Database.Port <= 0 {
			errs = append(errs, fmt.Errorf("database.port must be positive, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, fmt.Errorf("database.user is required"))
		}
		if c.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.name is required"))
		}
	}

	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		errs = append(errs, fmt.Errorf("kafka.topic is required when kafka.brokers is set (set RATEFEED_KAFKA_TOPIC)"))
	}

	if c.Worker.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency))
	}
	if c.Worker.MaxRetry < 0 {
		errs = append(errs, fmt.Errorf("worker.max_retry must be non-negative, got %d", c.Worker.MaxRetry))
	}
	if c.Worker.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("worker.timeout_sec must be positive, got %d", c.Worker.TimeoutSec))
	}
	if c.Worker.CoalesceSec < 0 {
		errs = append(errs, fmt.Errorf("worker.coalesce_sec must be non-negative, got %d", c.Worker.CoalesceSec))
	}

	if c.Cache.SourceTTLSec <= 0 {
		errs = append(errs, fmt.Errorf("cache.source_ttl_sec must be positive, got %d", c.Cache.SourceTTLSec))
	}
	if c.Cache.LatestSnapshotTTLSec <= 0 {
		errs = append(errs, fmt.Errorf("cache.latest_snapshot_ttl_sec must be positive, got %d", c.Cache.LatestSnapshotTTLSec))
	}

	return errors.Join(errs...)
}
