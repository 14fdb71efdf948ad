// Package config provides centralized configuration management for the
// pixelbridge pipeline service.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the master configuration struct for the pipeline service and
// its shared infrastructure.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PipelineConfig holds pipeline-specific configuration.
type PipelineConfig struct {
	Dedup     DedupConfig    `mapstructure:"dedup"`
	Trust     TrustConfig    `mapstructure:"trust"`
	Platforms PlatformConfig `mapstructure:"platforms"`
	IDVersion string         `mapstructure:"id_version"`
}

// DedupConfig holds the replay guard configuration.
type DedupConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
	// TTLByEventType overrides the default TTL per canonical event name.
	TTLByEventType map[string]time.Duration `mapstructure:"ttl_by_event_type"`
	// OnStoreError is "fail-open" (default) or "fail-closed".
	OnStoreError string        `mapstructure:"on_store_error"`
	ClaimTimeout time.Duration `mapstructure:"claim_timeout"`
}

// TrustConfig holds trust evaluation and consent settings.
type TrustConfig struct {
	// Strategy is the per-tenant default consent strategy:
	// "strict", "balanced", or "weak".
	Strategy       string   `mapstructure:"strategy"`
	StrictOrigin   bool     `mapstructure:"strict_origin"`
	AllowedDomains []string `mapstructure:"allowed_domains"`
	// MaxTimestampSkew is advisory only; skew beyond it is logged,
	// never trust-downgrading.
	MaxTimestampSkew time.Duration `mapstructure:"max_timestamp_skew"`
}

// PlatformConfig holds destination platform settings.
type PlatformConfig struct {
	// Enabled lists destination platforms events fan out to.
	Enabled []string `mapstructure:"enabled"`
	// CatalogPath optionally points at a YAML file overriding the
	// built-in per-platform mapping tables.
	CatalogPath string `mapstructure:"catalog_path"`
}

// ServerConfig holds HTTP server configuration (health and metrics only;
// event ingestion is a separate service).
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString returns a pgx-compatible connection string.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// NATSConfig holds NATS message broker configuration.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Enabled       bool          `mapstructure:"enabled"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	URL        string `mapstructure:"url"`
	Enabled    bool   `mapstructure:"enabled"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from $PIXELBRIDGE_CONFIG_DIR/config.yaml and
// environment variables. Environment variables override file values
// (PIPELINE_DEDUP_TTL overrides pipeline.dedup.ttl, and so on).
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	configDir := os.Getenv("PIXELBRIDGE_CONFIG_DIR")
	if configDir == "" {
		configDir = "/etc/pixelbridge"
	}

	configPath := fmt.Sprintf("%s/config.yaml", configDir)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
		// Config file not found - continue with defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Pipeline defaults
	v.SetDefault("pipeline.id_version", "v2")
	v.SetDefault("pipeline.dedup.ttl", "24h")
	v.SetDefault("pipeline.dedup.on_store_error", "fail-open")
	v.SetDefault("pipeline.dedup.claim_timeout", "2s")
	v.SetDefault("pipeline.trust.strategy", "balanced")
	v.SetDefault("pipeline.trust.strict_origin", false)
	v.SetDefault("pipeline.trust.max_timestamp_skew", "72h")
	v.SetDefault("pipeline.platforms.enabled", []string{"google", "meta", "tiktok", "pinterest"})
	v.SetDefault("pipeline.platforms.catalog_path", "")

	// Server defaults
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	// Database defaults
	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "pixelbridge")
	v.SetDefault("database.postgres.user", "pixelbridge")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")

	// NATS defaults
	v.SetDefault("nats.url", "nats://nats:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	// Redis defaults
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
