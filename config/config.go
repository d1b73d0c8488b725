package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// MigrationURL returns the DSN in the scheme golang-migrate's pgx/v5 driver expects.
func (d DatabaseConfig) MigrationURL() string {
	return "pgx5" + strings.TrimPrefix(d.DSN(), "postgres")
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig configures bearer token validation against the remote key set.
type AuthConfig struct {
	JWKSURL                string        `mapstructure:"jwks_url"`
	Issuer                 string        `mapstructure:"issuer"`
	Audience               string        `mapstructure:"audience"`
	JWKSCacheTTL           time.Duration `mapstructure:"jwks_cache_ttl"`
	JWKSFetchTimeout       time.Duration `mapstructure:"jwks_fetch_timeout"`
	JWKSMinRefreshInterval time.Duration `mapstructure:"jwks_min_refresh_interval"`
	Leeway                 time.Duration `mapstructure:"leeway"` // clock skew allowed on exp/nbf
}

// TierConfig is one rate limit policy row.
type TierConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int64         `mapstructure:"max_requests"`
}

type RateLimitConfig struct {
	Store         string                `mapstructure:"store"` // memory, redis
	SweepInterval time.Duration         `mapstructure:"sweep_interval"`
	TierCacheTTL  time.Duration         `mapstructure:"tier_cache_ttl"`
	Tiers         map[string]TierConfig `mapstructure:"tiers"`
}

type WebhookConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	TestTimeout time.Duration `mapstructure:"test_timeout"` // bounds POST /webhooks/:id/test
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	UserAgent   string        `mapstructure:"user_agent"`
}

type EncryptionConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex key for webhook secrets at rest
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from .env, file and environment variables.
// Environment variables override file values. Prefix: SURVEYAPI_.
// Nested keys use underscore: SURVEYAPI_AUTH_JWKS_URL, SURVEYAPI_RATELIMIT_STORE, etc.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SURVEYAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "surveys")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwks_url", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.jwks_cache_ttl", "15m")
	v.SetDefault("auth.jwks_fetch_timeout", "5s")
	v.SetDefault("auth.jwks_min_refresh_interval", "10s")
	v.SetDefault("auth.leeway", "30s")

	v.SetDefault("ratelimit.store", "memory")
	v.SetDefault("ratelimit.sweep_interval", "1m")
	v.SetDefault("ratelimit.tier_cache_ttl", "5m")
	v.SetDefault("ratelimit.tiers.free.window", "1h")
	v.SetDefault("ratelimit.tiers.free.max_requests", 100)
	v.SetDefault("ratelimit.tiers.pro.window", "1h")
	v.SetDefault("ratelimit.tiers.pro.max_requests", 1000)
	v.SetDefault("ratelimit.tiers.enterprise.window", "1h")
	v.SetDefault("ratelimit.tiers.enterprise.max_requests", 10000)

	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.test_timeout", "25s")
	v.SetDefault("webhook.max_attempts", 3)
	v.SetDefault("webhook.base_backoff", "2s")
	v.SetDefault("webhook.workers", 4)
	v.SetDefault("webhook.queue_size", 1024)
	v.SetDefault("webhook.user_agent", "SurveyAPI-Webhooks/1.0")

	v.SetDefault("encryption.key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWKSURL == "" {
		errs = append(errs, errors.New("auth.jwks_url is required"))
	}
	if c.Auth.Issuer == "" {
		errs = append(errs, errors.New("auth.issuer is required"))
	}
	if c.Auth.Audience == "" {
		errs = append(errs, errors.New("auth.audience is required"))
	}
	if c.Encryption.Key == "" {
		errs = append(errs, errors.New("encryption.key is required"))
	}
	switch c.RateLimit.Store {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("ratelimit.store must be memory or redis, got %q", c.RateLimit.Store))
	}
	if _, ok := c.RateLimit.Tiers["free"]; !ok {
		errs = append(errs, errors.New("ratelimit.tiers.free is required"))
	}
	for name, t := range c.RateLimit.Tiers {
		if t.Window <= 0 || t.MaxRequests <= 0 {
			errs = append(errs, fmt.Errorf("ratelimit.tiers.%s needs a positive window and max_requests", name))
		}
	}
	if c.Webhook.MaxAttempts < 1 {
		errs = append(errs, errors.New("webhook.max_attempts must be at least 1"))
	}
	if c.Webhook.Workers < 1 {
		errs = append(errs, errors.New("webhook.workers must be at least 1"))
	}
	if c.Webhook.TestTimeout < c.Webhook.Timeout {
		errs = append(errs, errors.New("webhook.test_timeout must not be shorter than webhook.timeout"))
	}
	if c.Server.WriteTimeout > 0 && c.Webhook.TestTimeout >= c.Server.WriteTimeout {
		errs = append(errs, errors.New("webhook.test_timeout must be shorter than server.write_timeout"))
	}
	return errors.Join(errs...)
}
