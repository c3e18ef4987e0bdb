// Package config loads client configuration from defaults, an optional YAML
// file and APICLIENT_* environment variables, in increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/eshaffer321/apiclient-go/internal/types"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of recognized environment variables. Nested keys
// use a double underscore: APICLIENT_LOG__LEVEL sets log.level.
const EnvPrefix = "APICLIENT_"

// Storage kinds
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// Config is the client configuration
type Config struct {
	BaseURL          string `koanf:"base_url" json:"base_url" yaml:"base_url"`
	TimeoutMs        int    `koanf:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`
	MaxRetryAttempts int    `koanf:"max_retry_attempts" json:"max_retry_attempts" yaml:"max_retry_attempts"`
	BaseRetryDelayMs int    `koanf:"base_retry_delay_ms" json:"base_retry_delay_ms" yaml:"base_retry_delay_ms"`
	MaxRetryDelayMs  int    `koanf:"max_retry_delay_ms" json:"max_retry_delay_ms" yaml:"max_retry_delay_ms"`
	RetryEnabled     bool   `koanf:"retry_enabled" json:"retry_enabled" yaml:"retry_enabled"`
	ClientVersion    string `koanf:"client_version" json:"client_version" yaml:"client_version"`

	Log       LogConfig       `koanf:"log" json:"log" yaml:"log"`
	Sentry    SentryConfig    `koanf:"sentry" json:"sentry" yaml:"sentry"`
	RateLimit RateLimitConfig `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	Storage   StorageConfig   `koanf:"storage" json:"storage" yaml:"storage"`
}

// LogConfig holds logging preferences
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// SentryConfig enables error tracking when DSN is set
type SentryConfig struct {
	DSN         string `koanf:"dsn" json:"dsn" yaml:"dsn"`
	Environment string `koanf:"environment" json:"environment" yaml:"environment"`
}

// RateLimitConfig limits outbound requests. RPS zero disables limiting.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps" json:"rps" yaml:"rps"`
	Burst int     `koanf:"burst" json:"burst" yaml:"burst"`
}

// StorageConfig selects where tokens are persisted
type StorageConfig struct {
	Kind  string      `koanf:"kind" json:"kind" yaml:"kind"`
	File  string      `koanf:"file" json:"file" yaml:"file"`
	Redis RedisConfig `koanf:"redis" json:"redis" yaml:"redis"`
}

// RedisConfig holds the Redis token storage connection
type RedisConfig struct {
	Addr     string `koanf:"addr" json:"addr" yaml:"addr"`
	Password string `koanf:"password" json:"password" yaml:"password"`
	DB       int    `koanf:"db" json:"db" yaml:"db"`
	Prefix   string `koanf:"prefix" json:"prefix" yaml:"prefix"`
}

// Load reads defaults, then the YAML file at path when path is non-empty,
// then environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	return finish(k)
}

// LoadBytes is Load with the YAML document given in memory
func LoadBytes(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return finish(k)
}

// Default returns the configuration produced by defaults alone
func Default() *Config {
	k := koanf.New(".")
	_ = loadDefaults(k)

	var cfg Config
	_ = k.Unmarshal("", &cfg)
	return &cfg
}

func finish(k *koanf.Koanf) (*Config, error) {
	// Load environment variables (highest priority)
	if err := k.Load(envprovider.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// envKey converts APICLIENT_LOG__LEVEL to log.level
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"base_url":            types.DefaultBaseURL,
		"timeout_ms":          int(types.DefaultTimeout / time.Millisecond),
		"max_retry_attempts":  types.DefaultMaxRetryAttempts,
		"base_retry_delay_ms": int(types.DefaultBaseRetryDelay / time.Millisecond),
		"max_retry_delay_ms":  0,
		"retry_enabled":       true,
		"client_version":      types.DefaultClientVersion,

		"log.level":  "info",
		"log.pretty": false,

		"sentry.environment": "production",

		"rate_limit.rps":   0,
		"rate_limit.burst": 1,

		"storage.kind":         StorageMemory,
		"storage.redis.prefix": "apiclient:",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// Validate checks value ranges and storage requirements
func Validate(cfg *Config) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if cfg.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must not be negative")
	}
	if cfg.MaxRetryAttempts < 0 {
		return fmt.Errorf("max_retry_attempts must not be negative")
	}
	if cfg.BaseRetryDelayMs < 0 || cfg.MaxRetryDelayMs < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if cfg.RateLimit.RPS < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}

	switch cfg.Storage.Kind {
	case StorageMemory:
	case StorageFile:
		if cfg.Storage.File == "" {
			return fmt.Errorf("storage.file is required for file storage")
		}
	case StorageRedis:
		if cfg.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for redis storage")
		}
	default:
		return fmt.Errorf("unknown storage.kind %q", cfg.Storage.Kind)
	}

	return nil
}

// Timeout returns the per-request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// RetryConfig returns the backoff settings
func (c *Config) RetryConfig() *types.RetryConfig {
	return &types.RetryConfig{
		Enabled:     c.RetryEnabled,
		MaxAttempts: c.MaxRetryAttempts,
		BaseDelay:   time.Duration(c.BaseRetryDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.MaxRetryDelayMs) * time.Millisecond,
	}
}
