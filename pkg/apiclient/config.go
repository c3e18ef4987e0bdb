package apiclient

import (
	"context"

	"github.com/eshaffer321/apiclient-go/internal/auth"
	"github.com/eshaffer321/apiclient-go/pkg/config"
	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// NewClientFromConfig builds a client from loaded configuration. ctx bounds
// connecting to remote token storage.
func NewClientFromConfig(ctx context.Context, cfg *config.Config, logger Logger) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	storage, err := NewStorageFromConfig(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	opts := &ClientOptions{
		BaseURL:       cfg.BaseURL,
		Timeout:       cfg.Timeout(),
		ClientVersion: cfg.ClientVersion,
		TokenStorage:  storage,
		Logger:        logger,
		RetryConfig:   cfg.RetryConfig(),
		RateLimiter:   NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}

	if cfg.Sentry.DSN != "" {
		opts.SentryOptions = &sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}
	}

	return NewClient(opts)
}

// NewStorageFromConfig opens the configured token storage
func NewStorageFromConfig(ctx context.Context, cfg config.StorageConfig) (TokenStorage, error) {
	switch cfg.Kind {
	case "", config.StorageMemory:
		return auth.NewMemoryStorage(), nil
	case config.StorageFile:
		return auth.NewFileStorage(cfg.File), nil
	case config.StorageRedis:
		storage, err := auth.NewRedisStorage(ctx, auth.RedisConfig{
			Address:  cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return storage, nil
	default:
		return nil, errors.Errorf("unknown storage kind %q", cfg.Kind)
	}
}

// NewRateLimiter returns a token bucket limiter, or nil when rps is not positive
func NewRateLimiter(rps float64, burst int) RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
