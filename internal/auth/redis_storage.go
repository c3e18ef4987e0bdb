package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "apiclient:"

// RedisConfig describes the Redis connection used for token storage
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// RedisStorage keeps tokens in Redis so several processes can share one session
type RedisStorage struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStorage connects to Redis and verifies the connection
func NewRedisStorage(ctx context.Context, cfg RedisConfig) (*RedisStorage, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	return NewRedisStorageWithClient(client, cfg.Prefix), nil
}

// NewRedisStorageWithClient wraps an existing client
func NewRedisStorageWithClient(client redis.Cmdable, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStorage{client: client, prefix: prefix}
}

// Key returns the namespaced Redis key for a storage key
func (r *RedisStorage) Key(key string) string {
	return r.prefix + key
}

// Get returns a stored value
func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.Key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to read %s from redis", key)
	}
	return v, true, nil
}

// Set stores a value without expiry
func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.Key(key), value, 0).Err(); err != nil {
		return errors.Wrapf(err, "failed to write %s to redis", key)
	}
	return nil
}

// Delete removes values
func (r *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.Key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, "failed to delete tokens from redis")
	}
	return nil
}

// Close closes the underlying client when it owns one
func (r *RedisStorage) Close() error {
	if c, ok := r.client.(*redis.Client); ok {
		return c.Close()
	}
	return nil
}
