package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrMiss is returned when a key does not exist in the cache.
var ErrMiss = errors.New("cache: key not found")

// Cache interface defines the shared key/value store operations the
// workers depend on. Values are opaque bytes; TTL of zero means no expiry.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
	Health(ctx context.Context) error
	Close() error
}

// RedisCache implements Cache using Redis
type RedisCache struct {
	client *redis.Client
}

// Config represents cache configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisCache creates a new Redis cache instance. The connection is
// attempted up to five times with exponential backoff.
func NewRedisCache(ctx context.Context, config Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	var err error
	for attempt := 0; attempt < 5; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<attempt) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Set stores a value in the cache
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := r.client.Set(ctx, key, value, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Get retrieves a value from the cache
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}
	return data, nil
}

// Delete removes a key from the cache, reporting whether it existed
func (r *RedisCache) Delete(ctx context.Context, key string) (bool, error) {
	removed, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete cache: %w", err)
	}
	return removed > 0, nil
}

// Health checks cache health
func (r *RedisCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (r *RedisCache) Close() error {
	return r.client.Close()
}
