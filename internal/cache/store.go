package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the key is absent from the backing store.
var ErrNotFound = errors.New("cache: key not found")

// Store is the backing key/value store for the response cache. An unavailable
// store degrades the middleware to bypass; it never surfaces to callers.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes a single key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// DeletePattern removes every key matching a glob pattern and returns
	// how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}

// RedisStore backs the response cache with Redis.
type RedisStore struct {
	client *redis.Client
}

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore creates a Redis-backed cache store.
// Parameters:
//   - cfg: Redis connection configuration.
// Returns:
//   - *RedisStore: initialized store (connection is lazy).
func NewRedisStore(cfg *RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: client}
}

// Ping verifies the store is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get returns the value for key, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores value under key with a TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a single key and reports whether it existed.
func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeletePattern removes every key matching a glob pattern using SCAN, so the
// server is never blocked the way KEYS would.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var removed int64
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, err
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, nil
}
