package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jia-app/venuepricing/internal/metrics"
)

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = errors.New("cache: key not found")

// Cache stores JSON-encoded values in Redis
type Cache struct {
	client *redis.Client
}

// NewCache connects to Redis and verifies the connection
func NewCache(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// NewCacheWithClient wraps an existing client
func NewCacheWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Client exposes the underlying client for other Redis consumers
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Ping checks the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Set stores value under key for the given expiration
func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	start := time.Now()
	err = c.client.Set(ctx, key, data, expiration).Err()
	metrics.RecordRedisOperation("set", status(err), time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Get decodes the value stored under key into dest
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	start := time.Now()
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordRedisOperation("get", "miss", time.Since(start))
		return ErrCacheMiss
	}
	metrics.RecordRedisOperation("get", status(err), time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to get key: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
