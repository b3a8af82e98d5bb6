package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisClient defines the interface for Redis operations
type RedisClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Config holds rate limiting configuration
type Config struct {
	// Requests allowed per client within one window
	Limit  int
	Window time.Duration
	// KeyPrefix namespaces the counters in Redis
	KeyPrefix string
}

// DefaultConfig returns a default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		Limit:     120,
		Window:    time.Minute,
		KeyPrefix: "rate_limit",
	}
}

// RedisRateLimiter implements a fixed-window counter in Redis
type RedisRateLimiter struct {
	redis  RedisClient
	config Config
	logger *zap.Logger
}

// NewRedisRateLimiter creates a new Redis-based rate limiter
func NewRedisRateLimiter(redis RedisClient, config Config, logger *zap.Logger) *RedisRateLimiter {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rate_limit"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRateLimiter{
		redis:  redis,
		config: config,
		logger: logger,
	}
}

// Allow checks if a request is allowed based on the rate limit
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", r.config.KeyPrefix, key)

	count, err := r.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		r.logger.Error("Failed to increment rate limit counter",
			zap.Error(err),
			zap.String("key", redisKey))
		return false, fmt.Errorf("rate limit error: %w", err)
	}

	// Set expiration on first request
	if count == 1 {
		if err := r.redis.Expire(ctx, redisKey, r.config.Window).Err(); err != nil {
			r.logger.Error("Failed to set rate limit expiration",
				zap.Error(err),
				zap.String("key", redisKey))
		}
	}

	return count <= int64(r.config.Limit), nil
}
