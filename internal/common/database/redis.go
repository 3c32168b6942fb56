// internal/common/database/redis.go
package database

import (
	"context"
	"time"

	"cakeshop-notifier/internal/common/config"
	apperrors "cakeshop-notifier/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb}, nil
}

// ConnectRedis opens a client and pings it. A client that fails the ping is
// closed before the error is returned.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	c, err := NewRedis(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return apperrors.NewCacheFailedError("ping", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// Underlying returns the go-redis client, or nil when c is nil.
func (c *RedisClient) Underlying() *redis.Client {
	if c == nil {
		return nil
	}
	return c.Client
}
