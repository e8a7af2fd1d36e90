package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds configuration for the Redis connection.
type ClientConfig struct {
	// Addr is the host:port of the Redis server.
	// Default: localhost:6379
	Addr string

	Password string
	DB       int

	// DialTimeout bounds connection establishment.
	// Default: 5s
	DialTimeout time.Duration
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *ClientConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
}

// NewClient creates a new Redis client and verifies the connection.
func NewClient(ctx context.Context, cfg ClientConfig) (*redis.Client, error) {
	cfg.ApplyDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return rdb, nil
}
