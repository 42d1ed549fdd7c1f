// Package redis backs the domain.PriceCache with Redis so supervision
// passes can reuse recently fetched market prices instead of hitting the
// venue for every open position. The whole section is optional: with no
// Redis address configured the bot reads prices straight from the venue.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds the connection parameters for the price cache backend.
type ClientConfig struct {
	// Addr is the host:port of the Redis instance.
	Addr     string
	Password string
	DB       int

	// PoolSize bounds concurrent connections. Supervision fans out one read
	// per open position, so this caps the burst per pass.
	PoolSize int

	// MaxRetries is the driver-level retry count for individual commands.
	MaxRetries int

	// TLSEnabled switches the connection to TLS (managed Redis providers).
	TLSEnabled bool
}

// Client owns the Redis connection shared by the cache types in this package.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection with a ping. A cache
// backend that cannot be reached at startup is a configuration error, not
// something to limp along without.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
