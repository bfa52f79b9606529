package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Config holds Redis configuration
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Client wraps redis.Client
type Client struct {
	*redis.Client
	log zerolog.Logger
}

// New connects and pings the server.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	log = log.With().Str("component", "redis").Logger()
	addr := cfg.Addr()
	log.Info().Str("addr", addr).Msg("connecting to redis")

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "connect to redis at %s", addr)
	}

	log.Info().Str("addr", addr).Msg("connected to redis")
	return &Client{Client: client, log: log}, nil
}

// Close closes the Redis client connection
func (c *Client) Close() error {
	c.log.Info().Msg("closing redis connection")
	return c.Client.Close()
}

// HealthCheck performs a health check on the Redis connection
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
