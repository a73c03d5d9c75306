package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// LockKey namespaces a dispatch lock name, e.g. "tguser_42".
func LockKey(name string) string {
	return fmt.Sprintf("lock:%s", name)
}

// RateLimitKey namespaces a sliding-window counter.
func RateLimitKey(name string) string {
	return fmt.Sprintf("ratelimit:%s", name)
}
