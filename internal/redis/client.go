package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

// Wrap adapts an existing go-redis client.
func Wrap(client *redis.Client) *Client {
	return &Client{client}
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// UserEventsChannel is the pub/sub channel carrying realtime events for one user.
func UserEventsChannel(userID string) string {
	return fmt.Sprintf("events:user:%s", userID)
}

// ViewKey is the cache key of a rendered view path.
func ViewKey(path string) string {
	return fmt.Sprintf("view:%s", path)
}
