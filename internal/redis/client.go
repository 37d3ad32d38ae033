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

// ConnectionChannel is the pub/sub channel carrying lifecycle updates for one identity key.
func ConnectionChannel(key string) string {
	return fmt.Sprintf("connections:%s", key)
}

func ActivationLimitKey(externalIdentity string) string {
	return fmt.Sprintf("activation:%s", externalIdentity)
}

func ReminderKey(accountID, day string) string {
	return fmt.Sprintf("reminder:%s:%s", accountID, day)
}
