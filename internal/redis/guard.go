package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// OnceGuard claims a key at most once within its TTL.
type OnceGuard struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewOnceGuard(client redis.Cmdable, ttl time.Duration) *OnceGuard {
	return &OnceGuard{client: client, ttl: ttl}
}

// Claim returns true for the first caller only.
func (g *OnceGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, key, time.Now().Unix(), g.ttl).Result()
}

// Release drops a claim so a later sweep may retry.
func (g *OnceGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, key).Err()
}
