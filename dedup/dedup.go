// Package dedup remembers which provider events were already handled so a
// redelivered webhook is skipped before it reaches the store.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "webhook:event:"

type Deduper interface {
	// Claim reports true when the caller is the first to see eventID.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release forgets eventID so a later delivery is processed again.
	Release(ctx context.Context, eventID string) error
}

type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, keyPrefix+eventID, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

func (d *RedisDeduper) Release(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, keyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

// Nop claims every event. Used when no redis address is configured.
type Nop struct{}

func (Nop) Claim(context.Context, string) (bool, error) { return true, nil }
func (Nop) Release(context.Context, string) error       { return nil }
