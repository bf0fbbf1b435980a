package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers recently seen payloads. It is a fast path only; the
// payment guard is what makes settlement idempotent.
type Deduper interface {
	// Seen marks key and reports whether it was already marked.
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, "webhook:seen:"+key, 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	return d.client.Del(ctx, "webhook:seen:"+key).Err()
}

// noDedup is used when Redis is not configured.
type noDedup struct{}

func (noDedup) Seen(ctx context.Context, key string) (bool, error) { return false, nil }
func (noDedup) Forget(ctx context.Context, key string) error      { return nil }

func payloadKey(provider string, body []byte) string {
	sum := sha256.Sum256(body)
	return provider + ":" + hex.EncodeToString(sum[:])
}
