package instagram

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeTTL = 24 * time.Hour

// Deduper reports whether a message id is seen for the first time.
type Deduper interface {
	FirstSeen(ctx context.Context, messageID string) (bool, error)
}

// RedisDeduper marks message ids in Redis so Meta redeliveries are ignored.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	if client == nil {
		panic("instagram: redis client cannot be nil")
	}
	return &RedisDeduper{client: client, ttl: dedupeTTL}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, messageID string) (bool, error) {
	return d.client.SetNX(ctx, "instagram:mid:"+messageID, 1, d.ttl).Result()
}
