package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

const (
	cacheKeyPrefix       = "knowledge:chunks:"
	cacheLoadedKeyPrefix = "knowledge:loaded:"
)

// CachedReader serves chunk lists from Redis, loading from the underlying
// Reader on a miss. Redis failures fall through to the source.
type CachedReader struct {
	source Reader
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCachedReader(source Reader, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedReader {
	if source == nil {
		panic("knowledge: source reader cannot be nil")
	}
	if client == nil {
		panic("knowledge: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedReader{source: source, client: client, ttl: ttl, logger: logger}
}

func (c *CachedReader) ListChunks(ctx context.Context, coachID string) ([]string, error) {
	chunks, hit, err := c.lookup(ctx, coachID)
	if err != nil {
		c.logger.Warn("knowledge cache read failed", "coach_id", coachID, "error", err)
	} else if hit {
		return chunks, nil
	}

	chunks, err = c.source.ListChunks(ctx, coachID)
	if err != nil {
		return nil, err
	}
	if err := c.store(ctx, coachID, chunks); err != nil {
		c.logger.Warn("knowledge cache write failed", "coach_id", coachID, "error", err)
	}
	return chunks, nil
}

// Invalidate drops the cached corpus for coachID.
func (c *CachedReader) Invalidate(ctx context.Context, coachID string) error {
	if err := c.client.Del(ctx, cacheKey(coachID), loadedKey(coachID)).Err(); err != nil {
		return fmt.Errorf("knowledge: invalidate cache: %w", err)
	}
	return nil
}

func (c *CachedReader) lookup(ctx context.Context, coachID string) ([]string, bool, error) {
	pipe := c.client.Pipeline()
	loaded := pipe.Exists(ctx, loadedKey(coachID))
	docs := pipe.LRange(ctx, cacheKey(coachID), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, false, err
	}
	if loaded.Val() == 0 {
		return nil, false, nil
	}
	return docs.Val(), true, nil
}

func (c *CachedReader) store(ctx context.Context, coachID string, chunks []string) error {
	key := cacheKey(coachID)
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(chunks) > 0 {
		args := make([]interface{}, len(chunks))
		for i, chunk := range chunks {
			args[i] = chunk
		}
		pipe.RPush(ctx, key, args...)
		pipe.Expire(ctx, key, c.ttl)
	}
	pipe.Set(ctx, loadedKey(coachID), "1", c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func cacheKey(coachID string) string {
	return cacheKeyPrefix + coachID
}

func loadedKey(coachID string) string {
	return cacheLoadedKeyPrefix + coachID
}
