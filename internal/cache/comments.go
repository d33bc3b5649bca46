package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"commentflow/internal/model"
)

const (
	// PagePrefix is the key prefix for cached listing pages. Invalidation
	// always covers the whole prefix.
	PagePrefix = "comments:"

	// PageTTL is the TTL for a cached listing page (5 minutes)
	PageTTL = 300 * time.Second

	// invalidateBatch bounds how many keys one DEL covers during a sweep
	invalidateBatch = 100
)

// CommentCache is a read-through cache for serialized listing pages.
// Callers treat any error as a miss; the cache is never authoritative.
type CommentCache interface {
	// GetPage returns the cached payload for key. ok=false on miss.
	GetPage(ctx context.Context, key string) (payload []byte, ok bool, err error)

	// SetPage stores a serialized page under key with the fixed TTL.
	SetPage(ctx context.Context, key string, payload []byte) error

	// InvalidateAll deletes every cached listing page. There is no finer
	// invalidation granularity: any mutation clears the whole namespace.
	InvalidateAll(ctx context.Context) error
}

// PageKey builds the cache key for one listing page:
// comments:<parent|root>:<sort>:<page>:<size>
func PageKey(parentID *uuid.UUID, sort model.SortMode, page, pageSize int) string {
	scope := "root"
	if parentID != nil {
		scope = parentID.String()
	}
	return fmt.Sprintf("%s%s:%s:%d:%d", PagePrefix, scope, sort, page, pageSize)
}

// RedisCommentCache implements CommentCache on a shared Redis client.
type RedisCommentCache struct {
	client *redis.Client
}

// NewCommentCache creates a CommentCache backed by Redis.
func NewCommentCache(client *redis.Client) CommentCache {
	return &RedisCommentCache{client: client}
}

func (c *RedisCommentCache) GetPage(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		log.Printf("[CommentCache] GetPage MISS: key=%s", key)
		return nil, false, nil
	}
	if err != nil {
		log.Printf("[CommentCache] GetPage FAILED: key=%s err=%v", key, err)
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	log.Printf("[CommentCache] GetPage HIT: key=%s bytes=%d", key, len(payload))
	return payload, true, nil
}

func (c *RedisCommentCache) SetPage(ctx context.Context, key string, payload []byte) error {
	if err := c.client.Set(ctx, key, payload, PageTTL).Err(); err != nil {
		log.Printf("[CommentCache] SetPage FAILED: key=%s err=%v", key, err)
		return fmt.Errorf("cache set: %w", err)
	}

	log.Printf("[CommentCache] SetPage OK: key=%s bytes=%d ttl=%v", key, len(payload), PageTTL)
	return nil
}

// InvalidateAll sweeps the listing namespace with SCAN and deletes matches
// in batches. SCAN instead of KEYS keeps Redis responsive while sweeping.
func (c *RedisCommentCache) InvalidateAll(ctx context.Context) error {
	startTime := time.Now()
	deleted := 0

	iter := c.client.Scan(ctx, 0, PagePrefix+"*", int64(invalidateBatch)).Iterator()
	batch := make([]string, 0, invalidateBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return err
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= invalidateBatch {
			if err := flush(); err != nil {
				log.Printf("[CommentCache] InvalidateAll FAILED: err=%v", err)
				return fmt.Errorf("cache invalidate: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("[CommentCache] InvalidateAll FAILED: scan err=%v", err)
		return fmt.Errorf("cache invalidate scan: %w", err)
	}
	if err := flush(); err != nil {
		log.Printf("[CommentCache] InvalidateAll FAILED: err=%v", err)
		return fmt.Errorf("cache invalidate: %w", err)
	}

	log.Printf("[CommentCache] InvalidateAll OK: deleted=%d duration=%v", deleted, time.Since(startTime))
	return nil
}
