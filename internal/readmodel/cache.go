package readmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// versionTTL outlives any snapshot entry so a version counter never resets
// while an entry written under an older version is still readable.
const versionTTL = 24 * time.Hour

// Cache stores snapshots in Redis under a per-wishlist version.  Writers
// bump the version after committing; readers only ever look at the key of
// the version they read first, so a snapshot loaded before a commit but
// stored after it lands under a version nobody asks for any more.
//
// A nil *Cache, or one without a client, passes every load through.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	// OnResult, when set, is told whether a Load was served from Redis.
	OnResult func(hit bool)
}

// NewCache returns a cache.  rdb may be nil.
func NewCache(rdb *redis.Client, prefix string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *Cache) enabled() bool { return c != nil && c.rdb != nil }

func (c *Cache) versionKey(wishlistID string) string {
	return fmt.Sprintf("%s:ver:%s", c.prefix, wishlistID)
}

func (c *Cache) entryKey(wishlistID string, version int64) string {
	return fmt.Sprintf("%s:%s:v%d", c.prefix, wishlistID, version)
}

// Load returns the cached snapshot for wishlistID or calls load and caches
// its result.  Redis failures degrade to calling load.
func (c *Cache) Load(ctx context.Context, wishlistID string, load func(context.Context) (Snapshot, error)) (Snapshot, error) {
	if !c.enabled() {
		return load(ctx)
	}
	version, err := c.version(ctx, wishlistID)
	if err != nil {
		return load(ctx)
	}
	key := c.entryKey(wishlistID, version)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var snap Snapshot
		if json.Unmarshal(raw, &snap) == nil {
			c.report(true)
			return snap, nil
		}
	}
	c.report(false)
	snap, err := load(ctx)
	if err != nil {
		return snap, err
	}
	if raw, err := json.Marshal(snap); err == nil {
		_ = c.rdb.Set(ctx, key, raw, c.ttl).Err()
	}
	return snap, nil
}

// Invalidate moves the wishlist to a new version.
func (c *Cache) Invalidate(ctx context.Context, wishlistID string) error {
	if !c.enabled() {
		return nil
	}
	vk := c.versionKey(wishlistID)
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, vk)
	pipe.Expire(ctx, vk, versionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *Cache) version(ctx context.Context, wishlistID string) (int64, error) {
	s, err := c.rdb.Get(ctx, c.versionKey(wishlistID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}

func (c *Cache) report(hit bool) {
	if c.OnResult != nil {
		c.OnResult(hit)
	}
}
