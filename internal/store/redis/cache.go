// Package redis caches profile rows in Redis in front of another store.Backend.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkhub/internal/logger"
	"github.com/MrSnakeDoc/linkhub/internal/metrics"
	"github.com/MrSnakeDoc/linkhub/internal/store"
)

// DefaultCacheTTL is the default TTL for cached profile rows
const DefaultCacheTTL = 10 * time.Minute

// Cache is a read-through store.Backend decorator.
// Only SelectByUsername is cached. Writes go to the wrapped backend first, then
// bump the profile's write generation and drop the key. A miss fills the cache
// only if the generation it read before going to the backend is unchanged, so
// a read that raced a write never caches the older row.
// Redis failures are logged and never fail the call.
type Cache struct {
	next    store.Backend
	client  *redis.Client
	ttl     time.Duration
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewCache wraps next. A ttl <= 0 falls back to DefaultCacheTTL.
func NewCache(next store.Backend, client *redis.Client, ttl time.Duration, log logger.Logger, m *metrics.Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{next: next, client: client, ttl: ttl, log: log, metrics: m}
}

func (c *Cache) Name() string { return c.next.Name() }

func (c *Cache) SelectByUsername(ctx context.Context, username string) ([]store.Row, error) {
	if row, ok := c.get(ctx, username); ok {
		return []store.Row{row}, nil
	}

	gen, genOK := c.generation(ctx, username)
	rows, err := c.next.SelectByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	// Absence is not cached: a later insert would otherwise stay hidden for a TTL.
	if len(rows) == 1 && genOK {
		c.set(ctx, rows[0], gen)
	}
	return rows, nil
}

// SelectByUsernameFresh skips the cache and reads the wrapped backend.
func (c *Cache) SelectByUsernameFresh(ctx context.Context, username string) ([]store.Row, error) {
	return store.SelectFresh(ctx, c.next, username)
}

func (c *Cache) SelectByUserID(ctx context.Context, userID string) ([]store.Row, error) {
	return c.next.SelectByUserID(ctx, userID)
}

func (c *Cache) Insert(ctx context.Context, row store.Row) error {
	if err := c.next.Insert(ctx, row); err != nil {
		return err
	}
	c.written(ctx, row.Username)
	return nil
}

func (c *Cache) UpdateByUsername(ctx context.Context, username, userID string, patch store.Patch) error {
	err := c.next.UpdateByUsername(ctx, username, userID, patch)
	// A failed write may still have landed; drop the key either way.
	c.written(ctx, username)
	return err
}

func (c *Cache) Ping(ctx context.Context) error { return c.next.Ping(ctx) }

// Close closes the wrapped backend. The Redis client is owned by the caller.
func (c *Cache) Close() error { return c.next.Close() }

// Flush removes every cached profile row.
func (c *Cache) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, KeyPrefixProfile+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete cache key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush profile cache: %w", err)
	}
	return nil
}

func (c *Cache) get(ctx context.Context, username string) (store.Row, bool) {
	data, err := c.client.Get(ctx, ProfileKey(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.CacheLookup("miss")
		} else {
			c.metrics.CacheLookup("error")
			c.log.Warn("profile cache read failed",
				logger.String("username", username),
				logger.Error(err))
		}
		return store.Row{}, false
	}

	var row store.Row
	if err := json.Unmarshal(data, &row); err != nil {
		c.metrics.CacheLookup("error")
		c.log.Warn("dropping undecodable cache entry",
			logger.String("username", username),
			logger.Error(err))
		c.invalidate(ctx, username)
		return store.Row{}, false
	}
	c.metrics.CacheLookup("hit")
	return row, true
}

// generation returns the write generation of username. A missing key is
// generation "0". ok is false when Redis could not answer.
func (c *Cache) generation(ctx context.Context, username string) (string, bool) {
	gen, err := c.client.Get(ctx, ProfileGenKey(username)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		return "", false
	}
	return gen, true
}

// set caches row unless a write bumped the generation since gen was read.
func (c *Cache) set(ctx context.Context, row store.Row, gen string) {
	data, err := json.Marshal(row)
	if err != nil {
		c.log.Warn("failed to marshal profile for cache", logger.String("username", row.Username), logger.Error(err))
		return
	}

	genKey := ProfileGenKey(row.Username)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Result()
		if errors.Is(err, redis.Nil) {
			current, err = "0", nil
		}
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleRead
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, ProfileKey(row.Username), data, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
		c.log.Debug("skipping cache fill after concurrent write", logger.String("username", row.Username))
	default:
		c.log.Warn("profile cache write failed",
			logger.String("username", row.Username),
			logger.Error(err))
	}
}

var errStaleRead = errors.New("profile changed while reading")

// written bumps the generation of username and drops its cached row.
func (c *Cache) written(ctx context.Context, username string) {
	if err := c.client.Incr(ctx, ProfileGenKey(username)).Err(); err != nil {
		c.log.Warn("profile generation bump failed",
			logger.String("username", username),
			logger.Error(err))
	}
	c.invalidate(ctx, username)
}

func (c *Cache) invalidate(ctx context.Context, username string) {
	if err := c.client.Del(ctx, ProfileKey(username)).Err(); err != nil {
		c.log.Warn("profile cache invalidation failed",
			logger.String("username", username),
			logger.Error(err))
	}
}
