// Package cache keeps read-mostly catalog listings in Redis.  Seat
// availability is never cached: it changes with every booking and clients
// rely on it being current.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-booking-server/internal/config"
	"github.com/iliyamo/seat-booking-server/internal/model"
)

// Catalog caches the event list and showing lists.  A nil *Catalog calls
// the loader every time.
type Catalog struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

// NewCatalog returns a cache backed by rdb, or nil when caching is disabled.
func NewCatalog(cfg config.CacheConfig, rdb redis.Cmdable, log *slog.Logger) *Catalog {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Catalog{rdb: rdb, ttl: cfg.TTL, prefix: cfg.Prefix, log: log}
}

func (c *Catalog) eventsKey() string { return c.prefix + ":catalog:events" }

func (c *Catalog) showingsKey(eventID *uint64) string {
	if eventID == nil {
		return c.prefix + ":catalog:showings:all"
	}
	return c.prefix + ":catalog:showings:" + strconv.FormatUint(*eventID, 10)
}

// Events returns the cached event list, loading and storing it on a miss.
func (c *Catalog) Events(ctx context.Context, load func(context.Context) ([]model.Event, error)) ([]model.Event, error) {
	if c == nil {
		return load(ctx)
	}
	return fetch(ctx, c, c.eventsKey(), load)
}

// Showings returns the cached showing list for an event (or all showings
// when eventID is nil).
func (c *Catalog) Showings(ctx context.Context, eventID *uint64, load func(context.Context) ([]model.Showing, error)) ([]model.Showing, error) {
	if c == nil {
		return load(ctx)
	}
	return fetch(ctx, c, c.showingsKey(eventID), load)
}

// Invalidate drops the event list, the full showing list and the showing
// lists of the given events.
func (c *Catalog) Invalidate(ctx context.Context, eventIDs ...uint64) error {
	if c == nil {
		return nil
	}
	keys := []string{c.eventsKey(), c.showingsKey(nil)}
	for i := range eventIDs {
		keys = append(keys, c.showingsKey(&eventIDs[i]))
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// fetch serves key from Redis or falls back to load.  Redis failures are
// logged and never fail the request.
func fetch[T any](ctx context.Context, c *Catalog, key string, load func(context.Context) (T, error)) (T, error) {
	bs, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		jerr := json.Unmarshal(bs, &v)
		if jerr == nil {
			return v, nil
		}
		c.log.Warn("discarding undecodable cache entry", "key", key, "error", jerr)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("cache read failed", "key", key, "error", err)
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := c.rdb.SetEx(ctx, key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
	return v, nil
}
