// Package ratelimit is a token bucket kept in Redis, so that every server
// instance shares one budget per client.  The bucket state lives in a hash
// and is updated atomically by a Lua script.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-booking-server/internal/config"
)

var bucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// TokenBucket takes one token per request.  A nil *TokenBucket allows
// everything, which is how a server without Redis runs.
type TokenBucket struct {
	rdb redis.Scripter
	cfg config.RateLimitConfig
	now func() time.Time
}

// New returns a bucket backed by rdb, or nil when limiting is disabled.
func New(cfg config.RateLimitConfig, rdb redis.Scripter) *TokenBucket {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return &TokenBucket{rdb: rdb, cfg: cfg, now: time.Now}
}

// Capacity is the configured burst size.
func (b *TokenBucket) Capacity() int {
	if b == nil {
		return 0
	}
	return b.cfg.Capacity
}

// Allow takes a token for key.  On a Redis error the request is allowed and
// the error returned, so callers can log it and carry on.
func (b *TokenBucket) Allow(ctx context.Context, key string) (Decision, error) {
	if b == nil {
		return Decision{Allowed: true}, nil
	}
	vals, err := bucketScript.Run(ctx, b.rdb, []string{key}, b.args()...).Result()
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return Decision{Allowed: true}, fmt.Errorf("rate limit %s: unexpected script result %#v", key, vals)
	}
	return Decision{
		Allowed:    asInt64(arr[0]) == 1,
		Remaining:  asInt64(arr[1]),
		RetryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, nil
}

func (b *TokenBucket) args() []interface{} {
	return []interface{}{
		b.now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL / time.Second),
	}
}

// Key builds the bucket key for a client according to the configured
// strategy.  userID 0 stands for an anonymous client.
func (b *TokenBucket) Key(ip string, userID uint64) string {
	if b == nil {
		return ""
	}
	if ip == "" {
		ip = "unknown"
	}
	uid := "anon"
	if userID != 0 {
		uid = strconv.FormatUint(userID, 10)
	}
	parts := []string{b.cfg.Prefix}
	switch strings.ToLower(b.cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	default:
		parts = append(parts, "ip", ip, "user", uid)
	}
	return strings.Join(parts, ":")
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
