package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-booking-server/internal/protocol"
)

// Middleware limits gateway requests with the same buckets the TCP listener
// uses.  userID returns the authenticated caller or 0.  A nil bucket yields
// a pass-through middleware.
func (b *TokenBucket) Middleware(userID func(echo.Context) uint64, log *slog.Logger) echo.MiddlewareFunc {
	if b == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var uid uint64
			if userID != nil {
				uid = userID(c)
			}
			key := b.Key(c.RealIP(), uid)
			d, err := b.Allow(c.Request().Context(), key)
			if err != nil {
				log.Warn("rate limiter unavailable", "key", key, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(b.cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests,
					protocol.RateLimited().Response().With("retry_after", secs))
			}
			return next(c)
		}
	}
}
