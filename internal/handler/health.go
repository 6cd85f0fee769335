// Package handler turns protocol requests into store operations.  The
// Dispatcher serves both the TCP listener and the HTTP gateway; the echo
// handlers in this package adapt it to HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is anything whose liveness can be checked, typically the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health answers "ok" while the database responds to a ping and 503
// otherwise, so load balancers stop routing to an instance that lost its
// store.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			return c.String(http.StatusServiceUnavailable, "unavailable")
		}
		return c.String(http.StatusOK, "ok")
	}
}
