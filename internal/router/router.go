// Package router registers the HTTP gateway routes.
package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/seat-booking-server/internal/handler"
	"github.com/iliyamo/seat-booking-server/internal/middleware"
	"github.com/iliyamo/seat-booking-server/internal/ratelimit"
)

// RegisterRoutes exposes the health check and the Prometheus scrape
// endpoint.  Neither requires authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterActions mounts the action endpoint.  The bearer token is optional
// there: actions that need a user are refused by the dispatcher, not by the
// router.  The limiter runs after the token is parsed so authenticated
// callers are keyed by user id.  Bodies share the TCP request size limit.
func RegisterActions(e *echo.Echo, gw *handler.Gateway, limiter *ratelimit.TokenBucket, log *slog.Logger) {
	g := e.Group("/v1",
		echomw.BodyLimit("1M"),
		middleware.OptionalJWT(gw.Secret),
		limiter.Middleware(middleware.UserID, log),
	)
	g.POST("/actions", gw.Actions)
}
