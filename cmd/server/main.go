// Command server runs the seat booking service: the line protocol listener
// and, when HTTP_ADDR is set, the HTTP gateway with health and metrics.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/seat-booking-server/internal/cache"
	"github.com/iliyamo/seat-booking-server/internal/config"
	"github.com/iliyamo/seat-booking-server/internal/database"
	"github.com/iliyamo/seat-booking-server/internal/handler"
	"github.com/iliyamo/seat-booking-server/internal/queue"
	"github.com/iliyamo/seat-booking-server/internal/ratelimit"
	"github.com/iliyamo/seat-booking-server/internal/repository"
	"github.com/iliyamo/seat-booking-server/internal/router"
	"github.com/iliyamo/seat-booking-server/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := newLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := database.Open(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, dialect); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	store := repository.NewStore(db, dialect, cfg.BcryptCost)

	// Redis is optional: without it the catalog is read from the store on
	// every request and nothing is rate limited.
	var (
		catalog *cache.Catalog
		limiter *ratelimit.TokenBucket
	)
	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	switch {
	case err != nil:
		logger.Warn("redis unavailable, running without cache and rate limiting", "error", err)
	case rdb != nil:
		defer rdb.Close()
		catalog = cache.NewCatalog(config.LoadCacheConfig(), rdb, logger)
		limiter = ratelimit.New(config.LoadRateLimitConfig(), rdb)
	}

	var events queue.Publisher = queue.Noop{}
	if cfg.AMQPURL != "" {
		amqpPub := queue.NewAMQPPublisher(cfg.AMQPURL)
		async := queue.NewAsync(amqpPub, 1024, logger)
		defer amqpPub.Close()
		defer async.Close()
		events = async

		if cfg.LogConsumer {
			bl := queue.NewBookingLog(queue.DefaultLogPath)
			go func() {
				if err := queue.StartBookingConsumer(ctx, cfg.AMQPURL, bl, logger); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("booking consumer stopped", "error", err)
				}
			}()
		}
	}

	dispatcher := handler.NewDispatcher(store, catalog, events, logger)

	if cfg.HTTPAddr != "" {
		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		e.Use(echomw.Recover())
		router.RegisterRoutes(e, store)
		router.RegisterActions(e, handler.NewGateway(dispatcher, cfg.JWTSecret, cfg.AccessTTLMin, logger), limiter, logger)

		go func() {
			logger.Info("http gateway listening", "addr", cfg.HTTPAddr)
			if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http gateway stopped", "error", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = e.Shutdown(shutdownCtx)
		}()
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.ListenAddr, err)
	}
	srv := server.New(dispatcher, limiter, cfg.IdleTimeout, logger)
	logger.Info("starting", "env", cfg.Env, "db", string(dialect))
	if err := srv.Serve(ctx, ln); err != nil {
		logger.Error("listener failed", "error", err)
	}
	logger.Info("shut down")
}

// newLogger logs text in development and JSON elsewhere.  LOG_LEVEL=debug
// enables debug records.
func newLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if os.Getenv("LOG_LEVEL") == "debug" {
		opts.Level = slog.LevelDebug
	}
	var h slog.Handler
	if env == "dev" {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
