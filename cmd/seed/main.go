// Command seed creates the schema and, when the catalog is empty, a sample
// catalog with the user testuser/password.  Database settings come from
// the same environment as the server; flags override the sqlite path and
// driver.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/iliyamo/seat-booking-server/internal/cache"
	"github.com/iliyamo/seat-booking-server/internal/config"
	"github.com/iliyamo/seat-booking-server/internal/database"
	"github.com/iliyamo/seat-booking-server/internal/repository"
	"github.com/iliyamo/seat-booking-server/internal/seed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flags.StringVar(&cfg.DB.Driver, "driver", cfg.DB.Driver, "database driver (sqlite3 or mysql)")
	flags.StringVar(&cfg.DB.Path, "db", cfg.DB.Path, "sqlite database file")
	schemaOnly := flags.Bool("schema-only", false, "create tables and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, dialect, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, dialect); err != nil {
		return err
	}
	logger.Info("schema ready", "driver", string(dialect))
	if *schemaOnly {
		return nil
	}

	store := repository.NewStore(db, dialect, cfg.BcryptCost)
	res, err := seed.Sample(ctx, store, time.Now())
	if err != nil {
		return err
	}
	if len(res.Events) == 0 {
		logger.Info("catalog already present, nothing to do")
		return nil
	}
	logger.Info("sample data created", "events", len(res.Events), "showings", len(res.Showings), "user_id", res.UserID)

	// A running server may have cached the empty catalog.
	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		logger.Warn("redis unavailable, cached catalog not invalidated", "error", err)
		return nil
	}
	if rdb == nil {
		return nil
	}
	defer rdb.Close()
	ids := make([]uint64, len(res.Events))
	for i, ev := range res.Events {
		ids[i] = ev.ID
	}
	if err := cache.NewCatalog(config.LoadCacheConfig(), rdb, logger).Invalidate(ctx, ids...); err != nil {
		logger.Warn("invalidate catalog cache", "error", err)
	}
	return nil
}
