package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"shop_reviews/internal/adapters/fixtures"
	"shop_reviews/internal/adapters/observability"
	"shop_reviews/internal/app"
	"shop_reviews/internal/shared"
	"shop_reviews/internal/storage/sqlstore"
)

func main() {
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("fixtures", cfg.Fixtures).
		Str("driver", cfg.StoreDriver).
		Int("workers", cfg.Workers).
		Msg("seeder starting")

	if err := run(context.Background(), cfg); err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
	log.Info().Msg("seeding completed")
}

func run(ctx context.Context, cfg shared.Config) error {
	dsn := cfg.DSN()
	if cfg.StoreDriver == sqlstore.SQLite.Name {
		dsn = sqlstore.SQLiteDSN(dsn)
	}
	st, err := sqlstore.Open(cfg.StoreDriver, dsn)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer st.Close()
	if err := st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema setup: %w", err)
	}

	fx, err := fixtures.Load(ctx, fixtures.NewClient(cfg.FixturesToken, cfg.FixturesRPS), cfg.Fixtures)
	if err != nil {
		return err
	}

	sd := app.NewSeeder(st)
	ids, err := sd.SeedItems(ctx, fx.Items)
	if err != nil {
		return err
	}
	log.Info().Int("items", len(ids)).Msg("items seeded")

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)

	for _, cf := range fx.Customers {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return fmt.Errorf("semaphore acquire: %w", err)
		}

		wg.Add(1)
		go func(f app.CustomerFixture) {
			defer wg.Done()
			defer sem.Release(1)

			c, err := sd.SeedCustomer(ctx, f, ids)
			if err != nil {
				failed.Add(1)
				log.Warn().Str("customer", f.Name).Err(err).Msg("seed failed")
				return
			}
			log.Info().Int64("id", *c.ID).Int("reviews", len(f.Reviews)).Msg("customer seeded")
		}(cf)
	}

	wg.Wait()
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d customers failed", n, len(fx.Customers))
	}
	log.Info().Int("customers", len(fx.Customers)).Msg("customers seeded")
	return nil
}
