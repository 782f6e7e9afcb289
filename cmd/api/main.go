package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "shop_reviews/internal/adapters/http_server"
	"shop_reviews/internal/adapters/observability"
	redisad "shop_reviews/internal/adapters/redis"
	"shop_reviews/internal/app"
	"shop_reviews/internal/domain"
	"shop_reviews/internal/shared"
	"shop_reviews/internal/storage/sqlstore"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("api failed")
	}
	log.Info().Msg("API stopped")
}

func run(cfg shared.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
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
	log.Info().Str("driver", cfg.StoreDriver).Msg("database connection ok")

	// cache is optional
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, reads will fall through")
		}
		defer rc.Close()
		cache = rc
	}

	q := app.NewQueryService(st, cache, cfg.CacheTTL)
	cmd := app.NewCommandService(st, cache)

	// http
	srv := server.New(server.Options{RateRPS: cfg.RateRPS, RateBurst: cfg.RateBurst})
	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, C: cmd})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdown); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
