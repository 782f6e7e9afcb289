package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	StoreDriver string // mysql | sqlite
	MySQLDSN    string
	SQLitePath  string

	RedisAddr string // empty disables the projection cache
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	RateRPS   float64
	RateBurst int

	Fixtures      string // path or http(s) URL
	FixturesToken string
	FixturesRPS   int
	Workers       int
}

// Load reads the environment, after merging an optional .env file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg(".env not loaded")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not a number, using default")
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		LogLevel:      env("LOG_LEVEL", "info"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		MetricsAddr:   env("METRICS_ADDR", ""),
		StoreDriver:   env("STORE_DRIVER", "sqlite"),
		MySQLDSN:      env("MYSQL_DSN", "root:root@tcp(localhost:3306)/shop?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		SQLitePath:    env("SQLITE_PATH", "shop.db"),
		RedisAddr:     env("REDIS_ADDR", ""),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		RateRPS:       atof("RATE_LIMIT_RPS", 0),
		RateBurst:     atoi("RATE_LIMIT_BURST", 0),
		Fixtures:      env("FIXTURES", "fixtures.yaml"),
		FixturesToken: env("FIXTURES_TOKEN", ""),
		FixturesRPS:   atoi("FIXTURES_RPS", 5),
		Workers:       atoi("SEED_WORKERS", 8),
	}
	if c.StoreDriver != "mysql" && c.StoreDriver != "sqlite" {
		log.Warn().Str("driver", c.StoreDriver).Msg("unknown STORE_DRIVER, falling back to sqlite")
		c.StoreDriver = "sqlite"
	}
	return c
}

// DSN returns the data source name for the configured driver.
func (c Config) DSN() string {
	if c.StoreDriver == "mysql" {
		return c.MySQLDSN
	}
	return c.SQLitePath
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
