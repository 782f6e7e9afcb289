package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"shop_reviews/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullStr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}
func nullF64(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}
func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	i := n.Int64
	return &i
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, d Dialect) *Store { return &Store{db: db, dialect: d} }

// Open connects with the named driver ("mysql" or "sqlite") and pings.
func Open(driver, dsn string) (*Store, error) {
	var d Dialect
	switch driver {
	case MySQL.Name:
		d = MySQL
	case SQLite.Name:
		d = SQLite
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.Name == SQLite.Name {
		// one connection: in-memory databases are per-connection and
		// sqlite serializes writers anyway
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(db, d), nil
}

// SQLiteDSN builds a modernc DSN with foreign keys enforced.
func SQLiteDSN(path string) string {
	if path == "" || path == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// EnsureSchema creates missing tables; existing ones are left untouched.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema (%s): %w", s.dialect.Name, err)
		}
	}
	log.Debug().Str("dialect", s.dialect.Name).Msg("schema ok")
	return nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Session() domain.Session { return newSession(s.db) }
