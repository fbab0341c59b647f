package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens, and initializes if needed, a SQLite registry at path.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*Registry, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=ON", path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("registry: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	r := New(db, SQLite)
	if err := r.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// OpenPostgres connects to a Postgres registry and initializes it if needed.
func OpenPostgres(ctx context.Context, url string) (*Registry, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("registry: open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: postgres ping failed: %w", err)
	}

	r := New(db, Postgres)
	if err := r.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Open opens the registry named by driver, "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*Registry, error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return OpenSQLite(ctx, dsn)
	case "postgres", "pgx":
		return OpenPostgres(ctx, dsn)
	}
	return nil, fmt.Errorf("registry: unknown driver %q", driver)
}
