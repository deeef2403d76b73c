// Package sqlite implements the credential store on SQLite. It owns every
// durable entity: clients, users, authorization codes, token records and
// sessions.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mwufi/ara-auth/clients"
	"github.com/mwufi/ara-auth/sessions"
	"github.com/mwufi/ara-auth/token"
	"github.com/mwufi/ara-auth/users"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage is the SQLite-backed credential store. One Storage value
// implements every repository interface in the module.
type Storage struct {
	db *sql.DB
}

var (
	_ clients.Repo   = (*Storage)(nil)
	_ users.Repo     = (*Storage)(nil)
	_ token.CodeRepo = (*Storage)(nil)
	_ token.Repo     = (*Storage)(nil)
	_ sessions.Repo  = (*Storage)(nil)
)

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite allows a single writer; funneling all access through one
	// connection also serializes the read-then-delete transactions that
	// single-use codes and refresh rotation rely on.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	storage := &Storage{db: db}
	if err := storage.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) runMigrations() error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect failed: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

// DB returns the underlying database connection for testing purposes.
func (s *Storage) DB() *sql.DB {
	return s.db
}
