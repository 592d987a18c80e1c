// Package sqlite implements storage.Store on a local SQLite database using
// the CGO-free modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kvarga/wheelbook/pkg/types"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB

	// attachmentsDir is the flat directory attachment paths are relative
	// to; empty when attachment handling is disabled.
	attachmentsDir string
}

// NewStore opens (or creates) a SQLite logbook database, configures WAL
// mode, and ensures the schema and built-in categories exist.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors; WAL mode lets readers
	// proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure database: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := s.seedCategories(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed categories: %w", err)
	}

	return s, nil
}

// seedCategories inserts the built-in categories on first run.
func (s *Store) seedCategories(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, c := range types.BuiltinCategories() {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO categories (name, icon, color, builtin) VALUES (?, ?, ?, 1)",
			c.Name, c.Icon, c.Color)
		if err != nil {
			return err
		}
	}
	return nil
}

// DB exposes the underlying connection for read-only aggregate queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// inTx runs fn inside a transaction, committing on nil and rolling back on
// error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
