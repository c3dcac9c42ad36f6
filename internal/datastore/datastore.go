// Package datastore owns the SQLite connection: it opens the database, applies
// the schema migrations and runs units of work inside transactions.
package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/jbweber/homelab/labpool/internal/migrations"
)

type Datastore struct {
	DB *sql.DB
}

// New opens the database at dsn and runs migrations. The DSN must enable
// foreign keys (`_pragma=foreign_keys(1)`) because cascades rely on them
// and the pragma is per connection.
func New(dsn string) (*Datastore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite has a single writer. One pooled connection serializes access
	// in the driver instead of surfacing SQLITE_BUSY to callers, and keeps
	// shared in-memory databases alive for the lifetime of the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	ctx := context.Background()
	var fk int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read foreign_keys pragma: %w", err)
	}
	if fk != 1 {
		_ = db.Close()
		return nil, errors.New("foreign keys are disabled, add _pragma=foreign_keys(1) to the DSN")
	}

	if err := migrations.Default(db).RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Datastore{DB: db}, nil
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise. fn must do all of its reads and
// writes through tx.
func (ds *Datastore) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := ds.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (ds *Datastore) Ping(ctx context.Context) error {
	return ds.DB.PingContext(ctx)
}

// Close closes the underlying database.
func (ds *Datastore) Close() error {
	return ds.DB.Close()
}
