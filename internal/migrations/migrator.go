package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

// Migration represents a database migration with up and down functions.
// Both run inside the transaction that records the migration.
type Migration struct {
	Version int64
	Name    string
	Up      func(context.Context, *sql.Tx) error
	Down    func(context.Context, *sql.Tx) error
}

// Migrator handles database migrations
type Migrator struct {
	db         *sql.DB
	migrations []Migration
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: []Migration{},
	}
}

// Default returns a migrator loaded with every schema migration.
func Default(db *sql.DB) *Migrator {
	m := NewMigrator(db)
	for _, migration := range GetInitialMigrations() {
		m.AddMigration(migration)
	}
	for _, migration := range GetIndexMigrations() {
		m.AddMigration(migration)
	}
	return m
}

// AddMigration adds a migration to the migrator
func (m *Migrator) AddMigration(migration Migration) {
	m.migrations = append(m.migrations, migration)
	// Sort migrations by version
	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
}

// RunMigrations runs all pending migrations
func (m *Migrator) RunMigrations(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range m.migrations {
		if migration.Version > currentVersion {
			if err := m.runMigration(ctx, migration); err != nil {
				return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
			}
		}
	}

	return nil
}

// Rollback reverts the most recently applied migration. It is a no-op when
// nothing has been applied.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if currentVersion == 0 {
		return nil
	}

	for _, migration := range m.migrations {
		if migration.Version != currentVersion {
			continue
		}
		if migration.Down == nil {
			return fmt.Errorf("migration %d (%s) has no down step", migration.Version, migration.Name)
		}
		return m.inTx(ctx, func(tx *sql.Tx) error {
			if err := migration.Down(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", migration.Version)
			return err
		})
	}

	return fmt.Errorf("applied migration %d is not registered", currentVersion)
}

// createMigrationsTable creates the migrations tracking table
func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// getCurrentVersion returns the current migration version
func (m *Migrator) getCurrentVersion(ctx context.Context) (int64, error) {
	var version int64
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// runMigration executes a single migration and records it in the same transaction
func (m *Migrator) runMigration(ctx context.Context, migration Migration) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		if migration.Up != nil {
			if err := migration.Up(ctx, tx); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", migration.Version, migration.Name)
		return err
	})
}

func (m *Migrator) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			// Nothing to do, the original error is already being returned
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// execAll runs each statement in order, stopping at the first failure.
func execAll(ctx context.Context, tx *sql.Tx, statements []string) error {
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetCurrentVersion returns the current migration version (public method)
func (m *Migrator) GetCurrentVersion(ctx context.Context) (int64, error) {
	return m.getCurrentVersion(ctx)
}

// GetMigrations returns all registered migrations
func (m *Migrator) GetMigrations() []Migration {
	return m.migrations
}
