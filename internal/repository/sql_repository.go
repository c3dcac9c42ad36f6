package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqlRepository carries the helpers shared by every table-backed repository.
type sqlRepository struct {
	q      Querier
	table  string
	entity string
}

func newSQLRepository(q Querier, table, entity string) sqlRepository {
	return sqlRepository{q: q, table: table, entity: entity}
}

// existsByID checks the primary key of the repository's table.
func (r sqlRepository) existsByID(ctx context.Context, id any) (bool, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", r.table)
	if err := r.q.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", r.entity, err)
	}
	return count > 0, nil
}

// deleteByID removes one row and reports ErrNotFound when nothing matched.
// Dependent rows go through ON DELETE CASCADE.
func (r sqlRepository) deleteByID(ctx context.Context, id any) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.table)
	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", r.entity, err)
	}
	return r.expectOneRow(result, id)
}

func (r sqlRepository) expectOneRow(result sql.Result, id any) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return r.notFound(id)
	}
	return nil
}

func (r sqlRepository) notFound(id any) error {
	return fmt.Errorf("%s with ID %v: %w", r.entity, id, ErrNotFound)
}

// Helper function to check if an error is a "not found" error from the database
func isNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation reports whether err comes from a UNIQUE or PRIMARY KEY constraint.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// isForeignKeyViolation reports whether err comes from a FOREIGN KEY constraint.
func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// closeRows closes rows, keeping the first error seen.
func closeRows(rows *sql.Rows, err *error) {
	if closeErr := rows.Close(); closeErr != nil && *err == nil {
		*err = closeErr
	}
}
