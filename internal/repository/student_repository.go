package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jbweber/homelab/labpool/internal/domain"
)

// StudentRepository defines domain-specific operations for students
type StudentRepository interface {
	Repository[domain.Student, string]
	FindByIDs(ctx context.Context, ids []string) ([]domain.Student, error)
	FindAvailable(ctx context.Context, courseID int64) ([]domain.Student, error)
}

// studentRepositoryImpl implements StudentRepository
type studentRepositoryImpl struct {
	sqlRepository
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(q Querier) StudentRepository {
	return &studentRepositoryImpl{sqlRepository: newSQLRepository(q, "students", "student")}
}

const selectStudent = "SELECT s.id, s.first_name, s.last_name, s.email FROM students s"

// Save creates a student or updates the one with the same id
func (r *studentRepositoryImpl) Save(ctx context.Context, student domain.Student) (domain.Student, error) {
	if strings.TrimSpace(student.ID) == "" {
		return domain.Student{}, fmt.Errorf("student id is required: %w", ErrInvalidEntity)
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO students (id, first_name, last_name, email) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET first_name = excluded.first_name, last_name = excluded.last_name, email = excluded.email`,
		student.ID, student.FirstName, student.LastName, student.Email)
	if err != nil {
		return domain.Student{}, fmt.Errorf("failed to save student: %w", err)
	}
	return student, nil
}

// FindByID retrieves a student by its ID
func (r *studentRepositoryImpl) FindByID(ctx context.Context, id string) (domain.Student, error) {
	var s domain.Student
	err := r.q.QueryRowContext(ctx, selectStudent+" WHERE s.id = ?", id).Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email)
	if err != nil {
		if isNotFoundError(err) {
			return domain.Student{}, r.notFound(id)
		}
		return domain.Student{}, fmt.Errorf("failed to find student: %w", err)
	}
	return s, nil
}

// FindAll retrieves all students
func (r *studentRepositoryImpl) FindAll(ctx context.Context) ([]domain.Student, error) {
	return r.list(ctx, selectStudent+" ORDER BY s.id")
}

// FindByIDs returns the students that exist among ids. Unknown ids are skipped.
func (r *studentRepositoryImpl) FindByIDs(ctx context.Context, ids []string) ([]domain.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.list(ctx, selectStudent+" WHERE s.id IN ("+placeholders+") ORDER BY s.id", args...)
}

// FindAvailable lists the students enrolled in the course that are not yet
// in any of its teams
func (r *studentRepositoryImpl) FindAvailable(ctx context.Context, courseID int64) ([]domain.Student, error) {
	return r.list(ctx, selectStudent+`
		JOIN enrollments e ON e.student_id = s.id AND e.course_id = ?
		WHERE NOT EXISTS (
			SELECT 1 FROM team_members tm JOIN teams t ON t.id = tm.team_id
			WHERE t.course_id = e.course_id AND tm.student_id = s.id
		)
		ORDER BY s.id`, courseID)
}

// DeleteByID removes a student by its ID
func (r *studentRepositoryImpl) DeleteByID(ctx context.Context, id string) error {
	return r.deleteByID(ctx, id)
}

// ExistsByID checks if a student exists by its ID
func (r *studentRepositoryImpl) ExistsByID(ctx context.Context, id string) (bool, error) {
	return r.existsByID(ctx, id)
}

func (r *studentRepositoryImpl) list(ctx context.Context, query string, args ...any) (students []domain.Student, err error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer closeRows(rows, &err)

	for rows.Next() {
		var s domain.Student
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating students: %w", err)
	}
	return students, nil
}
