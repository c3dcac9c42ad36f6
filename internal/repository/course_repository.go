package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jbweber/homelab/labpool/internal/domain"
)

// CourseRepository defines domain-specific operations for courses
type CourseRepository interface {
	Repository[domain.Course, int64]
	FindByName(ctx context.Context, name string) (domain.Course, error)
	Enroll(ctx context.Context, courseID int64, studentIDs ...string) error
	EnrolledStudentIDs(ctx context.Context, courseID int64) ([]string, error)
	SaveVmModel(ctx context.Context, model domain.VmModel) (domain.VmModel, error)
	FindVmModel(ctx context.Context, courseID int64) (domain.VmModel, error)
}

// courseRepositoryImpl implements CourseRepository
type courseRepositoryImpl struct {
	sqlRepository
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(q Querier) CourseRepository {
	return &courseRepositoryImpl{sqlRepository: newSQLRepository(q, "courses", "course")}
}

const selectCourse = `
	SELECT c.id, c.name, c.acronym, c.enabled, c.min_members, c.max_members,
		c.vcpu_max, c.memory_max, c.disk_max, c.max_instances, c.max_running_instances, m.id
	FROM courses c LEFT JOIN vm_models m ON m.course_id = c.id`

func scanCourse(row interface{ Scan(...any) error }) (domain.Course, error) {
	var c domain.Course
	var modelID sql.NullInt64
	err := row.Scan(&c.ID, &c.Name, &c.Acronym, &c.Enabled, &c.MinMembers, &c.MaxMembers,
		&c.Caps.VcpuMax, &c.Caps.MemoryMax, &c.Caps.DiskMax, &c.Caps.MaxInstances, &c.Caps.MaxRunningInstances, &modelID)
	if err != nil {
		return domain.Course{}, err
	}
	if modelID.Valid {
		c.VmModelID = &modelID.Int64
	}
	return c, nil
}

func validateCourse(c domain.Course) error {
	if c.Name == "" {
		return fmt.Errorf("course name is required: %w", ErrInvalidEntity)
	}
	if c.MinMembers < 1 || c.MaxMembers < c.MinMembers {
		return fmt.Errorf("course team size %d..%d is invalid: %w", c.MinMembers, c.MaxMembers, ErrInvalidEntity)
	}
	if err := c.Caps.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}
	return nil
}

// Save creates or updates a course
func (r *courseRepositoryImpl) Save(ctx context.Context, course domain.Course) (domain.Course, error) {
	if err := validateCourse(course); err != nil {
		return domain.Course{}, err
	}

	caps := course.Caps
	if course.ID == 0 {
		result, err := r.q.ExecContext(ctx, `
			INSERT INTO courses (name, acronym, enabled, min_members, max_members,
				vcpu_max, memory_max, disk_max, max_instances, max_running_instances)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			course.Name, course.Acronym, course.Enabled, course.MinMembers, course.MaxMembers,
			caps.VcpuMax, caps.MemoryMax, caps.DiskMax, caps.MaxInstances, caps.MaxRunningInstances)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.Course{}, fmt.Errorf("course with name '%s': %w", course.Name, ErrDuplicate)
			}
			return domain.Course{}, fmt.Errorf("failed to create course: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return domain.Course{}, fmt.Errorf("failed to get course ID: %w", err)
		}
		course.ID = id
		return course, nil
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE courses
		SET name = ?, acronym = ?, enabled = ?, min_members = ?, max_members = ?,
			vcpu_max = ?, memory_max = ?, disk_max = ?, max_instances = ?, max_running_instances = ?
		WHERE id = ?`,
		course.Name, course.Acronym, course.Enabled, course.MinMembers, course.MaxMembers,
		caps.VcpuMax, caps.MemoryMax, caps.DiskMax, caps.MaxInstances, caps.MaxRunningInstances, course.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Course{}, fmt.Errorf("course with name '%s': %w", course.Name, ErrDuplicate)
		}
		return domain.Course{}, fmt.Errorf("failed to update course: %w", err)
	}
	if err := r.expectOneRow(result, course.ID); err != nil {
		return domain.Course{}, err
	}
	return course, nil
}

// FindByID retrieves a course by its ID
func (r *courseRepositoryImpl) FindByID(ctx context.Context, id int64) (domain.Course, error) {
	course, err := scanCourse(r.q.QueryRowContext(ctx, selectCourse+" WHERE c.id = ?", id))
	if err != nil {
		if isNotFoundError(err) {
			return domain.Course{}, r.notFound(id)
		}
		return domain.Course{}, fmt.Errorf("failed to find course: %w", err)
	}
	return course, nil
}

// FindByName retrieves a course by its name
func (r *courseRepositoryImpl) FindByName(ctx context.Context, name string) (domain.Course, error) {
	course, err := scanCourse(r.q.QueryRowContext(ctx, selectCourse+" WHERE c.name = ?", name))
	if err != nil {
		if isNotFoundError(err) {
			return domain.Course{}, fmt.Errorf("course with name '%s': %w", name, ErrNotFound)
		}
		return domain.Course{}, fmt.Errorf("failed to find course: %w", err)
	}
	return course, nil
}

// FindAll retrieves all courses
func (r *courseRepositoryImpl) FindAll(ctx context.Context) (courses []domain.Course, err error) {
	rows, err := r.q.QueryContext(ctx, selectCourse+" ORDER BY c.name")
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer closeRows(rows, &err)

	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating courses: %w", err)
	}
	return courses, nil
}

// DeleteByID removes a course together with its teams, VMs and enrollments
func (r *courseRepositoryImpl) DeleteByID(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, id)
}

// ExistsByID checks if a course exists by its ID
func (r *courseRepositoryImpl) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return r.existsByID(ctx, id)
}

// Enroll adds students to a course. Already enrolled students are skipped.
func (r *courseRepositoryImpl) Enroll(ctx context.Context, courseID int64, studentIDs ...string) error {
	cache := NewPreparedStatementCache(r.q)
	defer cache.Close()

	for _, id := range studentIDs {
		_, err := cache.Exec(ctx, "INSERT OR IGNORE INTO enrollments (course_id, student_id) VALUES (?, ?)", courseID, id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("enroll %s in course %d: %w", id, courseID, ErrNotFound)
			}
			return fmt.Errorf("failed to enroll student %s: %w", id, err)
		}
	}
	return nil
}

// EnrolledStudentIDs lists the ids of every student enrolled in the course
func (r *courseRepositoryImpl) EnrolledStudentIDs(ctx context.Context, courseID int64) (ids []string, err error) {
	rows, err := r.q.QueryContext(ctx, "SELECT student_id FROM enrollments WHERE course_id = ? ORDER BY student_id", courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer closeRows(rows, &err)

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrollments: %w", err)
	}
	return ids, nil
}

// SaveVmModel creates or replaces the VM model of a course
func (r *courseRepositoryImpl) SaveVmModel(ctx context.Context, model domain.VmModel) (domain.VmModel, error) {
	if model.Name == "" {
		return domain.VmModel{}, fmt.Errorf("vm model name is required: %w", ErrInvalidEntity)
	}
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO vm_models (course_id, name, configuration) VALUES (?, ?, ?)
		ON CONFLICT (course_id) DO UPDATE SET name = excluded.name, configuration = excluded.configuration
		RETURNING id`,
		model.CourseID, model.Name, model.Configuration).Scan(&model.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.VmModel{}, r.notFound(model.CourseID)
		}
		return domain.VmModel{}, fmt.Errorf("failed to save vm model: %w", err)
	}
	return model, nil
}

// FindVmModel retrieves the VM model of a course
func (r *courseRepositoryImpl) FindVmModel(ctx context.Context, courseID int64) (domain.VmModel, error) {
	var m domain.VmModel
	err := r.q.QueryRowContext(ctx, "SELECT id, course_id, name, configuration FROM vm_models WHERE course_id = ?", courseID).
		Scan(&m.ID, &m.CourseID, &m.Name, &m.Configuration)
	if err != nil {
		if isNotFoundError(err) {
			return domain.VmModel{}, fmt.Errorf("vm model of course %d: %w", courseID, ErrNotFound)
		}
		return domain.VmModel{}, fmt.Errorf("failed to find vm model: %w", err)
	}
	return m, nil
}
