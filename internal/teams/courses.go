package teams

import (
	"context"
	"errors"
	"fmt"

	"github.com/jbweber/homelab/labpool/internal/domain"
	"github.com/jbweber/homelab/labpool/internal/repository"
)

// setupErr translates repository errors raised by course setup.
func setupErr(err error, notFound error) error {
	switch {
	case errors.Is(err, repository.ErrInvalidEntity):
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", notFound, err)
	default:
		return err
	}
}

func (m *manager) CreateCourse(ctx context.Context, course domain.Course) (domain.Course, error) {
	course.ID = 0
	course.VmModelID = nil
	created, err := repository.NewCourseRepository(m.ds.DB).Save(ctx, course)
	if err != nil {
		return domain.Course{}, setupErr(err, domain.ErrCourseNotFound)
	}
	return created, nil
}

// SetCourseEnabled opens or closes team formation for a course
func (m *manager) SetCourseEnabled(ctx context.Context, courseID int64, enabled bool) (domain.Course, error) {
	unlock, err := m.courseLocks.lock(ctx, courseID)
	if err != nil {
		return domain.Course{}, err
	}
	defer unlock()

	var course domain.Course
	err = m.inTx(ctx, func(r repos) error {
		var err error
		if course, err = r.courses.FindByID(ctx, courseID); err != nil {
			return courseErr(err, courseID)
		}
		course.Enabled = enabled
		if course, err = r.courses.Save(ctx, course); err != nil {
			return setupErr(err, domain.ErrCourseNotFound)
		}
		return nil
	})
	if err != nil {
		return domain.Course{}, err
	}
	return course, nil
}

func (m *manager) AddStudent(ctx context.Context, student domain.Student) (domain.Student, error) {
	saved, err := repository.NewStudentRepository(m.ds.DB).Save(ctx, student)
	if err != nil {
		return domain.Student{}, setupErr(err, domain.ErrStudentNotFound)
	}
	return saved, nil
}

// EnrollStudents enrolls every student or none of them
func (m *manager) EnrollStudents(ctx context.Context, courseID int64, studentIDs ...string) error {
	return m.inTx(ctx, func(r repos) error {
		if _, err := r.courses.FindByID(ctx, courseID); err != nil {
			return courseErr(err, courseID)
		}
		if err := r.courses.Enroll(ctx, courseID, studentIDs...); err != nil {
			return setupErr(err, domain.ErrStudentNotFound)
		}
		return nil
	})
}

// SetVmModel creates or replaces the VM template of a course
func (m *manager) SetVmModel(ctx context.Context, model domain.VmModel) (domain.VmModel, error) {
	saved, err := repository.NewCourseRepository(m.ds.DB).SaveVmModel(ctx, model)
	if err != nil {
		return domain.VmModel{}, setupErr(err, domain.ErrCourseNotFound)
	}
	return saved, nil
}
