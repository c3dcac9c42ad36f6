// Package teams is the application boundary for team formation, team
// lifecycle and VM operations.
//
// Every capacity-changing operation takes the team's lock and runs
// load, mutate and save inside one database transaction, so concurrent
// requests against the same team are serialized while different teams
// never wait on each other's locks. All transactions share the datastore's
// single SQLite connection, so they still queue briefly on it.
package teams

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jbweber/homelab/labpool/internal/aggregate"
	"github.com/jbweber/homelab/labpool/internal/datastore"
	"github.com/jbweber/homelab/labpool/internal/domain"
	"github.com/jbweber/homelab/labpool/internal/formation"
	"github.com/jbweber/homelab/labpool/internal/logger"
	"github.com/jbweber/homelab/labpool/internal/metrics"
	"github.com/jbweber/homelab/labpool/internal/quota"
	"github.com/jbweber/homelab/labpool/internal/repository"
)

// Manager handles team formation, team lifecycle and VM operations
type Manager interface {
	// Course setup
	CreateCourse(ctx context.Context, course domain.Course) (domain.Course, error)
	SetCourseEnabled(ctx context.Context, courseID int64, enabled bool) (domain.Course, error)
	AddStudent(ctx context.Context, student domain.Student) (domain.Student, error)
	EnrollStudents(ctx context.Context, courseID int64, studentIDs ...string) error
	SetVmModel(ctx context.Context, model domain.VmModel) (domain.VmModel, error)

	// Formation and team lifecycle
	ProposeTeam(ctx context.Context, courseID int64, req formation.Request) (*formation.Formation, error)
	RegisterTeam(ctx context.Context, token string) (*aggregate.Team, error)
	EnableTeam(ctx context.Context, teamID int64) (*aggregate.Team, error)
	EvictTeam(ctx context.Context, teamID int64) error
	UpdateTeamCaps(ctx context.Context, teamID int64, caps domain.Caps) (*aggregate.Team, error)

	// VM operations
	CreateVm(ctx context.Context, teamID int64, size domain.Size, requesterID string) (*domain.VmInstance, error)
	ChangeVmStatus(ctx context.Context, teamID, vmID int64, target domain.VmStatus, requesterID string) (*domain.VmInstance, error)
	ResizeVm(ctx context.Context, teamID, vmID int64, size domain.Size, requesterID string) (*domain.VmInstance, error)
	DeleteVm(ctx context.Context, teamID, vmID int64, requesterID string) error
	AddOwner(ctx context.Context, teamID, vmID int64, studentID string) (bool, error)
	AddOwners(ctx context.Context, teamID, vmID int64, studentIDs []string) ([]bool, error)

	// Queries
	GetTeam(ctx context.Context, teamID int64) (*aggregate.Team, error)
	ListVms(ctx context.Context, teamID int64) ([]domain.VmInstance, error)
	GetVm(ctx context.Context, teamID, vmID int64) (*domain.VmInstance, error)
	TeamUsage(ctx context.Context, teamID int64) (*UsageReport, error)
	ListTeamsForCourse(ctx context.Context, courseID int64) ([]*aggregate.Team, error)
	AvailableStudents(ctx context.Context, courseID int64) ([]domain.Student, error)
}

// UsageReport describes a team's consumption against its caps
type UsageReport struct {
	TeamID    int64
	Usage     quota.Usage
	Caps      domain.Caps
	Available quota.Usage
}

type manager struct {
	ds        *datastore.Datastore
	metrics   *metrics.Metrics
	validator *formation.Validator
	now       func() time.Time

	teamLocks   *lockMap[int64]
	courseLocks *lockMap[int64]
}

// NewManager creates a new team manager. A nil metrics disables instrumentation.
func NewManager(ds *datastore.Datastore, m *metrics.Metrics) Manager {
	return &manager{
		ds:          ds,
		metrics:     m,
		validator:   formation.NewValidator(),
		now:         time.Now,
		teamLocks:   newLockMap[int64](),
		courseLocks: newLockMap[int64](),
	}
}

// repos binds every repository to one transaction.
type repos struct {
	courses   repository.CourseRepository
	students  repository.StudentRepository
	teams     repository.TeamRepository
	proposals repository.ProposalRepository
}

func reposFor(q repository.Querier) repos {
	return repos{
		courses:   repository.NewCourseRepository(q),
		students:  repository.NewStudentRepository(q),
		teams:     repository.NewTeamRepository(q),
		proposals: repository.NewProposalRepository(q),
	}
}

// inTx runs fn with repositories bound to a single transaction.
func (m *manager) inTx(ctx context.Context, fn func(r repos) error) error {
	return m.ds.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(reposFor(tx))
	})
}

// withTeam serializes fn against every other mutation of the team, loading
// the aggregate and saving it back in the same transaction. Nothing is saved
// when fn fails.
func (m *manager) withTeam(ctx context.Context, teamID int64, fn func(r repos, team *aggregate.Team) error) (*aggregate.Team, error) {
	unlock, err := m.teamLocks.lock(ctx, teamID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var saved *aggregate.Team
	err = m.inTx(ctx, func(r repos) error {
		team, err := r.teams.FindByID(ctx, teamID)
		if err != nil {
			return teamErr(err, teamID)
		}
		if err := fn(r, team); err != nil {
			return err
		}
		if saved, err = r.teams.Save(ctx, team); err != nil {
			return saveErr(err, teamID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// observe records the outcome of a team operation and logs it.
func (m *manager) observe(ctx context.Context, op string, teamID int64, err error) {
	m.metrics.ObserveAdmission(op, err)

	log := logger.FromContext(ctx).WithField("operation", op)
	if teamID != 0 {
		log = log.WithField("team_id", teamID)
	}
	switch {
	case err == nil:
		log.Debug("operation applied")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.WithError(err).Info("operation abandoned")
	case domain.Code(err) != "":
		if reason := quota.Reason(err); reason != "" {
			log = log.WithField("reason", reason)
		}
		log.WithError(err).Info("operation rejected")
	default:
		log.WithError(err).Error("operation failed")
	}
}

// teamErr translates repository errors raised while loading a team.
func teamErr(err error, teamID int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: id %d", domain.ErrTeamNotFound, teamID)
	}
	return err
}

// saveErr translates repository errors raised while saving a team.
func saveErr(err error, teamID int64) error {
	switch {
	case errors.Is(err, repository.ErrStaleVersion):
		return fmt.Errorf("%w: team %d was modified concurrently", domain.ErrConflict, teamID)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %w", domain.ErrDuplicateTeamName, err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: id %d", domain.ErrTeamNotFound, teamID)
	default:
		return err
	}
}

// courseErr translates repository errors raised while loading a course.
func courseErr(err error, courseID int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: id %d", domain.ErrCourseNotFound, courseID)
	}
	return err
}

func copyVm(vm *domain.VmInstance) *domain.VmInstance {
	c := *vm
	c.Owners = append([]string(nil), vm.Owners...)
	return &c
}
