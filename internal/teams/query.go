package teams

import (
	"context"

	"github.com/samber/lo"

	"github.com/jbweber/homelab/labpool/internal/aggregate"
	"github.com/jbweber/homelab/labpool/internal/domain"
	"github.com/jbweber/homelab/labpool/internal/quota"
	"github.com/jbweber/homelab/labpool/internal/repository"
)

// GetTeam returns a team with its members and VMs
func (m *manager) GetTeam(ctx context.Context, teamID int64) (*aggregate.Team, error) {
	team, err := repository.NewTeamRepository(m.ds.DB).FindByID(ctx, teamID)
	if err != nil {
		return nil, teamErr(err, teamID)
	}
	return team, nil
}

func (m *manager) ListVms(ctx context.Context, teamID int64) ([]domain.VmInstance, error) {
	team, err := m.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return team.Vms, nil
}

func (m *manager) GetVm(ctx context.Context, teamID, vmID int64) (*domain.VmInstance, error) {
	team, err := m.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return team.Vm(vmID)
}

// TeamUsage reports what a team consumes, its caps and the headroom left
func (m *manager) TeamUsage(ctx context.Context, teamID int64) (*UsageReport, error) {
	team, err := m.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	usage := team.Usage()
	return &UsageReport{
		TeamID:    team.ID,
		Usage:     usage,
		Caps:      team.Caps,
		Available: quota.Available(usage, team.Caps),
	}, nil
}

func (m *manager) ListTeamsForCourse(ctx context.Context, courseID int64) ([]*aggregate.Team, error) {
	var teams []*aggregate.Team
	err := m.inTx(ctx, func(r repos) error {
		if _, err := r.courses.FindByID(ctx, courseID); err != nil {
			return courseErr(err, courseID)
		}
		var err error
		teams, err = r.teams.FindByCourse(ctx, courseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lo.Ternary(teams == nil, []*aggregate.Team{}, teams), nil
}

// AvailableStudents lists the enrolled students of a course that have no team yet
func (m *manager) AvailableStudents(ctx context.Context, courseID int64) ([]domain.Student, error) {
	var students []domain.Student
	err := m.inTx(ctx, func(r repos) error {
		if _, err := r.courses.FindByID(ctx, courseID); err != nil {
			return courseErr(err, courseID)
		}
		var err error
		students, err = r.students.FindAvailable(ctx, courseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lo.Ternary(students == nil, []domain.Student{}, students), nil
}
