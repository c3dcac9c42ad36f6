package teams

import (
	"context"
	"errors"
	"fmt"

	"github.com/jbweber/homelab/labpool/internal/aggregate"
	"github.com/jbweber/homelab/labpool/internal/domain"
	"github.com/jbweber/homelab/labpool/internal/repository"
)

// CreateVm admits a new suspended instance built from the course's VM model
func (m *manager) CreateVm(ctx context.Context, teamID int64, size domain.Size, requesterID string) (*domain.VmInstance, error) {
	var vm *domain.VmInstance
	_, err := m.withTeam(ctx, teamID, func(r repos, team *aggregate.Team) error {
		model, err := r.courses.FindVmModel(ctx, team.CourseID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: course %d", domain.ErrVmModelNotFound, team.CourseID)
			}
			return err
		}
		vm, err = team.CreateVm(size, model.ID, requesterID, m.now().UTC())
		return err
	})
	m.observe(ctx, "create_vm", teamID, err)
	if err != nil {
		return nil, err
	}
	// The id was assigned in place when the team was saved.
	return copyVm(vm), nil
}

// ChangeVmStatus moves an instance along the status transition table
func (m *manager) ChangeVmStatus(ctx context.Context, teamID, vmID int64, target domain.VmStatus, requesterID string) (*domain.VmInstance, error) {
	var (
		vm   *domain.VmInstance
		from domain.VmStatus
	)
	_, err := m.withTeam(ctx, teamID, func(_ repos, team *aggregate.Team) error {
		current, err := team.Vm(vmID)
		if err != nil {
			return err
		}
		from = current.Status
		vm, err = team.ChangeVmStatus(vmID, target, requesterID)
		return err
	})
	m.observe(ctx, "change_vm_status", teamID, err)
	if err != nil {
		return nil, err
	}
	m.metrics.ObserveTransition(from, target)
	return copyVm(vm), nil
}

// ResizeVm changes the declared size of an instance
func (m *manager) ResizeVm(ctx context.Context, teamID, vmID int64, size domain.Size, requesterID string) (*domain.VmInstance, error) {
	var vm *domain.VmInstance
	_, err := m.withTeam(ctx, teamID, func(_ repos, team *aggregate.Team) error {
		var err error
		vm, err = team.ResizeVm(vmID, size, requesterID)
		return err
	})
	m.observe(ctx, "resize_vm", teamID, err)
	if err != nil {
		return nil, err
	}
	return copyVm(vm), nil
}

// DeleteVm removes a suspended instance and its ownerships
func (m *manager) DeleteVm(ctx context.Context, teamID, vmID int64, requesterID string) error {
	_, err := m.withTeam(ctx, teamID, func(_ repos, team *aggregate.Team) error {
		_, err := team.DeleteVm(vmID, requesterID)
		return err
	})
	m.observe(ctx, "delete_vm", teamID, err)
	return err
}

// AddOwner grants a team member management rights over an instance. It
// reports false when the student already was an owner.
func (m *manager) AddOwner(ctx context.Context, teamID, vmID int64, studentID string) (bool, error) {
	added, err := m.AddOwners(ctx, teamID, vmID, []string{studentID})
	if err != nil {
		return false, err
	}
	return added[0], nil
}

// AddOwners adds several owners at once. Either every student is added or,
// on the first failure, none is.
func (m *manager) AddOwners(ctx context.Context, teamID, vmID int64, studentIDs []string) ([]bool, error) {
	added := make([]bool, len(studentIDs))
	_, err := m.withTeam(ctx, teamID, func(r repos, team *aggregate.Team) error {
		if _, err := team.Vm(vmID); err != nil {
			return err
		}
		for i, id := range studentIDs {
			if !team.IsMember(id) {
				exists, err := r.students.ExistsByID(ctx, id)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("%w: %s", domain.ErrStudentNotFound, id)
				}
				return fmt.Errorf("%w: %s in team %d", domain.ErrNotTeamMember, id, teamID)
			}
			ok, err := team.AddOwner(vmID, id)
			if err != nil {
				return err
			}
			added[i] = ok
		}
		return nil
	})
	m.observe(ctx, "add_owner", teamID, err)
	if err != nil {
		return nil, err
	}
	return added, nil
}
