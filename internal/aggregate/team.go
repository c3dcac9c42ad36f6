// Package aggregate holds the team aggregate: the consistency boundary that
// groups a team's caps, its members and its VM instances.
//
// Every method validates against the aggregate's current in-memory snapshot
// and mutates it only after all checks pass, so a failed call leaves the
// aggregate untouched. The aggregate itself is not safe for concurrent use;
// callers serialize access per team (see the teams package).
package aggregate

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/jbweber/homelab/labpool/internal/domain"
	"github.com/jbweber/homelab/labpool/internal/quota"
)

// Team is a team together with its members and VM instances.
type Team struct {
	domain.Team
	Members []string
	Vms     []domain.VmInstance
}

// New builds a pending team for the given members with caps copied from the course.
func New(course domain.Course, name string, members []string) *Team {
	return &Team{
		Team: domain.Team{
			CourseID: course.ID,
			Name:     name,
			Status:   domain.TeamPending,
			Caps:     course.Caps,
		},
		Members: lo.Uniq(members),
	}
}

// Usage recomputes the team's usage from its VM collection.
func (t *Team) Usage() quota.Usage {
	return quota.UsageOf(t.Vms)
}

// IsMember reports whether the student belongs to the team.
func (t *Team) IsMember(studentID string) bool {
	return lo.Contains(t.Members, studentID)
}

// Vm returns the instance with the given id.
func (t *Team) Vm(vmID int64) (*domain.VmInstance, error) {
	i := t.indexOf(vmID)
	if i < 0 {
		return nil, fmt.Errorf("%w: id %d in team %d", domain.ErrVmNotFound, vmID, t.ID)
	}
	return &t.Vms[i], nil
}

func (t *Team) indexOf(vmID int64) int {
	return slices.IndexFunc(t.Vms, func(vm domain.VmInstance) bool { return vm.ID == vmID })
}

// Activate moves a pending team to active.
func (t *Team) Activate() error {
	if t.Status != domain.TeamPending {
		return fmt.Errorf("%w: team %d is %s", domain.ErrTeamNotPending, t.ID, t.Status)
	}
	t.Status = domain.TeamActive
	return nil
}

// CreateVm admits a new suspended instance owned by the requester. The
// returned instance has no id until the aggregate is persisted.
func (t *Team) CreateVm(size domain.Size, vmModelID int64, requesterID string, now time.Time) (*domain.VmInstance, error) {
	if t.Status != domain.TeamActive {
		return nil, fmt.Errorf("%w: team %d is %s", domain.ErrTeamNotActive, t.ID, t.Status)
	}
	if !t.IsMember(requesterID) {
		return nil, fmt.Errorf("%w: %s in team %d", domain.ErrNotTeamMember, requesterID, t.ID)
	}
	if err := size.Validate(); err != nil {
		return nil, err
	}

	delta := quota.Delta{Instances: 1, Size: size}
	if err := quota.Admit(t.Usage(), delta, t.Caps); err != nil {
		return nil, err
	}

	t.Vms = append(t.Vms, domain.VmInstance{
		TeamID:    t.ID,
		VmModelID: vmModelID,
		Size:      size,
		Status:    domain.VmSuspended,
		CreatorID: requesterID,
		Owners:    []string{requesterID},
		CreatedAt: now,
	})
	return &t.Vms[len(t.Vms)-1], nil
}

// ChangeVmStatus applies a status transition requested by an owner of the instance.
func (t *Team) ChangeVmStatus(vmID int64, target domain.VmStatus, requesterID string) (*domain.VmInstance, error) {
	vm, err := t.Vm(vmID)
	if err != nil {
		return nil, err
	}
	if !vm.IsOwner(requesterID) {
		return nil, fmt.Errorf("%w: %s on vm %d", domain.ErrPermissionDenied, requesterID, vmID)
	}
	if err := vm.Status.CanTransitionTo(target); err != nil {
		return nil, err
	}

	if running := vm.Status.RunningDelta(target); running > 0 {
		if err := quota.Admit(t.Usage(), quota.Delta{Running: running}, t.Caps); err != nil {
			return nil, err
		}
	}

	vm.Status = target
	return vm, nil
}

// ResizeVm changes the declared size of an instance. Admission is checked
// against the other instances' totals with the new size substituted in.
func (t *Team) ResizeVm(vmID int64, size domain.Size, requesterID string) (*domain.VmInstance, error) {
	i := t.indexOf(vmID)
	if i < 0 {
		return nil, fmt.Errorf("%w: id %d in team %d", domain.ErrVmNotFound, vmID, t.ID)
	}
	vm := &t.Vms[i]
	if !vm.IsOwner(requesterID) {
		return nil, fmt.Errorf("%w: %s on vm %d", domain.ErrPermissionDenied, requesterID, vmID)
	}
	if err := size.Validate(); err != nil {
		return nil, err
	}

	others := quota.UsageOf(lo.Filter(t.Vms, func(_ domain.VmInstance, j int) bool { return j != i }))
	if err := quota.Admit(others, quota.Delta{Size: size}, t.Caps); err != nil {
		return nil, err
	}

	vm.Size = size
	return vm, nil
}

// DeleteVm removes a suspended instance. The status check comes first, so a
// running instance can never be deleted regardless of who asks.
func (t *Team) DeleteVm(vmID int64, requesterID string) (domain.VmInstance, error) {
	i := t.indexOf(vmID)
	if i < 0 {
		return domain.VmInstance{}, fmt.Errorf("%w: id %d in team %d", domain.ErrVmNotFound, vmID, t.ID)
	}
	vm := t.Vms[i]
	if vm.Status != domain.VmSuspended {
		return domain.VmInstance{}, fmt.Errorf("%w: vm %d is %s", domain.ErrNotSuspended, vmID, vm.Status)
	}
	if !vm.IsOwner(requesterID) {
		return domain.VmInstance{}, fmt.Errorf("%w: %s on vm %d", domain.ErrPermissionDenied, requesterID, vmID)
	}

	t.Vms = slices.Delete(t.Vms, i, i+1)
	return vm, nil
}

// AddOwner grants management rights over an instance. It returns false when
// the student already was an owner.
func (t *Team) AddOwner(vmID int64, studentID string) (bool, error) {
	vm, err := t.Vm(vmID)
	if err != nil {
		return false, err
	}
	if vm.IsOwner(studentID) {
		return false, nil
	}
	vm.Owners = append(vm.Owners, studentID)
	return true, nil
}

// UpdateCaps replaces the team's caps if current usage still fits under them.
func (t *Team) UpdateCaps(caps domain.Caps) error {
	if err := caps.Validate(); err != nil {
		return err
	}
	if err := quota.Fits(t.Usage(), caps); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCapsIncompatibleWithCurrentUsage, err)
	}
	t.Caps = caps
	return nil
}

// CheckInvariants verifies that caps and sizes are well formed and that
// current usage respects the caps.
func (t *Team) CheckInvariants() error {
	if err := t.Caps.Validate(); err != nil {
		return err
	}
	for _, vm := range t.Vms {
		if err := vm.Size.Validate(); err != nil {
			return fmt.Errorf("vm %d: %w", vm.ID, err)
		}
	}
	return quota.Fits(t.Usage(), t.Caps)
}
