package teams

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jbweber/homelab/labpool/internal/aggregate"
	"github.com/jbweber/homelab/labpool/internal/domain"
	"github.com/jbweber/homelab/labpool/internal/formation"
	"github.com/jbweber/homelab/labpool/internal/metrics"
	"github.com/jbweber/homelab/labpool/internal/repository"
	"github.com/jbweber/homelab/labpool/internal/testutil"
)

var (
	now      = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	testCaps = domain.Caps{VcpuMax: 4, MemoryMax: 8, DiskMax: 100, MaxInstances: 2, MaxRunningInstances: 1}
	small    = domain.Size{Vcpu: 2, Memory: 4, Disk: 20}
)

type fixture struct {
	mgr    *manager
	course domain.Course
}

func newFixture(t *testing.T, students ...string) *fixture {
	t.Helper()
	ctx := context.Background()

	mgr := NewManager(testutil.NewTestDatastore(t), nil).(*manager)
	mgr.now = func() time.Time { return now }
	mgr.validator.Now = mgr.now

	course, err := mgr.CreateCourse(ctx, domain.Course{
		Name: "Applied Internet", Acronym: "AI", Enabled: true,
		MinMembers: 2, MaxMembers: 5, Caps: testCaps,
	})
	require.NoError(t, err)
	_, err = mgr.SetVmModel(ctx, domain.VmModel{CourseID: course.ID, Name: "ubuntu-24.04", Configuration: "{}"})
	require.NoError(t, err)

	for _, id := range students {
		_, err := mgr.AddStudent(ctx, domain.Student{ID: id, FirstName: "First " + id, LastName: "Last " + id})
		require.NoError(t, err)
	}
	if len(students) > 0 {
		require.NoError(t, mgr.EnrollStudents(ctx, course.ID, students...))
	}
	return &fixture{mgr: mgr, course: course}
}

func (f *fixture) propose(t *testing.T, name string, members ...string) *formation.Formation {
	t.Helper()
	fm, err := f.mgr.ProposeTeam(context.Background(), f.course.ID, formation.Request{
		TeamName:          name,
		ProposedMemberIDs: members,
		RequesterID:       members[0],
		Deadline:          now.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return fm
}

func (f *fixture) activeTeam(t *testing.T, name string, members ...string) *aggregate.Team {
	t.Helper()
	ctx := context.Background()
	team, err := f.mgr.RegisterTeam(ctx, f.propose(t, name, members...).Token)
	require.NoError(t, err)
	team, err = f.mgr.EnableTeam(ctx, team.ID)
	require.NoError(t, err)
	return team
}

func TestManager_CapacityScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2")
	team := f.activeTeam(t, "blue", "s1", "s2")

	a, err := f.mgr.CreateVm(ctx, team.ID, small, "s1")
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.Equal(t, domain.VmSuspended, a.Status)
	assert.Equal(t, "s1", a.CreatorID)
	assert.Equal(t, []string{"s1"}, a.Owners)

	b, err := f.mgr.CreateVm(ctx, team.ID, small, "s2")
	require.NoError(t, err)

	_, err = f.mgr.CreateVm(ctx, team.ID, domain.Size{Vcpu: 1, Memory: 1, Disk: 1}, "s1")
	assert.ErrorIs(t, err, domain.ErrTooManyInstances)

	_, err = f.mgr.ChangeVmStatus(ctx, team.ID, a.ID, domain.VmRunning, "s1")
	require.NoError(t, err)
	_, err = f.mgr.ChangeVmStatus(ctx, team.ID, b.ID, domain.VmRunning, "s2")
	assert.ErrorIs(t, err, domain.ErrTooManyRunningInstances)

	report, err := f.mgr.TeamUsage(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Usage.Vcpu)
	assert.Equal(t, 8.0, report.Usage.Memory)
	assert.Equal(t, 40.0, report.Usage.Disk)
	assert.Equal(t, 2, report.Usage.Instances)
	assert.Equal(t, 1, report.Usage.Running)
	assert.Equal(t, 60.0, report.Available.Disk)
	assert.Equal(t, testCaps, report.Caps)
}

func TestManager_UpdateTeamCaps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2")
	team := f.activeTeam(t, "blue", "s1", "s2")

	_, err := f.mgr.CreateVm(ctx, team.ID, small, "s1")
	require.NoError(t, err)
	_, err = f.mgr.CreateVm(ctx, team.ID, small, "s1")
	require.NoError(t, err)

	lower := testCaps
	lower.VcpuMax = 3
	_, err = f.mgr.UpdateTeamCaps(ctx, team.ID, lower)
	assert.ErrorIs(t, err, domain.ErrCapsIncompatibleWithCurrentUsage)

	got, err := f.mgr.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Caps.VcpuMax, "rejected caps must not be stored")

	higher := testCaps
	higher.VcpuMax = 5
	updated, err := f.mgr.UpdateTeamCaps(ctx, team.ID, higher)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Caps.VcpuMax)

	_, err = f.mgr.UpdateTeamCaps(ctx, team.ID, domain.Caps{VcpuMax: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidCaps)
}

func TestManager_ResizeVm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2")
	team := f.activeTeam(t, "blue", "s1", "s2")

	a, err := f.mgr.CreateVm(ctx, team.ID, small, "s1")
	require.NoError(t, err)
	_, err = f.mgr.CreateVm(ctx, team.ID, small, "s2")
	require.NoError(t, err)

	_, err = f.mgr.ResizeVm(ctx, team.ID, a.ID, domain.Size{Vcpu: 3, Memory: 4, Disk: 20}, "s1")
	assert.ErrorIs(t, err, domain.ErrVcpuExceeded)

	_, err = f.mgr.ResizeVm(ctx, team.ID, a.ID, domain.Size{Vcpu: 1, Memory: 2, Disk: 10}, "s2")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	resized, err := f.mgr.ResizeVm(ctx, team.ID, a.ID, domain.Size{Vcpu: 1, Memory: 2, Disk: 10}, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.Size{Vcpu: 1, Memory: 2, Disk: 10}, resized.Size)

	stored, err := f.mgr.GetVm(ctx, team.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, resized.Size, stored.Size)
}

func TestManager_ChangeVmStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2")
	team := f.activeTeam(t, "blue", "s1", "s2")
	vm, err := f.mgr.CreateVm(ctx, team.ID, small, "s1")
	require.NoError(t, err)

	_, err = f.mgr.ChangeVmStatus(ctx, team.ID, vm.ID, domain.VmSuspended, "s1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.mgr.ChangeVmStatus(ctx, team.ID, vm.ID, domain.VmRunning, "s2")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	running, err := f.mgr.ChangeVmStatus(ctx, team.ID, vm.ID, domain.VmRunning, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.VmRunning, running.Status)

	_, err = f.mgr.ChangeVmStatus(ctx, team.ID, vm.ID, domain.VmRunning, "s1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.mgr.ChangeVmStatus(ctx, team.ID, 999, domain.VmRunning, "s1")
	assert.ErrorIs(t, err, domain.ErrVmNotFound)
}

func TestManager_DeleteVm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2")
	team := f.activeTeam(t, "blue", "s1", "s2")
	vm, err := f.mgr.CreateVm(ctx, team.ID, small, "s1")
	require.NoError(t, err)

	_, err = f.mgr.ChangeVmStatus(ctx, team.ID, vm.ID, domain.VmRunning, "s1")
	require.NoError(t, err)

	// Running instances are rejected before ownership is looked at.
	assert.ErrorIs(t, f.mgr.DeleteVm(ctx, team.ID, vm.ID, "s2"), domain.ErrNotSuspended)
	assert.ErrorIs(t, f.mgr.DeleteVm(ctx, team.ID, vm.ID, "s1"), domain.ErrNotSuspended)

	_, err = f.mgr.ChangeVmStatus(ctx, team.ID, vm.ID, domain.VmSuspended, "s1")
	require.NoError(t, err)
	assert.ErrorIs(t, f.mgr.DeleteVm(ctx, team.ID, vm.ID, "s2"), domain.ErrPermissionDenied)
	require.NoError(t, f.mgr.DeleteVm(ctx, team.ID, vm.ID, "s1"))

	vms, err := f.mgr.ListVms(ctx, team.ID)
	require.NoError(t, err)
	assert.Empty(t, vms)
	assert.ErrorIs(t, f.mgr.DeleteVm(ctx, team.ID, vm.ID, "s1"), domain.ErrVmNotFound)
}

func TestManager_AddOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2", "s3", "s4", "s5")
	team := f.activeTeam(t, "blue", "s1", "s2", "s3")
	f.activeTeam(t, "red", "s4", "s5")
	vm, err := f.mgr.CreateVm(ctx, team.ID, small, "s1")
	require.NoError(t, err)

	added, err := f.mgr.AddOwner(ctx, team.ID, vm.ID, "s2")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = f.mgr.AddOwner(ctx, team.ID, vm.ID, "s2")
	require.NoError(t, err)
	assert.False(t, added, "adding an existing owner is a no-op")

	_, err = f.mgr.AddOwner(ctx, team.ID, vm.ID, "ghost")
	assert.ErrorIs(t, err, domain.ErrStudentNotFound)
	_, err = f.mgr.AddOwner(ctx, team.ID, vm.ID, "s4")
	assert.ErrorIs(t, err, domain.ErrNotTeamMember)
	_, err = f.mgr.AddOwner(ctx, team.ID, 999, "s2")
	assert.ErrorIs(t, err, domain.ErrVmNotFound)

	got, err := f.mgr.GetVm(ctx, team.ID, vm.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, got.Owners)
}

func TestManager_AddOwners_Atomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2", "s3", "s4")
	team := f.activeTeam(t, "blue", "s1", "s2", "s3")
	vm, err := f.mgr.CreateVm(ctx, team.ID, small, "s1")
	require.NoError(t, err)

	_, err = f.mgr.AddOwners(ctx, team.ID, vm.ID, []string{"s2", "s4"})
	assert.ErrorIs(t, err, domain.ErrNotTeamMember)

	got, err := f.mgr.GetVm(ctx, team.ID, vm.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, got.Owners, "a failed batch adds nobody")

	added, err := f.mgr.AddOwners(ctx, team.ID, vm.ID, []string{"s1", "s2", "s3"})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, true}, added)
}

func TestManager_CreateVm_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2", "s3")
	fm := f.propose(t, "blue", "s1", "s2")
	pending, err := f.mgr.RegisterTeam(ctx, fm.Token)
	require.NoError(t, err)

	_, err = f.mgr.CreateVm(ctx, pending.ID, small, "s1")
	assert.ErrorIs(t, err, domain.ErrTeamNotActive)

	team, err := f.mgr.EnableTeam(ctx, pending.ID)
	require.NoError(t, err)
	_, err = f.mgr.EnableTeam(ctx, pending.ID)
	assert.ErrorIs(t, err, domain.ErrTeamNotPending)

	_, err = f.mgr.CreateVm(ctx, team.ID, small, "s3")
	assert.ErrorIs(t, err, domain.ErrNotTeamMember)
	_, err = f.mgr.CreateVm(ctx, team.ID, domain.Size{Vcpu: -1}, "s1")
	assert.ErrorIs(t, err, domain.ErrInvalidSize)
	_, err = f.mgr.CreateVm(ctx, 999, small, "s1")
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)
}

func TestManager_CreateVm_RequiresVmModel(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(testutil.NewTestDatastore(t), nil)

	course, err := mgr.CreateCourse(ctx, domain.Course{Name: "No Model", Enabled: true, MinMembers: 1, MaxMembers: 2, Caps: testCaps})
	require.NoError(t, err)
	_, err = mgr.AddStudent(ctx, domain.Student{ID: "s1"})
	require.NoError(t, err)
	require.NoError(t, mgr.EnrollStudents(ctx, course.ID, "s1"))

	fm, err := mgr.ProposeTeam(ctx, course.ID, formation.Request{
		TeamName: "solo", ProposedMemberIDs: []string{"s1"}, RequesterID: "s1", Deadline: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	team, err := mgr.RegisterTeam(ctx, fm.Token)
	require.NoError(t, err)
	_, err = mgr.EnableTeam(ctx, team.ID)
	require.NoError(t, err)

	_, err = mgr.CreateVm(ctx, team.ID, small, "s1")
	assert.ErrorIs(t, err, domain.ErrVmModelNotFound)
}

func TestManager_ProposeAndRegister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2", "s3")

	fm := f.propose(t, "blue", "s1", "s2")
	assert.Equal(t, []string{"s2"}, fm.InviteeIDs)
	assert.NotEmpty(t, fm.Token)

	// A proposal does not form the team yet.
	teams, err := f.mgr.ListTeamsForCourse(ctx, f.course.ID)
	require.NoError(t, err)
	assert.Empty(t, teams)

	// Caps are copied when the team is registered, not when it was proposed.
	raised := f.course
	raised.Caps.VcpuMax = 16
	_, err = repository.NewCourseRepository(f.mgr.ds.DB).Save(ctx, raised)
	require.NoError(t, err)

	team, err := f.mgr.RegisterTeam(ctx, fm.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.TeamPending, team.Status)
	assert.Equal(t, []string{"s1", "s2"}, team.Members)
	assert.Equal(t, 16, team.Caps.VcpuMax)

	_, err = f.mgr.RegisterTeam(ctx, fm.Token)
	assert.ErrorIs(t, err, domain.ErrProposalNotFound)

	available, err := f.mgr.AvailableStudents(ctx, f.course.ID)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "s3", available[0].ID)
}

func TestManager_RegisterTeam_Revalidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2", "s3")

	first := f.propose(t, "blue", "s1", "s2")
	second := f.propose(t, "red", "s3", "s2")

	_, err := f.mgr.RegisterTeam(ctx, first.Token)
	require.NoError(t, err)

	_, err = f.mgr.RegisterTeam(ctx, second.Token)
	assert.ErrorIs(t, err, domain.ErrStudentAlreadyTeamed)

	// The rejected proposal is kept for the invitation workflow to clean up.
	_, err = repository.NewProposalRepository(f.mgr.ds.DB).FindByToken(ctx, second.Token)
	assert.NoError(t, err)
}

func TestManager_RegisterTeam_Expired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2")
	fm := f.propose(t, "blue", "s1", "s2")

	f.mgr.validator.Now = func() time.Time { return now.Add(72 * time.Hour) }
	_, err := f.mgr.RegisterTeam(ctx, fm.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestManager_ProposeTeam_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2", "s3", "s4", "s5", "s6")
	f.activeTeam(t, "blue", "s1", "s2")

	tests := []struct {
		name    string
		members []string
		team    string
		want    error
	}{
		{"above maximum", []string{"s3", "s4", "s5", "s6", "s1", "s2"}, "red", domain.ErrAboveMaximumMembers},
		{"duplicate member", []string{"s3", "s4", "s4"}, "red", domain.ErrDuplicateMember},
		{"duplicate name", []string{"s3", "s4"}, "blue", domain.ErrDuplicateTeamName},
		{"already teamed", []string{"s3", "s1"}, "red", domain.ErrStudentAlreadyTeamed},
		{"unknown student", []string{"s3", "ghost"}, "red", domain.ErrUnknownStudent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.mgr.ProposeTeam(ctx, f.course.ID, formation.Request{
				TeamName: tt.team, ProposedMemberIDs: tt.members, RequesterID: tt.members[0], Deadline: now.Add(time.Hour),
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := f.mgr.ProposeTeam(ctx, 999, formation.Request{TeamName: "x", ProposedMemberIDs: []string{"s3"}, RequesterID: "s3", Deadline: now.Add(time.Hour)})
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)

	_, err = f.mgr.SetCourseEnabled(ctx, f.course.ID, false)
	require.NoError(t, err)
	_, err = f.mgr.ProposeTeam(ctx, f.course.ID, formation.Request{TeamName: "red", ProposedMemberIDs: []string{"s3", "s4"}, RequesterID: "s3", Deadline: now.Add(time.Hour)})
	assert.ErrorIs(t, err, domain.ErrCourseNotEnabled)
}

func TestManager_EvictTeam(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2")
	team := f.activeTeam(t, "blue", "s1", "s2")
	vm, err := f.mgr.CreateVm(ctx, team.ID, small, "s1")
	require.NoError(t, err)
	_, err = f.mgr.AddOwner(ctx, team.ID, vm.ID, "s2")
	require.NoError(t, err)

	require.NoError(t, f.mgr.EvictTeam(ctx, team.ID))

	_, err = f.mgr.GetTeam(ctx, team.ID)
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)
	assert.ErrorIs(t, f.mgr.EvictTeam(ctx, team.ID), domain.ErrTeamNotFound)

	var count int
	require.NoError(t, f.mgr.ds.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM vm_instances").Scan(&count))
	assert.Zero(t, count)
	require.NoError(t, f.mgr.ds.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM vm_owners").Scan(&count))
	assert.Zero(t, count)

	available, err := f.mgr.AvailableStudents(ctx, f.course.ID)
	require.NoError(t, err)
	assert.Len(t, available, 2, "evicted members can form a new team")
}

func TestManager_ConcurrentCreateNeverExceedsCaps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2")
	team := f.activeTeam(t, "blue", "s1", "s2")

	var admitted, rejected atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := f.mgr.CreateVm(gctx, team.ID, domain.Size{Vcpu: 1, Memory: 1, Disk: 1}, "s1")
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, domain.ErrTooManyInstances):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(2), admitted.Load())
	assert.Equal(t, int32(8), rejected.Load())

	got, err := f.mgr.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Len(t, got.Vms, 2)
	assert.NoError(t, got.CheckInvariants())
	assert.Zero(t, f.mgr.teamLocks.size())
}

func TestManager_ConcurrentStartAdmitsOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2")
	team := f.activeTeam(t, "blue", "s1", "s2")

	var ids []int64
	for i := 0; i < 2; i++ {
		vm, err := f.mgr.CreateVm(ctx, team.ID, domain.Size{Vcpu: 1, Memory: 1, Disk: 1}, "s1")
		require.NoError(t, err)
		ids = append(ids, vm.ID)
	}

	var started atomic.Int32
	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := f.mgr.ChangeVmStatus(ctx, team.ID, id, domain.VmRunning, "s1")
			if err == nil {
				started.Add(1)
				return nil
			}
			if errors.Is(err, domain.ErrTooManyRunningInstances) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), started.Load())
}

func TestManager_CancelledWaitLeavesTeamUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2")
	team := f.activeTeam(t, "blue", "s1", "s2")

	unlock, err := f.mgr.teamLocks.lock(ctx, team.ID)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = f.mgr.CreateVm(waitCtx, team.ID, small, "s1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	unlock()

	got, err := f.mgr.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Vms)
	assert.Zero(t, f.mgr.teamLocks.size())

	_, err = f.mgr.CreateVm(ctx, team.ID, small, "s1")
	assert.NoError(t, err)
}

func TestManager_RejectsNonFiniteQuantities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "s1", "s2")
	team := f.activeTeam(t, "blue", "s1", "s2")

	_, err := f.mgr.CreateVm(ctx, team.ID, domain.Size{Vcpu: 1, Memory: math.NaN(), Disk: 1}, "s1")
	assert.ErrorIs(t, err, domain.ErrInvalidSize)

	vm, err := f.mgr.CreateVm(ctx, team.ID, small, "s1")
	require.NoError(t, err)
	_, err = f.mgr.ResizeVm(ctx, team.ID, vm.ID, domain.Size{Vcpu: 1, Memory: 1, Disk: math.Inf(1)}, "s1")
	assert.ErrorIs(t, err, domain.ErrInvalidSize)

	caps := testCaps
	caps.MemoryMax = math.NaN()
	_, err = f.mgr.UpdateTeamCaps(ctx, team.ID, caps)
	assert.ErrorIs(t, err, domain.ErrInvalidCaps)

	_, err = f.mgr.CreateCourse(ctx, domain.Course{
		Name: "Broken", Acronym: "BR", MinMembers: 1, MaxMembers: 2,
		Caps: domain.Caps{VcpuMax: 1, MemoryMax: 1, DiskMax: math.Inf(1), MaxInstances: 1, MaxRunningInstances: 1},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := f.mgr.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	require.Len(t, got.Vms, 1)
	assert.Equal(t, small, got.Vms[0].Size)
	assert.Equal(t, testCaps, got.Caps)
}

func TestManager_IndependentTeams(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a1", "a2", "b1", "b2", "c1", "c2")
	teams := []*aggregate.Team{
		f.activeTeam(t, "alpha", "a1", "a2"),
		f.activeTeam(t, "bravo", "b1", "b2"),
		f.activeTeam(t, "charlie", "c1", "c2"),
	}

	var g errgroup.Group
	for _, team := range teams {
		team := team
		for i := 0; i < 2; i++ {
			i := i
			g.Go(func() error {
				_, err := f.mgr.CreateVm(ctx, team.ID, small, team.Members[i])
				return err
			})
		}
	}
	require.NoError(t, g.Wait())

	for _, team := range teams {
		report, err := f.mgr.TeamUsage(ctx, team.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Usage.Instances, fmt.Sprintf("team %s", team.Name))
	}
}

func TestManager_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	f := newFixture(t, "s1", "s2")
	f.mgr.metrics = m
	team := f.activeTeam(t, "blue", "s1", "s2")

	vm, err := f.mgr.CreateVm(ctx, team.ID, small, "s1")
	require.NoError(t, err)
	_, err = f.mgr.ChangeVmStatus(ctx, team.ID, vm.ID, domain.VmRunning, "s1")
	require.NoError(t, err)
	_, err = f.mgr.CreateVm(ctx, team.ID, domain.Size{Vcpu: 3}, "s1")
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "labpool_quota_admissions_total")
	assert.Contains(t, names, "labpool_vm_status_transitions_total")
}
