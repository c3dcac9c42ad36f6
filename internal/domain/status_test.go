package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVmStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to VmStatus
		wantErr  bool
	}{
		{VmSuspended, VmRunning, false},
		{VmRunning, VmSuspended, false},
		{VmSuspended, VmSuspended, true},
		{VmRunning, VmRunning, true},
		{VmStatus("PAUSED"), VmRunning, true},
		{VmSuspended, VmStatus("PAUSED"), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := tt.from.CanTransitionTo(tt.to)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.ErrorIs(t, err, ErrState)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVmStatus_RunningDelta(t *testing.T) {
	assert.Equal(t, 1, VmSuspended.RunningDelta(VmRunning))
	assert.Equal(t, -1, VmRunning.RunningDelta(VmSuspended))
	assert.Equal(t, 0, VmRunning.RunningDelta(VmRunning))
	assert.Equal(t, 0, VmSuspended.RunningDelta(VmSuspended))
}

func TestParseVmStatus(t *testing.T) {
	s, err := ParseVmStatus("RUNNING")
	require.NoError(t, err)
	assert.Equal(t, VmRunning, s)

	_, err = ParseVmStatus("running")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestErrorCategories(t *testing.T) {
	assert.True(t, errors.Is(ErrVcpuExceeded, ErrQuota))
	assert.True(t, errors.Is(ErrNotSuspended, ErrState))
	assert.True(t, errors.Is(ErrPermissionDenied, ErrPermission))
	assert.True(t, errors.Is(ErrVmNotFound, ErrNotFound))
	assert.True(t, errors.Is(ErrCapsIncompatibleWithCurrentUsage, ErrCaps))
	assert.True(t, errors.Is(ErrDuplicateMember, ErrValidation))
	assert.False(t, errors.Is(ErrVcpuExceeded, ErrMemoryExceeded))
}

func TestSizeAndCapsValidate(t *testing.T) {
	assert.NoError(t, Size{Vcpu: 0, Memory: 0, Disk: 0}.Validate())
	assert.ErrorIs(t, Size{Vcpu: 1, Memory: -1}.Validate(), ErrInvalidSize)

	assert.NoError(t, Caps{VcpuMax: 4, MemoryMax: 8, DiskMax: 100, MaxInstances: 2, MaxRunningInstances: 1}.Validate())
	assert.ErrorIs(t, Caps{MaxInstances: -1}.Validate(), ErrInvalidCaps)

	nan, inf := math.NaN(), math.Inf(1)
	for _, f := range []float64{nan, inf, -inf} {
		assert.ErrorIs(t, Size{Vcpu: 1, Memory: f, Disk: 1}.Validate(), ErrInvalidSize, "memory %g", f)
		assert.ErrorIs(t, Size{Vcpu: 1, Memory: 1, Disk: f}.Validate(), ErrInvalidSize, "disk %g", f)
		assert.ErrorIs(t, Caps{MemoryMax: f}.Validate(), ErrInvalidCaps, "memory max %g", f)
		assert.ErrorIs(t, Caps{DiskMax: f}.Validate(), ErrInvalidCaps, "disk max %g", f)
	}
}

func TestVmInstance_IsOwner(t *testing.T) {
	vm := VmInstance{CreatorID: "s1", Owners: []string{"s1", "s2"}}
	assert.True(t, vm.IsOwner("s1"))
	assert.True(t, vm.IsOwner("s2"))
	assert.False(t, vm.IsOwner("s3"))
}

func TestProposal_Members(t *testing.T) {
	p := Proposal{RequesterID: "s1", Invitees: []Invitee{{StudentID: "s2"}, {StudentID: "s3"}}}
	assert.Equal(t, []string{"s1", "s2", "s3"}, p.Members())
}

func TestCode(t *testing.T) {
	assert.Equal(t, "quota_exceeded", Code(fmt.Errorf("create: %w", ErrTooManyInstances)))
	assert.Equal(t, "invalid_caps", Code(fmt.Errorf("%w: %w", ErrCapsIncompatibleWithCurrentUsage, ErrVcpuExceeded)))
	assert.Equal(t, "not_found", Code(ErrTeamNotFound))
	assert.Equal(t, "forbidden", Code(ErrNotTeamMember))
	assert.Equal(t, "invalid_state", Code(ErrNotSuspended))
	assert.Equal(t, "team_unavailable", Code(ErrTeamNotActive))
	assert.Equal(t, "conflict", Code(ErrConflict))
	assert.Equal(t, "invalid_request", Code(ErrDuplicateMember))
	assert.Equal(t, "", Code(errors.New("disk on fire")))
	assert.Equal(t, "", Code(nil))
}
