package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jbweber/homelab/labpool/internal/domain"
)

var testCaps = domain.Caps{VcpuMax: 4, MemoryMax: 8, DiskMax: 100, MaxInstances: 2, MaxRunningInstances: 1}

func TestUsageOf(t *testing.T) {
	vms := []domain.VmInstance{
		{Size: domain.Size{Vcpu: 2, Memory: 4, Disk: 20}, Status: domain.VmRunning},
		{Size: domain.Size{Vcpu: 1, Memory: 1.5, Disk: 10}, Status: domain.VmSuspended},
	}

	u := UsageOf(vms)
	assert.Equal(t, Usage{Vcpu: 3, Memory: 5.5, Disk: 30, Instances: 2, Running: 1}, u)
	assert.Equal(t, Usage{}, UsageOf(nil))
}

func TestAdmit(t *testing.T) {
	tests := []struct {
		name  string
		usage Usage
		delta Delta
		want  error
	}{
		{
			name:  "fits exactly",
			usage: Usage{Vcpu: 2, Memory: 4, Disk: 20, Instances: 1},
			delta: Delta{Instances: 1, Size: domain.Size{Vcpu: 2, Memory: 4, Disk: 80}},
		},
		{
			name:  "instance count",
			usage: Usage{Vcpu: 4, Memory: 8, Disk: 40, Instances: 2},
			delta: Delta{Instances: 1, Size: domain.Size{Vcpu: 1, Memory: 1, Disk: 1}},
			want:  domain.ErrTooManyInstances,
		},
		{
			name:  "running count",
			usage: Usage{Instances: 2, Running: 1},
			delta: Delta{Running: 1},
			want:  domain.ErrTooManyRunningInstances,
		},
		{
			name:  "vcpu",
			usage: Usage{Vcpu: 2, Instances: 1},
			delta: Delta{Size: domain.Size{Vcpu: 3}},
			want:  domain.ErrVcpuExceeded,
		},
		{
			name:  "memory",
			usage: Usage{Memory: 7.5},
			delta: Delta{Size: domain.Size{Memory: 0.75}},
			want:  domain.ErrMemoryExceeded,
		},
		{
			name:  "disk",
			usage: Usage{Disk: 99},
			delta: Delta{Size: domain.Size{Disk: 2}},
			want:  domain.ErrDiskExceeded,
		},
		{
			name:  "instances checked before resources",
			usage: Usage{Vcpu: 4, Memory: 8, Disk: 100, Instances: 2, Running: 1},
			delta: Delta{Instances: 1, Running: 1, Size: domain.Size{Vcpu: 1, Memory: 1, Disk: 1}},
			want:  domain.ErrTooManyInstances,
		},
		{
			name:  "running checked before vcpu",
			usage: Usage{Vcpu: 4, Running: 1},
			delta: Delta{Running: 1, Size: domain.Size{Vcpu: 1}},
			want:  domain.ErrTooManyRunningInstances,
		},
		{
			name:  "shrinking delta always fits",
			usage: Usage{Vcpu: 4, Memory: 8, Disk: 100, Instances: 2, Running: 1},
			delta: Delta{Size: domain.Size{Vcpu: -1, Memory: -1, Disk: -1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Admit(tt.usage, tt.delta, testCaps)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, domain.ErrQuota)
		})
	}
}

func TestAdmit_FractionalGB(t *testing.T) {
	caps := domain.Caps{VcpuMax: 4, MemoryMax: 0.3, DiskMax: 0.3, MaxInstances: 3, MaxRunningInstances: 1}
	usage := UsageOf([]domain.VmInstance{{Size: domain.Size{Vcpu: 1, Memory: 0.1, Disk: 0.1}}})

	assert.NoError(t, Admit(usage, Delta{Instances: 1, Size: domain.Size{Vcpu: 1, Memory: 0.2, Disk: 0.2}}, caps))
	assert.ErrorIs(t, Admit(usage, Delta{Instances: 1, Size: domain.Size{Vcpu: 1, Memory: 0.21}}, caps), domain.ErrMemoryExceeded)
	assert.ErrorIs(t, Admit(usage, Delta{Instances: 1, Size: domain.Size{Vcpu: 1, Disk: 0.21}}, caps), domain.ErrDiskExceeded)
}

func TestFits(t *testing.T) {
	assert.NoError(t, Fits(Usage{Vcpu: 4, Memory: 8, Disk: 40, Instances: 2, Running: 1}, testCaps))
	assert.ErrorIs(t, Fits(Usage{Vcpu: 4}, domain.Caps{VcpuMax: 3, MemoryMax: 8, DiskMax: 100, MaxInstances: 2, MaxRunningInstances: 1}), domain.ErrVcpuExceeded)
}

func TestAvailable(t *testing.T) {
	a := Available(Usage{Vcpu: 3, Memory: 9, Disk: 40, Instances: 1, Running: 1}, testCaps)
	assert.Equal(t, Usage{Vcpu: 1, Memory: 0, Disk: 60, Instances: 1, Running: 0}, a)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "vcpu_exceeded", Reason(Admit(Usage{Vcpu: 4}, Delta{Size: domain.Size{Vcpu: 1}}, testCaps)))
	assert.Equal(t, "too_many_instances", Reason(domain.ErrTooManyInstances))
	assert.Equal(t, "", Reason(domain.ErrNotSuspended))
	assert.Equal(t, "", Reason(nil))
}
