// Package quota implements team admission control: deciding whether a proposed
// resource change keeps a team's aggregate usage inside its caps.
//
// Usage is always recomputed from the live VM collection; nothing here keeps
// running totals between calls.
package quota

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/jbweber/homelab/labpool/internal/domain"
)

// Usage is the aggregate consumption of a team.
type Usage struct {
	Vcpu      int     `json:"vcpu"`
	Memory    float64 `json:"memory"`
	Disk      float64 `json:"disk"`
	Instances int     `json:"instances"`
	Running   int     `json:"running"`
}

// Delta is a proposed change to a team's usage.
type Delta struct {
	Instances int
	Running   int
	Size      domain.Size
}

// UsageOf recomputes usage from a VM collection.
func UsageOf(vms []domain.VmInstance) Usage {
	return Usage{
		Vcpu:      lo.SumBy(vms, func(vm domain.VmInstance) int { return vm.Size.Vcpu }),
		Memory:    lo.SumBy(vms, func(vm domain.VmInstance) float64 { return vm.Size.Memory }),
		Disk:      lo.SumBy(vms, func(vm domain.VmInstance) float64 { return vm.Size.Disk }),
		Instances: len(vms),
		Running:   lo.CountBy(vms, func(vm domain.VmInstance) bool { return vm.Status == domain.VmRunning }),
	}
}

// Admit decides whether delta may be applied on top of usage under caps.
// Checks run in a fixed order and the first failure is returned.
func Admit(usage Usage, delta Delta, caps domain.Caps) error {
	if n := usage.Instances + delta.Instances; n > caps.MaxInstances {
		return fmt.Errorf("%w: %d > %d", domain.ErrTooManyInstances, n, caps.MaxInstances)
	}
	if n := usage.Running + delta.Running; n > caps.MaxRunningInstances {
		return fmt.Errorf("%w: %d > %d", domain.ErrTooManyRunningInstances, n, caps.MaxRunningInstances)
	}
	if n := usage.Vcpu + delta.Size.Vcpu; n > caps.VcpuMax {
		return fmt.Errorf("%w: %d > %d", domain.ErrVcpuExceeded, n, caps.VcpuMax)
	}
	if n := usage.Memory + delta.Size.Memory; exceeds(n, caps.MemoryMax) {
		return fmt.Errorf("%w: %g > %g", domain.ErrMemoryExceeded, n, caps.MemoryMax)
	}
	if n := usage.Disk + delta.Size.Disk; exceeds(n, caps.DiskMax) {
		return fmt.Errorf("%w: %g > %g", domain.ErrDiskExceeded, n, caps.DiskMax)
	}
	return nil
}

// Epsilon absorbs float rounding when GB totals are compared against caps.
const Epsilon = 1e-9

// exceeds reports whether total is over limit by more than rounding error.
func exceeds(total, limit float64) bool {
	return total-limit > Epsilon
}

// Fits reports whether an existing usage already satisfies caps.
func Fits(usage Usage, caps domain.Caps) error {
	return Admit(usage, Delta{}, caps)
}

// Available is the headroom left under caps. Values never go below zero.
func Available(usage Usage, caps domain.Caps) Usage {
	return Usage{
		Vcpu:      max(caps.VcpuMax-usage.Vcpu, 0),
		Memory:    max(caps.MemoryMax-usage.Memory, 0),
		Disk:      max(caps.DiskMax-usage.Disk, 0),
		Instances: max(caps.MaxInstances-usage.Instances, 0),
		Running:   max(caps.MaxRunningInstances-usage.Running, 0),
	}
}

// Reason returns a short machine-readable label for a quota error, or "" if
// err is not a quota error.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrTooManyInstances):
		return "too_many_instances"
	case errors.Is(err, domain.ErrTooManyRunningInstances):
		return "too_many_running_instances"
	case errors.Is(err, domain.ErrVcpuExceeded):
		return "vcpu_exceeded"
	case errors.Is(err, domain.ErrMemoryExceeded):
		return "memory_exceeded"
	case errors.Is(err, domain.ErrDiskExceeded):
		return "disk_exceeded"
	default:
		return ""
	}
}
