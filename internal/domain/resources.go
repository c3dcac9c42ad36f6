package domain

import (
	"fmt"
	"math"
)

// Size is the resource declaration of a VM instance. Memory and disk are in
// GB. Admission compares their float sums against caps with a small tolerance,
// so 0.1+0.2 fits under a cap of 0.3.
type Size struct {
	Vcpu   int     `json:"vcpu"`
	Memory float64 `json:"memory"`
	Disk   float64 `json:"disk"`
}

// Validate rejects negative or non-finite quantities.
func (s Size) Validate() error {
	if s.Vcpu < 0 || !quantity(s.Memory) || !quantity(s.Disk) {
		return fmt.Errorf("%w: vcpu=%d memory=%g disk=%g", ErrInvalidSize, s.Vcpu, s.Memory, s.Disk)
	}
	return nil
}

// Caps is the resource envelope of a team.
type Caps struct {
	VcpuMax             int     `json:"vcpu_max"`
	MemoryMax           float64 `json:"memory_max"`
	DiskMax             float64 `json:"disk_max"`
	MaxInstances        int     `json:"max_instances"`
	MaxRunningInstances int     `json:"max_running_instances"`
}

// Validate rejects negative or non-finite caps.
func (c Caps) Validate() error {
	if c.VcpuMax < 0 || !quantity(c.MemoryMax) || !quantity(c.DiskMax) || c.MaxInstances < 0 || c.MaxRunningInstances < 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidCaps, c)
	}
	return nil
}

// quantity reports whether f is finite and not negative. NaN fails every
// comparison, so it is rejected here rather than slipping past admission.
func quantity(f float64) bool {
	return f >= 0 && !math.IsInf(f, 1)
}
