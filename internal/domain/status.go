package domain

import "fmt"

// VmStatus is the status of a VM instance
type VmStatus string

const (
	VmSuspended VmStatus = "SUSPENDED"
	VmRunning   VmStatus = "RUNNING"
)

// ValidTransitions defines every allowed status change. Anything not listed
// here, including staying in the same status, is rejected.
var ValidTransitions = map[VmStatus][]VmStatus{
	VmSuspended: {
		VmRunning, // start, subject to the running-instances cap
	},
	VmRunning: {
		VmSuspended, // suspend, never needs admission
	},
}

// CanTransitionTo checks if a transition from current status to target is valid
func (s VmStatus) CanTransitionTo(target VmStatus) error {
	allowed, ok := ValidTransitions[s]
	if !ok {
		return fmt.Errorf("%w: unknown status: %s", ErrInvalidTransition, s)
	}

	for _, valid := range allowed {
		if valid == target {
			return nil
		}
	}

	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, s, target)
}

// RunningDelta is the change in running-instance count caused by moving from s to target.
func (s VmStatus) RunningDelta(target VmStatus) int {
	switch {
	case s != VmRunning && target == VmRunning:
		return 1
	case s == VmRunning && target != VmRunning:
		return -1
	default:
		return 0
	}
}

// ParseVmStatus converts user input into a known status.
func ParseVmStatus(s string) (VmStatus, error) {
	switch VmStatus(s) {
	case VmSuspended, VmRunning:
		return VmStatus(s), nil
	default:
		return "", fmt.Errorf("%w: unknown status: %q", ErrInvalidTransition, s)
	}
}

func (s VmStatus) String() string {
	return string(s)
}
