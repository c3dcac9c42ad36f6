package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below wraps exactly one of these, so
// callers can match either the category or the precise reason with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrQuota      = errors.New("quota exceeded")
	ErrState      = errors.New("invalid state")
	ErrPermission = errors.New("permission denied")
	ErrNotFound   = errors.New("not found")
	ErrCaps       = errors.New("invalid caps")
	ErrTeam       = errors.New("team unavailable")
	ErrConflict   = errors.New("concurrent modification")
)

// Formation errors
var (
	ErrInvalidRequest       = fmt.Errorf("%w: malformed formation request", ErrValidation)
	ErrCourseNotEnabled     = fmt.Errorf("%w: course not enabled", ErrValidation)
	ErrDuplicateTeamName    = fmt.Errorf("%w: team name already used", ErrValidation)
	ErrRequesterNotIncluded = fmt.Errorf("%w: requester not among proposed members", ErrValidation)
	ErrBelowMinimumMembers  = fmt.Errorf("%w: not enough members", ErrValidation)
	ErrAboveMaximumMembers  = fmt.Errorf("%w: too many members", ErrValidation)
	ErrDuplicateMember      = fmt.Errorf("%w: duplicated member", ErrValidation)
	ErrUnknownStudent       = fmt.Errorf("%w: unknown student", ErrValidation)
	ErrStudentNotEnrolled   = fmt.Errorf("%w: student not enrolled in course", ErrValidation)
	ErrStudentAlreadyTeamed = fmt.Errorf("%w: student already has a team", ErrValidation)
	ErrInvalidSize          = fmt.Errorf("%w: negative vm size", ErrValidation)
)

// Quota errors
var (
	ErrTooManyInstances        = fmt.Errorf("%w: too many vm instances", ErrQuota)
	ErrTooManyRunningInstances = fmt.Errorf("%w: too many running vm instances", ErrQuota)
	ErrVcpuExceeded            = fmt.Errorf("%w: vcpu exceeded", ErrQuota)
	ErrMemoryExceeded          = fmt.Errorf("%w: memory exceeded", ErrQuota)
	ErrDiskExceeded            = fmt.Errorf("%w: disk exceeded", ErrQuota)
)

// State errors
var (
	ErrInvalidTransition = fmt.Errorf("%w: invalid vm status transition", ErrState)
	ErrNotSuspended      = fmt.Errorf("%w: vm must be suspended", ErrState)
)

// Permission errors
var (
	ErrPermissionDenied = fmt.Errorf("%w: requester is not a vm owner", ErrPermission)
	ErrNotTeamMember    = fmt.Errorf("%w: requester is not a team member", ErrPermission)
)

// Not found errors
var (
	ErrCourseNotFound   = fmt.Errorf("course %w", ErrNotFound)
	ErrTeamNotFound     = fmt.Errorf("team %w", ErrNotFound)
	ErrVmNotFound       = fmt.Errorf("vm instance %w", ErrNotFound)
	ErrStudentNotFound  = fmt.Errorf("student %w", ErrNotFound)
	ErrVmModelNotFound  = fmt.Errorf("vm model %w", ErrNotFound)
	ErrProposalNotFound = fmt.Errorf("proposal %w", ErrNotFound)
)

// Caps errors
var (
	ErrCapsIncompatibleWithCurrentUsage = fmt.Errorf("%w: caps below current usage", ErrCaps)
	ErrInvalidCaps                      = fmt.Errorf("%w: negative caps", ErrCaps)
)

// Team errors
var (
	ErrTeamNotActive  = fmt.Errorf("%w: team not active", ErrTeam)
	ErrTeamNotPending = fmt.Errorf("%w: team already active", ErrTeam)
)

// Code returns a stable machine-readable code for the category of err, or ""
// when err does not come from the domain. Caps errors take precedence over
// the quota reason they may wrap.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "invalid_request"
	case errors.Is(err, ErrCaps):
		return "invalid_caps"
	case errors.Is(err, ErrQuota):
		return "quota_exceeded"
	case errors.Is(err, ErrState):
		return "invalid_state"
	case errors.Is(err, ErrPermission):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTeam):
		return "team_unavailable"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return ""
	}
}
