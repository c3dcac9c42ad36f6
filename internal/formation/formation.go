// Package formation validates team formation requests before any invitation
// is sent. Validation is pure: it reads the course and its roster and never
// touches existing teams.
package formation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/jbweber/homelab/labpool/internal/domain"
)

// Request is a proposal to form a team.
type Request struct {
	TeamName          string
	ProposedMemberIDs []string
	RequesterID       string
	Deadline          time.Time
}

// TeamMembership is an existing team of the course and its members.
type TeamMembership struct {
	Name    string
	Members []string
}

// Roster is the course context a request is validated against.
type Roster struct {
	Known    map[string]bool // every student id that exists
	Enrolled map[string]bool // students enrolled in the course
	Teams    []TeamMembership
}

// Formation is a validated request, ready for the invitation workflow.
type Formation struct {
	CourseID    int64
	TeamName    string
	RequesterID string
	InviteeIDs  []string
	Token       string
	Deadline    time.Time
}

// Members returns the requester followed by the invitees.
func (f *Formation) Members() []string {
	return append([]string{f.RequesterID}, f.InviteeIDs...)
}

// Validator checks formation requests. NewToken and Now are replaceable for tests.
type Validator struct {
	NewToken func() string
	Now      func() time.Time
}

// NewValidator returns a validator issuing random UUID tokens.
func NewValidator() *Validator {
	return &Validator{
		NewToken: uuid.NewString,
		Now:      time.Now,
	}
}

// Validate runs every formation rule in a fixed order and returns the first
// failure, or a formation descriptor on success.
func (v *Validator) Validate(req Request, course domain.Course, roster Roster) (*Formation, error) {
	if strings.TrimSpace(req.TeamName) == "" {
		return nil, fmt.Errorf("%w: team name is required", domain.ErrInvalidRequest)
	}
	if !req.Deadline.After(v.Now()) {
		return nil, fmt.Errorf("%w: deadline %s is not in the future", domain.ErrInvalidRequest, req.Deadline.Format(time.RFC3339))
	}

	if !course.Enabled {
		return nil, fmt.Errorf("%w: course %d", domain.ErrCourseNotEnabled, course.ID)
	}

	if lo.ContainsBy(roster.Teams, func(t TeamMembership) bool { return t.Name == req.TeamName }) {
		return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateTeamName, req.TeamName)
	}

	if !lo.Contains(req.ProposedMemberIDs, req.RequesterID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRequesterNotIncluded, req.RequesterID)
	}

	n := len(req.ProposedMemberIDs)
	if n < course.MinMembers {
		return nil, fmt.Errorf("%w: given %d, should be at least %d", domain.ErrBelowMinimumMembers, n, course.MinMembers)
	}
	if n > course.MaxMembers {
		return nil, fmt.Errorf("%w: given %d, should be at most %d", domain.ErrAboveMaximumMembers, n, course.MaxMembers)
	}

	if dups := lo.FindDuplicates(req.ProposedMemberIDs); len(dups) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateMember, strings.Join(dups, ", "))
	}

	for _, id := range req.ProposedMemberIDs {
		if !roster.Known[id] {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownStudent, id)
		}
	}
	for _, id := range req.ProposedMemberIDs {
		if !roster.Enrolled[id] {
			return nil, fmt.Errorf("%w: %s in course %d", domain.ErrStudentNotEnrolled, id, course.ID)
		}
	}

	for _, team := range roster.Teams {
		if taken := lo.Intersect(team.Members, req.ProposedMemberIDs); len(taken) > 0 {
			return nil, fmt.Errorf("%w: %s in team %q", domain.ErrStudentAlreadyTeamed, taken[0], team.Name)
		}
	}

	return &Formation{
		CourseID:    course.ID,
		TeamName:    req.TeamName,
		RequesterID: req.RequesterID,
		InviteeIDs:  lo.Without(req.ProposedMemberIDs, req.RequesterID),
		Token:       v.NewToken(),
		Deadline:    req.Deadline,
	}, nil
}
