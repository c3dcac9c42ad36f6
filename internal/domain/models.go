package domain

import "time"

// Course represents a course that hands out VM capacity to its teams
type Course struct {
	ID         int64  // Unique identifier
	Name       string // Course name, unique
	Acronym    string // Short name (e.g., "AI")
	Enabled    bool   // Whether team formation is open
	MinMembers int    // Minimum team size
	MaxMembers int    // Maximum team size
	Caps       Caps   // Default caps copied into every new team
	VmModelID  *int64 // VM template used by the course's teams (optional)
}

// Student represents a student who can be enrolled in courses and join teams
type Student struct {
	ID        string // Matriculation number
	FirstName string
	LastName  string
	Email     string
}

// VmModel is the VM template a course provides to its teams
type VmModel struct {
	ID            int64  // Unique identifier
	CourseID      int64  // Foreign key to Course
	Name          string // Template name
	Configuration string // Free-form template configuration
}

// TeamStatus is the lifecycle state of a team
type TeamStatus string

const (
	TeamPending TeamStatus = "PENDING"
	TeamActive  TeamStatus = "ACTIVE"
)

// Team is the persisted header of a team; members and VMs live in the aggregate
type Team struct {
	ID       int64
	CourseID int64
	Name     string
	Status   TeamStatus
	Caps     Caps
	Version  int64 // Optimistic concurrency stamp, bumped on every save
}

// VmInstance is a virtual machine owned by exactly one team
type VmInstance struct {
	ID        int64
	TeamID    int64
	VmModelID int64
	Size      Size
	Status    VmStatus
	CreatorID string
	Owners    []string // Creator first, then owners in the order they were added
	CreatedAt time.Time
}

// IsOwner reports whether the student has management rights over the instance.
func (vm *VmInstance) IsOwner(studentID string) bool {
	for _, o := range vm.Owners {
		if o == studentID {
			return true
		}
	}
	return false
}

// InvitationResponse is an invitee's answer to a team proposal
type InvitationResponse string

const (
	ResponseNotReplied InvitationResponse = "NOT_REPLY"
	ResponseAccepted   InvitationResponse = "ACCEPTED"
	ResponseRejected   InvitationResponse = "REJECTED"
)

// Invitee pairs a proposed member with their response
type Invitee struct {
	StudentID string
	Response  InvitationResponse
}

// Proposal is a validated team formation waiting on the invitation workflow
type Proposal struct {
	ID          int64
	Token       string // Opaque correlation token
	CourseID    int64
	TeamName    string
	RequesterID string
	Invitees    []Invitee
	Deadline    time.Time
	CreatedAt   time.Time
}

// Members returns the requester followed by every invitee.
func (p *Proposal) Members() []string {
	members := make([]string, 0, len(p.Invitees)+1)
	members = append(members, p.RequesterID)
	for _, inv := range p.Invitees {
		members = append(members, inv.StudentID)
	}
	return members
}
