package api

import (
	"time"

	"github.com/samber/lo"

	"github.com/jbweber/homelab/labpool/internal/aggregate"
	"github.com/jbweber/homelab/labpool/internal/domain"
	"github.com/jbweber/homelab/labpool/internal/formation"
	"github.com/jbweber/homelab/labpool/internal/quota"
	"github.com/jbweber/homelab/labpool/internal/teams"
)

type ProposeTeamRequest struct {
	TeamName  string    `json:"team_name" validate:"required,max=100"`
	MemberIDs []string  `json:"member_ids" validate:"required,min=1,dive,required"`
	Deadline  time.Time `json:"deadline" validate:"required"`
}

type ProposalResponse struct {
	Token       string    `json:"token"`
	CourseID    int64     `json:"course_id"`
	TeamName    string    `json:"team_name"`
	RequesterID string    `json:"requester_id"`
	InviteeIDs  []string  `json:"invitee_ids"`
	Deadline    time.Time `json:"deadline"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=RUNNING SUSPENDED"`
}

type AddOwnersRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

type OwnerResult struct {
	StudentID string `json:"student_id"`
	Added     bool   `json:"added"`
}

type TeamResponse struct {
	ID       int64       `json:"id"`
	CourseID int64       `json:"course_id"`
	Name     string      `json:"name"`
	Status   string      `json:"status"`
	Caps     domain.Caps `json:"caps"`
	Members  []string    `json:"members"`
	Version  int64       `json:"version"`
}

type VmResponse struct {
	ID        int64       `json:"id"`
	TeamID    int64       `json:"team_id"`
	VmModelID int64       `json:"vm_model_id"`
	Size      domain.Size `json:"size"`
	Status    string      `json:"status"`
	CreatorID string      `json:"creator_id"`
	Owners    []string    `json:"owners"`
	CreatedAt time.Time   `json:"created_at"`
}

type UsageResponse struct {
	TeamID    int64       `json:"team_id"`
	Usage     quota.Usage `json:"usage"`
	Caps      domain.Caps `json:"caps"`
	Available quota.Usage `json:"available"`
}

type StudentResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
}

func proposalResponse(f *formation.Formation) ProposalResponse {
	return ProposalResponse{
		Token:       f.Token,
		CourseID:    f.CourseID,
		TeamName:    f.TeamName,
		RequesterID: f.RequesterID,
		InviteeIDs:  lo.Ternary(f.InviteeIDs == nil, []string{}, f.InviteeIDs),
		Deadline:    f.Deadline,
	}
}

func teamResponse(t *aggregate.Team) TeamResponse {
	return TeamResponse{
		ID:       t.ID,
		CourseID: t.CourseID,
		Name:     t.Name,
		Status:   string(t.Status),
		Caps:     t.Caps,
		Members:  lo.Ternary(t.Members == nil, []string{}, t.Members),
		Version:  t.Version,
	}
}

func vmResponse(vm domain.VmInstance) VmResponse {
	return VmResponse{
		ID:        vm.ID,
		TeamID:    vm.TeamID,
		VmModelID: vm.VmModelID,
		Size:      vm.Size,
		Status:    vm.Status.String(),
		CreatorID: vm.CreatorID,
		Owners:    lo.Ternary(vm.Owners == nil, []string{}, vm.Owners),
		CreatedAt: vm.CreatedAt,
	}
}

func usageResponse(u *teams.UsageReport) UsageResponse {
	return UsageResponse{TeamID: u.TeamID, Usage: u.Usage, Caps: u.Caps, Available: u.Available}
}

func studentResponse(s domain.Student) StudentResponse {
	return StudentResponse{ID: s.ID, FirstName: s.FirstName, LastName: s.LastName, Email: s.Email}
}
