package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/jbweber/homelab/labpool/internal/aggregate"
	"github.com/jbweber/homelab/labpool/internal/domain"
	"github.com/jbweber/homelab/labpool/internal/formation"
)

// proposeTeamHandler handles POST /api/v1/courses/{courseID}/proposals.
//
// The requester must be among member_ids. Responds 201 with the proposal token.
func (a *API) proposeTeamHandler(w http.ResponseWriter, r *http.Request) {
	courseID, ok := idParam(w, r, "courseID")
	if !ok {
		return
	}
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	var req ProposeTeamRequest
	if !decode(w, r, &req) {
		return
	}

	f, err := a.teams.ProposeTeam(r.Context(), courseID, formation.Request{
		TeamName:          req.TeamName,
		ProposedMemberIDs: req.MemberIDs,
		RequesterID:       requesterID,
		Deadline:          req.Deadline,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, proposalResponse(f))
}

// registerTeamHandler handles POST /api/v1/proposals/{token}/register.
// It is called by the invitation workflow once every invitee accepted.
func (a *API) registerTeamHandler(w http.ResponseWriter, r *http.Request) {
	team, err := a.teams.RegisterTeam(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, teamResponse(team))
}

// listCourseTeamsHandler handles GET /api/v1/courses/{courseID}/teams
func (a *API) listCourseTeamsHandler(w http.ResponseWriter, r *http.Request) {
	courseID, ok := idParam(w, r, "courseID")
	if !ok {
		return
	}
	teams, err := a.teams.ListTeamsForCourse(r.Context(), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lo.Map(teams, func(t *aggregate.Team, _ int) TeamResponse { return teamResponse(t) }))
}

// availableStudentsHandler handles GET /api/v1/courses/{courseID}/available-students
func (a *API) availableStudentsHandler(w http.ResponseWriter, r *http.Request) {
	courseID, ok := idParam(w, r, "courseID")
	if !ok {
		return
	}
	students, err := a.teams.AvailableStudents(r.Context(), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lo.Map(students, func(s domain.Student, _ int) StudentResponse { return studentResponse(s) }))
}

func (a *API) getTeamHandler(w http.ResponseWriter, r *http.Request) {
	teamID, ok := idParam(w, r, "teamID")
	if !ok {
		return
	}
	team, err := a.teams.GetTeam(r.Context(), teamID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, teamResponse(team))
}

// enableTeamHandler handles POST /api/v1/teams/{teamID}/enable
func (a *API) enableTeamHandler(w http.ResponseWriter, r *http.Request) {
	teamID, ok := idParam(w, r, "teamID")
	if !ok {
		return
	}
	team, err := a.teams.EnableTeam(r.Context(), teamID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, teamResponse(team))
}

// evictTeamHandler handles DELETE /api/v1/teams/{teamID}.
// The team's VMs and ownerships are removed with it.
func (a *API) evictTeamHandler(w http.ResponseWriter, r *http.Request) {
	teamID, ok := idParam(w, r, "teamID")
	if !ok {
		return
	}
	if err := a.teams.EvictTeam(r.Context(), teamID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// updateCapsHandler handles PUT /api/v1/teams/{teamID}/caps.
// Responds 409 when current usage does not fit under the new caps.
func (a *API) updateCapsHandler(w http.ResponseWriter, r *http.Request) {
	teamID, ok := idParam(w, r, "teamID")
	if !ok {
		return
	}
	var caps domain.Caps
	if !decode(w, r, &caps) {
		return
	}
	team, err := a.teams.UpdateTeamCaps(r.Context(), teamID, caps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, teamResponse(team))
}

func (a *API) teamUsageHandler(w http.ResponseWriter, r *http.Request) {
	teamID, ok := idParam(w, r, "teamID")
	if !ok {
		return
	}
	report, err := a.teams.TeamUsage(r.Context(), teamID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, usageResponse(report))
}
