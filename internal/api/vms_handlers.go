package api

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/jbweber/homelab/labpool/internal/domain"
)

// vmParams parses the team and VM ids of a /teams/{teamID}/vms/{vmID} route.
func vmParams(w http.ResponseWriter, r *http.Request) (teamID, vmID int64, ok bool) {
	if teamID, ok = idParam(w, r, "teamID"); !ok {
		return 0, 0, false
	}
	if vmID, ok = idParam(w, r, "vmID"); !ok {
		return 0, 0, false
	}
	return teamID, vmID, true
}

// listVmsHandler handles GET /api/v1/teams/{teamID}/vms
func (a *API) listVmsHandler(w http.ResponseWriter, r *http.Request) {
	teamID, ok := idParam(w, r, "teamID")
	if !ok {
		return
	}
	vms, err := a.teams.ListVms(r.Context(), teamID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lo.Map(vms, func(vm domain.VmInstance, _ int) VmResponse { return vmResponse(vm) }))
}

// createVmHandler handles POST /api/v1/teams/{teamID}/vms.
//
// Request: JSON body with "vcpu", "memory" and "disk" (GB).
// Responds 201 with the new suspended instance, or 409 when the team's caps
// would be exceeded.
func (a *API) createVmHandler(w http.ResponseWriter, r *http.Request) {
	teamID, ok := idParam(w, r, "teamID")
	if !ok {
		return
	}
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	var size domain.Size
	if !decode(w, r, &size) {
		return
	}
	vm, err := a.teams.CreateVm(r.Context(), teamID, size, requesterID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, vmResponse(*vm))
}

func (a *API) getVmHandler(w http.ResponseWriter, r *http.Request) {
	teamID, vmID, ok := vmParams(w, r)
	if !ok {
		return
	}
	vm, err := a.teams.GetVm(r.Context(), teamID, vmID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, vmResponse(*vm))
}

// resizeVmHandler handles PATCH /api/v1/teams/{teamID}/vms/{vmID}
func (a *API) resizeVmHandler(w http.ResponseWriter, r *http.Request) {
	teamID, vmID, ok := vmParams(w, r)
	if !ok {
		return
	}
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	var size domain.Size
	if !decode(w, r, &size) {
		return
	}
	vm, err := a.teams.ResizeVm(r.Context(), teamID, vmID, size, requesterID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, vmResponse(*vm))
}

// changeStatusHandler handles PUT /api/v1/teams/{teamID}/vms/{vmID}/status
func (a *API) changeStatusHandler(w http.ResponseWriter, r *http.Request) {
	teamID, vmID, ok := vmParams(w, r)
	if !ok {
		return
	}
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if !decode(w, r, &req) {
		return
	}
	target, err := domain.ParseVmStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	vm, err := a.teams.ChangeVmStatus(r.Context(), teamID, vmID, target, requesterID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, vmResponse(*vm))
}

// deleteVmHandler handles DELETE /api/v1/teams/{teamID}/vms/{vmID}.
// Only suspended instances can be deleted.
func (a *API) deleteVmHandler(w http.ResponseWriter, r *http.Request) {
	teamID, vmID, ok := vmParams(w, r)
	if !ok {
		return
	}
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	if err := a.teams.DeleteVm(r.Context(), teamID, vmID, requesterID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// addOwnersHandler handles POST /api/v1/teams/{teamID}/vms/{vmID}/owners.
//
// Only an owner may share an instance. The batch is applied atomically and
// the response reports, per student, whether they were newly added.
func (a *API) addOwnersHandler(w http.ResponseWriter, r *http.Request) {
	teamID, vmID, ok := vmParams(w, r)
	if !ok {
		return
	}
	requesterID, ok := requester(w, r)
	if !ok {
		return
	}
	var req AddOwnersRequest
	if !decode(w, r, &req) {
		return
	}

	// Owners are never removed, so a passing check stays valid.
	vm, err := a.teams.GetVm(r.Context(), teamID, vmID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !vm.IsOwner(requesterID) {
		writeError(w, r, domain.ErrPermissionDenied)
		return
	}

	added, err := a.teams.AddOwners(r.Context(), teamID, vmID, req.StudentIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lo.Map(req.StudentIDs, func(id string, i int) OwnerResult {
		return OwnerResult{StudentID: id, Added: added[i]}
	}))
}
