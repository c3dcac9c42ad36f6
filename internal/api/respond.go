package api

import (
	"encoding/json"
	"net/http"

	"github.com/jbweber/homelab/labpool/internal/domain"
	"github.com/jbweber/homelab/labpool/internal/logger"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var statusByCode = map[string]int{
	"invalid_request":  http.StatusUnprocessableEntity,
	"invalid_caps":     http.StatusConflict,
	"quota_exceeded":   http.StatusConflict,
	"invalid_state":    http.StatusConflict,
	"team_unavailable": http.StatusConflict,
	"conflict":         http.StatusConflict,
	"forbidden":        http.StatusForbidden,
	"not_found":        http.StatusNotFound,
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.FromContext(r.Context()).WithError(err).Warn("failed to encode response")
	}
}

// writeError maps a domain error onto its status code. Anything that is not
// a domain error is logged and reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		logger.FromContext(r.Context()).WithError(err).Error("request failed")
		writeJSON(w, r, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
		return
	}
	writeJSON(w, r, status, ErrorResponse{Error: err.Error(), Code: code})
}

// badRequest reports malformed input that never reached the domain.
func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}
