package settlementhandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/realtyflow/settlement-engine/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Reload  bool                   `json:"reload,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the domain error taxonomy onto HTTP. Concurrent
// modifications additionally hint the client to reload its copy.
func writeError(w http.ResponseWriter, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Code:    string(domain.ErrorCodeInternalError),
			Message: "internal error",
		}})
		return
	}

	status := http.StatusInternalServerError
	reload := false
	switch de.Code {
	case domain.ErrorCodeValidationFailed:
		status = http.StatusBadRequest
	case domain.ErrorCodeStateViolation:
		status = http.StatusConflict
	case domain.ErrorCodeConcurrentModification:
		status = http.StatusConflict
		reload = true
	case domain.ErrorCodeNotFound:
		status = http.StatusNotFound
	case domain.ErrorCodeTransientFailure:
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    string(de.Code),
		Message: de.Message,
		Details: de.Details,
		Reload:  reload,
	}})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, domain.NewValidationError("body", "malformed request body"))
		return false
	}
	return true
}

// actor resolves the acting user from the back-office gateway header
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "unknown"
}
