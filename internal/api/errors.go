package api

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in ErrorResponse.Code.
const (
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(v)
}

// writeError replies with an ErrorResponse carrying the request's ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := r.Context().Value(ctxKeyRequestID).(string)
	writeJSON(w, status, ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: requestID,
	})
}
