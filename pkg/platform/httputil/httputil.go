// Package httputil writes the JSON response envelope shared by every endpoint:
//
//	{"success": true, "message": "...", "data": {...}}
//	{"success": false, "message": "..."}
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "kycgate/pkg/domain-errors"
)

// InternalErrorMessage is shown to clients in place of unexpected failures.
const InternalErrorMessage = "Internal server error"

// Envelope is the response body for all API endpoints.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes a successful envelope with the given status.
func WriteJSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Success: true, Message: message, Data: data})
}

// WriteError translates an error into an envelope. Domain errors keep their
// message; everything else is reported as an internal error without detail.
func WriteError(w http.ResponseWriter, err error) {
	de, ok := dErrors.As(err)
	if !ok || de.Code == dErrors.CodeInternal {
		write(w, http.StatusInternalServerError, Envelope{Message: InternalErrorMessage})
		return
	}
	write(w, StatusFor(de.Code), Envelope{Message: de.Message})
}

// WriteFailure writes a failure envelope with an explicit status, for
// transport-level errors that have no domain code.
func WriteFailure(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Message: message, Data: data})
}

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeStateConflict:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
