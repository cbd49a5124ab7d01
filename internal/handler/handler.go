// Package handler contains HTTP request handlers for the route-search API.
//
// All error responses share one JSON shape:
//
//	{"error": {"code": "...", "message": "...", "details": [...]}}
//
// where details, when present, is a list of {path, message} validation
// findings.
package handler

import (
	"encoding/json"
	"net/http"
)

// ErrorDetail is one validation finding.
type ErrorDetail struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// APIError is the error payload of every non-2xx response.
type APIError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes the shared error envelope.
func writeError(w http.ResponseWriter, status int, code, message string, details ...ErrorDetail) {
	writeJSON(w, status, errorEnvelope{Error: APIError{
		Code:    code,
		Message: message,
		Details: details,
	}})
}
