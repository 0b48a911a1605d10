// Package httpx provides JSON response utilities for the REST surface.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the wire shape of every rejection: an HTTP status plus a
// short machine-readable code. Detail stays generic for auth failures.
type ErrorBody struct {
	Code   string `json:"code"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends an error response with a machine-readable code.
func Error(w http.ResponseWriter, status int, code, detail string) {
	JSON(w, status, ErrorBody{Code: code, Status: status, Detail: detail})
}

// DecodeJSON decodes the JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
