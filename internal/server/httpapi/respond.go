// Package httpapi exposes the LayerForge server over HTTP/JSON.
package httpapi

import (
	"encoding/json"
	"net/http"
)

// APIError is the structured error body. Code is machine-readable; handlers
// must branch on it, never on Message text.
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Code: code, Message: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return false
	}
	return true
}
