// Package respond writes the JSON envelope every LinkHub endpoint answers with.
package respond

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error describes a failed request.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Error codes.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeInvalidJSON    = "INVALID_JSON"
	CodeNotFound       = "NOT_FOUND"
	CodeLinkNotFound   = "LINK_NOT_FOUND"
	CodeProfileMissing = "PROFILE_NOT_FOUND"
	CodeUsernameTaken  = "USERNAME_TAKEN"
	CodeUnauthenticate = "UNAUTHENTICATED"
	CodeForbidden      = "FORBIDDEN"
	CodeSaveInProgress = "SAVE_IN_PROGRESS"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternal       = "INTERNAL_ERROR"
)

// JSON writes data in a success envelope when status is 2xx.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, Envelope{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// Fail writes an error envelope.
func Fail(w http.ResponseWriter, status int, code, message string, details interface{}) {
	write(w, status, Envelope{
		Error: &Error{Code: code, Message: message, Details: details},
	})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
