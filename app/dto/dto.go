// Package dto defines the request and response shapes of the trigger surface.
package dto

// APIResponse is the JSON envelope every trigger endpoint answers with
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// ErrorDetail carries a machine-readable error code plus optional context,
// such as field-level validation failures
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}
