package domain

import (
	"fmt"
)

// FailureKind classifies a failed backend call
type FailureKind string

const (
	FailureTimeout           FailureKind = "timeout"
	FailureHTTPError         FailureKind = "http_error"
	FailureTransportError    FailureKind = "transport_error"
	FailureMalformedResponse FailureKind = "malformed_response"
)

// Backend API names, used in failures and logs
const (
	ServiceDiagnostic = "diagnostic"
	ServiceSolutions  = "solutions"
)

// APIFailure is returned instead of a result when a backend call fails.
// Calls are never retried; the user re-triggers the action.
type APIFailure struct {
	Service    string      `json:"service"`
	Kind       FailureKind `json:"kind"`
	Message    string      `json:"message"`
	HTTPStatus int         `json:"httpStatus,omitempty"`
	Debug      *Exchange   `json:"debug,omitempty"`
}

// Error implements the error interface
func (f *APIFailure) Error() string {
	if f.HTTPStatus != 0 {
		return fmt.Sprintf("%s api: %s (status %d): %s", f.Service, f.Kind, f.HTTPStatus, f.Message)
	}
	return fmt.Sprintf("%s api: %s: %s", f.Service, f.Kind, f.Message)
}
