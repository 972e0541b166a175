package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/vitiscan/vitiscan-web/pkg/i18n"
)

// Standard error types
var (
	ErrNotFound          = errors.New("resource not found")
	ErrBadRequest        = errors.New("bad request")
	ErrInternal          = errors.New("internal server error")
	ErrValidation        = errors.New("validation error")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenInvalid      = errors.New("invalid token")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	MessageKey string            `json:"-"` // i18n key for localization
	Params     map[string]string `json:"-"` // Parameters for i18n interpolation
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Localize returns a localized version of the error message
func (e *AppError) Localize(ctx context.Context) string {
	if e.MessageKey == "" {
		return e.Message
	}
	return i18n.TFromContext(ctx, e.MessageKey, e.Params)
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		MessageKey: "errors.not_found",
		Params:     map[string]string{"resource": resource},
		StatusCode: http.StatusNotFound,
	}
}

// NotFoundWithKey creates a not found error with localized resource name
func NotFoundWithKey(resourceKey string) *AppError {
	resourceName := i18n.T("resources." + resourceKey)
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resourceName),
		MessageKey: "errors.not_found",
		Params:     map[string]string{"resource": resourceName},
		StatusCode: http.StatusNotFound,
	}
}

// BadRequestWithKey creates a bad request error whose message comes from key
func BadRequestWithKey(messageKey string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    i18n.T(messageKey),
		MessageKey: messageKey,
		StatusCode: http.StatusBadRequest,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		MessageKey: "errors.internal",
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		MessageKey: "errors.validation_failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// InvalidTransition reports an action that is not enabled at the current stage
func InvalidTransition(action, stage string) *AppError {
	params := map[string]string{"action": action, "stage": stage}
	return &AppError{
		Err:        ErrInvalidTransition,
		Code:       "INVALID_TRANSITION",
		Message:    i18n.T("errors.invalid_transition", params),
		MessageKey: "errors.invalid_transition",
		Params:     params,
		StatusCode: http.StatusConflict,
	}
}

// Upstream reports a failed call to one of the backend APIs
func Upstream(service string, cause error) *AppError {
	params := map[string]string{"service": i18n.T("services." + service), "message": cause.Error()}
	return &AppError{
		Err:        cause,
		Code:       "UPSTREAM_ERROR",
		Message:    i18n.T("errors.upstream", params),
		MessageKey: "errors.upstream",
		Params:     params,
		StatusCode: http.StatusBadGateway,
	}
}

// UpstreamTimeout reports a backend API call that exceeded its deadline
func UpstreamTimeout(service string, cause error) *AppError {
	params := map[string]string{"service": i18n.T("services." + service)}
	return &AppError{
		Err:        cause,
		Code:       "UPSTREAM_TIMEOUT",
		Message:    i18n.T("errors.upstream_timeout", params),
		MessageKey: "errors.upstream_timeout",
		Params:     params,
		StatusCode: http.StatusGatewayTimeout,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		MessageKey: "errors.token_expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		MessageKey: "errors.token_invalid",
		StatusCode: http.StatusUnauthorized,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
