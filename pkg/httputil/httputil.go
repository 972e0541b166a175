package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/vitiscan/vitiscan-web/pkg/errors"
	"github.com/vitiscan/vitiscan-web/pkg/i18n"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody represents an error in the response
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
	}

	json.NewEncoder(w).Encode(response)
}

// JSONError sends an error response that still carries data, so the client
// can re-render from it (e.g. the session view after a failed backend call).
func JSONError(w http.ResponseWriter, r *http.Request, err error, data interface{}) {
	status, body := errorBody(r, err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(Response{
		Success: false,
		Data:    data,
		Error:   body,
	})
}

// ErrorLocalized sends a localized error response using request context
func ErrorLocalized(w http.ResponseWriter, r *http.Request, err error) {
	JSONError(w, r, err, nil)
}

func errorBody(r *http.Request, err error) (int, *ErrorBody) {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode, &ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Localize(r.Context()),
			Details: appErr.Details,
		}
	}

	localizer := i18n.LocalizerFromContext(r.Context())
	return http.StatusInternalServerError, &ErrorBody{
		Code:    "INTERNAL_ERROR",
		Message: localizer.T("errors.internal"),
	}
}

// DecodeJSONLocalized decodes the request body with localized error
func DecodeJSONLocalized(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.BadRequestWithKey("errors.invalid_json")
	}
	return nil
}
