package types

import (
	"errors"
	"net/http"

	appErr "github.com/erdstudio/engine/pkg/errors"
)

// FromAppError converts err into the wire error. Messages of internal
// failures are not exposed.
func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var e *appErr.AppError
	if errors.As(err, &e) {
		out := &APIError{Code: string(e.Code), Message: e.Message}
		if stage, ok := e.Meta["stage"].(string); ok {
			out.Details = "failed at " + stage
		}
		return out
	}
	return &APIError{Code: string(appErr.CodeInternal), Message: "internal error"}
}

// StatusOf maps an error onto an HTTP status.
func StatusOf(err error) int {
	switch appErr.CodeOf(err) {
	case appErr.CodeInvalid:
		return http.StatusBadRequest
	case appErr.CodeNotFound:
		return http.StatusNotFound
	case appErr.CodeConflict:
		return http.StatusConflict
	case appErr.CodeUnauthorized:
		return http.StatusUnauthorized
	case appErr.CodeForbidden:
		return http.StatusForbidden
	case appErr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToAppError rebuilds an application error from a wire error.
func ToAppError(e *APIError, status int) error {
	if e == nil {
		return appErr.Newf(appErr.CodeUnknown, "request failed with status %d", status)
	}
	return appErr.New(appErr.Code(e.Code), e.Message)
}
