package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yanqian/mealplanner/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// statusByCode maps domain error codes onto transport statuses.
var statusByCode = map[string]int{
	"invalid_input":   http.StatusBadRequest,
	"empty_plan":      http.StatusBadRequest,
	"invalid_token":   http.StatusUnauthorized,
	"session_closed":  http.StatusUnauthorized,
	"not_found":       http.StatusNotFound,
	"slot_occupied":   http.StatusConflict,
	"plan_busy":       http.StatusConflict,
	"plan_locked":     http.StatusLocked,
	"generate_failed": http.StatusBadGateway,
	"upload_failed":   http.StatusBadGateway,
	"export_failed":   http.StatusInternalServerError,
	"session_error":   http.StatusInternalServerError,
}

// fromDomainError translates an AppError into an HTTPError. Unknown errors become 500s.
func fromDomainError(err error) *HTTPError {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return asHTTPError(err)
	}
	status, ok := statusByCode[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	code := appErr.Code
	if code == "invalid_input" {
		code = "invalid_request"
	}
	return NewHTTPError(status, code, apperrors.Message(err), err)
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func abortWithDomainError(c *gin.Context, err error) {
	abortWithError(c, fromDomainError(err))
}
