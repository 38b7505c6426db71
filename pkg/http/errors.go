package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"FinScore/internal/domain/models"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
		Params:  make(map[string]interface{}),
	}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// NotFoundError creates a 404 error.
func NotFoundError(message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", "", message, http.StatusNotFound)
}

// NotFoundErrorf creates a 404 error with formatting.
func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return NotFoundError(fmt.Sprintf(format, a...))
}

// BadRequestError creates a 400 error.
func BadRequestError(message string) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", message, http.StatusBadRequest)
}

// BadRequestErrorf creates a 400 error with formatting.
func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// TooManyRequestsError creates a 429 error.
func TooManyRequestsError(message string) *AppError {
	return NewAppError("ERR_RATE_LIMITED", "", message, http.StatusTooManyRequests)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// FromDomainError maps engine errors to transport errors.
func FromDomainError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var pe *models.ParamError
	var rl *models.RateLimitError
	switch {
	case errors.As(err, &pe):
		return NewAppError("ERR_INVALID_PARAMETERS", pe.Field, pe.Reason, http.StatusBadRequest).WithError(err)
	case errors.Is(err, models.ErrInvalidParameters):
		return NewAppError("ERR_INVALID_PARAMETERS", "", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, models.ErrDataUnavailable):
		return NewAppError("ERR_DATA_UNAVAILABLE", "", err.Error(), http.StatusNotFound).WithError(err)
	case errors.Is(err, models.ErrInsufficientHistory):
		return NewAppError("ERR_INSUFFICIENT_HISTORY", "", err.Error(), http.StatusUnprocessableEntity).WithError(err)
	case errors.As(err, &rl):
		return TooManyRequestsError(err.Error()).WithParam("retry_after_ms", rl.RetryAfter.Milliseconds()).WithError(err)
	case errors.Is(err, models.ErrRateLimited):
		return TooManyRequestsError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return NewAppError("ERR_TIMEOUT", "", err.Error(), http.StatusGatewayTimeout).WithError(err)
	default:
		return InternalError("Something went wrong").WithError(err)
	}
}
