package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Every AppError wraps exactly one of these so callers can
// classify failures with errors.Is regardless of how deeply they are wrapped.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrDuplicateName = errors.New("duplicate name")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
	ErrStore         = errors.New("store failure")
	ErrTransient     = errors.New("transient infrastructure failure")
	ErrInternal      = errors.New("internal error")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// DuplicateName creates a 409 error for a name that is already taken within
// the given scope (for POIs the scope is the owning organization).
func DuplicateName(resource, name, scope string) *AppError {
	return &AppError{
		Code:    "DUPLICATE_NAME",
		Message: fmt.Sprintf("%s named %q already exists in %s", resource, name, scope),
		Status:  http.StatusConflict,
		Err:     ErrDuplicateName,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Conflict creates a 409 error for state conflicts other than name clashes.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// Store wraps a persistence failure. Store errors are always fatal to the
// operation that produced them.
func Store(op string, err error) *AppError {
	return &AppError{
		Code:    "STORE_ERROR",
		Message: op,
		Status:  http.StatusInternalServerError,
		Err:     errors.Join(ErrStore, err),
	}
}

// Transient wraps a cache or notifier failure. Callers log these and carry on;
// they never become the outcome of a request.
func Transient(component string, err error) *AppError {
	return &AppError{
		Code:    "TRANSIENT",
		Message: component + " unavailable",
		Status:  http.StatusServiceUnavailable,
		Err:     errors.Join(ErrTransient, err),
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// IsTransient reports whether err is a recoverable infrastructure failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateName), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
