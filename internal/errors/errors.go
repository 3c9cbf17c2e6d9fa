// Package errors provides custom error types for the expense tracker API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import (
	stderrors "errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, optional details for the client
// and an optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target carries the same error code. This lets callers
// compare a wrapped or detailed copy against its sentinel with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsAppError reports whether err is or wraps an *AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		Details:    sentinel.Details,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// WithDetails creates a new AppError carrying a custom message and
// client-visible details (for example the list of unresolved emails).
func WithDetails(sentinel *AppError, message string, details any) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		Details:    details,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusLocked}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
	ErrWriteFailure   = &AppError{Code: "WRITE_FAILURE", Message: "Could not save changes, please try again", StatusCode: http.StatusInternalServerError}
	ErrStorageFailure = &AppError{Code: "STORAGE_FAILURE", Message: "File storage is unavailable, please try again", StatusCode: http.StatusBadGateway}
	ErrStaleWrite     = &AppError{Code: "STALE_WRITE", Message: "The resource was modified by someone else, reload and retry", StatusCode: http.StatusConflict}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Project errors.
var (
	ErrProjectNotFound       = &AppError{Code: "PROJECT_NOT_FOUND", Message: "Project not found", StatusCode: http.StatusNotFound}
	ErrMemberNotFound        = &AppError{Code: "MEMBER_NOT_FOUND", Message: "Could not find one or more members", StatusCode: http.StatusUnprocessableEntity}
	ErrContributionMismatch  = &AppError{Code: "CONTRIBUTION_MISMATCH", Message: "Total contributions must equal the total budget", StatusCode: http.StatusUnprocessableEntity}
	ErrNotProjectMember      = &AppError{Code: "NOT_PROJECT_MEMBER", Message: "You are not a member of this project", StatusCode: http.StatusForbidden}
	ErrInvalidProjectType    = &AppError{Code: "INVALID_PROJECT_TYPE", Message: "Unsupported project type", StatusCode: http.StatusBadRequest}
	ErrPersonalProjectLocked = &AppError{Code: "PERSONAL_PROJECT", Message: "Personal projects have a single member and no shared budget", StatusCode: http.StatusBadRequest}
	ErrShareNotFound         = &AppError{Code: "SHARE_NOT_FOUND", Message: "Shared project not found", StatusCode: http.StatusNotFound}
)

// Expense errors.
var (
	ErrExpenseNotFound   = &AppError{Code: "EXPENSE_NOT_FOUND", Message: "Expense not found", StatusCode: http.StatusNotFound}
	ErrNotExpenseCreator = &AppError{Code: "NOT_EXPENSE_CREATOR", Message: "Only the creator can change this expense", StatusCode: http.StatusForbidden}
	ErrFileNotFound      = &AppError{Code: "FILE_NOT_FOUND", Message: "File not found", StatusCode: http.StatusNotFound}
)
