package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Tagline error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"   // 400
	ErrUnauthorized    ErrorCode = "UNAUTHORIZED"      // 401
	ErrNotFound        ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrSessionExists   ErrorCode = "SESSION_EXISTS"    // 409
	ErrInvalidState    ErrorCode = "INVALID_STATE"     // 409
	ErrSaveInProgress  ErrorCode = "SAVE_IN_PROGRESS"  // 409
	ErrFetchInProgress ErrorCode = "FETCH_IN_PROGRESS" // 409
	ErrSessionClosed   ErrorCode = "SESSION_CLOSED"    // 410
	ErrMalformedSpan   ErrorCode = "MALFORMED_SPAN"    // 422
	ErrCancelled       ErrorCode = "CANCELLED"         // 499
	ErrInternal        ErrorCode = "INTERNAL"          // 500
	ErrFetchFailed     ErrorCode = "FETCH_FAILED"      // 502
	ErrSaveFailed      ErrorCode = "SAVE_FAILED"       // 502
)

// TaglineError represents a structured error with code, status, and details.
type TaglineError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// Err is the underlying cause, if any. Not serialized.
	Err error
}

// Error implements the error interface.
func (e *TaglineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *TaglineError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *TaglineError {
	return &TaglineError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthorized creates a 401 error for a missing or wrong bearer token.
func NewUnauthorized() *TaglineError {
	return &TaglineError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: "missing or invalid bearer token",
	}
}

// NewNotFound creates a 404 error for when a sentence cannot be found.
func NewNotFound(id int64) *TaglineError {
	return &TaglineError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("sentence not found: %d", id),
		Details: map[string]any{"id": id},
	}
}

// NewSessionNotFound creates a 404 error for an unknown editing session.
func NewSessionNotFound(sessionID string) *TaglineError {
	return &TaglineError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("session not found: %s", sessionID),
		Details: map[string]any{"session_id": sessionID},
	}
}

// NewFileNotFound creates a 404 error for import/export paths.
func NewFileNotFound(path string) *TaglineError {
	return &TaglineError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewSessionExists creates a 409 error when a sentence already has an open session.
func NewSessionExists(id int64, sessionID string) *TaglineError {
	return &TaglineError{
		Code:    ErrSessionExists,
		Status:  409,
		Message: fmt.Sprintf("sentence %d already has an open session", id),
		Details: map[string]any{"id": id, "session_id": sessionID},
	}
}

// NewInvalidState creates a 409 error for an operation not allowed in the current session state.
func NewInvalidState(op, state string) *TaglineError {
	return &TaglineError{
		Code:    ErrInvalidState,
		Status:  409,
		Message: fmt.Sprintf("cannot %s while session is %s", op, state),
		Details: map[string]any{"operation": op, "state": state},
	}
}

// NewSaveInProgress creates a 409 error for a commit issued while a save is outstanding.
func NewSaveInProgress(id int64) *TaglineError {
	return &TaglineError{
		Code:    ErrSaveInProgress,
		Status:  409,
		Message: fmt.Sprintf("already saving sentence %d", id),
		Details: map[string]any{"id": id},
	}
}

// NewFetchInProgress creates a 409 error for a load issued while a fetch is outstanding.
func NewFetchInProgress(id int64) *TaglineError {
	return &TaglineError{
		Code:    ErrFetchInProgress,
		Status:  409,
		Message: fmt.Sprintf("already fetching sentence %d", id),
		Details: map[string]any{"id": id},
	}
}

// NewSessionClosed creates a 410 error for operations on a discarded session.
func NewSessionClosed(id int64) *TaglineError {
	return &TaglineError{
		Code:    ErrSessionClosed,
		Status:  410,
		Message: fmt.Sprintf("session for sentence %d is closed", id),
		Details: map[string]any{"id": id},
	}
}

// NewMalformedSpan creates a 422 error for a span that is not a word token of the text.
func NewMalformedSpan(start, end int, reason string) *TaglineError {
	return &TaglineError{
		Code:    ErrMalformedSpan,
		Status:  422,
		Message: fmt.Sprintf("span [%d,%d) %s", start, end, reason),
		Details: map[string]any{"start": start, "end": end},
	}
}

// NewCancelled creates a 499 error when the caller's context is done.
func NewCancelled(op string) *TaglineError {
	return &TaglineError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewFetchFailed wraps a failed load. The cause stays reachable through Unwrap.
func NewFetchFailed(id int64, cause error) *TaglineError {
	return &TaglineError{
		Code:    ErrFetchFailed,
		Status:  502,
		Message: fmt.Sprintf("fetch sentence %d: %v", id, cause),
		Details: map[string]any{"id": id},
		Err:     cause,
	}
}

// NewSaveFailed wraps a failed commit. The cause stays reachable through Unwrap.
func NewSaveFailed(id int64, cause error) *TaglineError {
	return &TaglineError{
		Code:    ErrSaveFailed,
		Status:  502,
		Message: fmt.Sprintf("save sentence %d: %v", id, cause),
		Details: map[string]any{"id": id},
		Err:     cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *TaglineError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &TaglineError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err is, or wraps, a TaglineError with the given code.
// Only the outermost TaglineError in the chain is considered.
func Is(err error, code ErrorCode) bool {
	var tErr *TaglineError
	if stderrors.As(err, &tErr) {
		return tErr.Code == code
	}
	return false
}

// Cause returns the innermost TaglineError code in err's chain, or ""
// when the chain carries none. FETCH_FAILED wrapping NOT_FOUND reports NOT_FOUND.
func Cause(err error) ErrorCode {
	var code ErrorCode
	for err != nil {
		var tErr *TaglineError
		if !stderrors.As(err, &tErr) {
			break
		}
		code = tErr.Code
		err = tErr.Err
	}
	return code
}

// As reports whether err carries a TaglineError, returning the outermost one.
func As(err error) (*TaglineError, bool) {
	var tErr *TaglineError
	ok := stderrors.As(err, &tErr)
	return tErr, ok
}
