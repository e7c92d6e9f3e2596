package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is an error carrying a stable code. Codes are grouped by family:
// CONN remote connectivity, SYNC remote writes, STORE local state, MED
// medication data, AUTH control API, GEN everything else.

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrRemoteUnavailable = &AppError{Code: "CONN_001", Message: "remote profile service unavailable"}
	ErrProbeTimeout      = &AppError{Code: "CONN_002", Message: "connectivity probe timed out"}
	ErrCircuitOpen       = &AppError{Code: "CONN_003", Message: "remote circuit open"}

	ErrHydration     = &AppError{Code: "SYNC_001", Message: "could not hydrate from remote"}
	ErrSaveFailed    = &AppError{Code: "SYNC_002", Message: "remote save failed"}
	ErrNoProfileID   = &AppError{Code: "SYNC_003", Message: "no profile identifier"}
	ErrRemoteRequest = &AppError{Code: "SYNC_004", Message: "remote request rejected"}

	ErrStoreRead  = &AppError{Code: "STORE_001", Message: "local state read failed"}
	ErrStoreWrite = &AppError{Code: "STORE_002", Message: "local state write failed"}

	ErrInvalidTime         = &AppError{Code: "MED_001", Message: "invalid medication time"}
	ErrDuplicateMedication = &AppError{Code: "MED_002", Message: "duplicate medication id"}

	ErrUnauthorized = &AppError{Code: "AUTH_001", Message: "unauthorized"}
	ErrForbidden    = &AppError{Code: "AUTH_002", Message: "forbidden"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

// IsAppError reports whether err or anything it wraps is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError in err's chain
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Wrap attaches a cause under a code
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapAs wraps err under the code and message of a sentinel.
func WrapAs(sentinel *AppError, err error) *AppError {
	return &AppError{
		Code:    sentinel.Code,
		Message: sentinel.Message,
		Cause:   err,
	}
}
