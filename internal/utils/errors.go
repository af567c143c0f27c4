package utils

import (
	"errors"
	"fmt"
)

// Exit codes
const (
	ExitSuccess = 0
	// Configuration errors (10-19)
	ExitConfigInvalid = 10
	ExitUserError     = 11
	// Resolution errors (20-29)
	ExitConflict      = 20
	ExitAmbiguousName = 21
	ExitNodeMissing   = 22
	// Network errors (30-39)
	ExitNetworkError = 30
	// Storage errors (40-49)
	ExitStorageRefused = 40
	// Unknown
	ExitUnknown = 99
)

// Error codes (tool-owned, stable)
const (
	ErrCodeConfigInvalid  = "CONFIG_INVALID"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeAmbiguousName  = "AMBIGUOUS_NAME"
	ErrCodeNodeMissing    = "NODE_MISSING"
	ErrCodeNetworkError   = "NETWORK_ERROR"
	ErrCodeStorageRefused = "STORAGE_REFUSED"
	ErrCodeUserError      = "USER_ERROR"
	ErrCodeInternalError  = "INTERNAL_ERROR"
	ErrCodeUnknown        = "UNKNOWN"
)

// AppError is the error type carried across package boundaries. The code
// decides how far an error propagates: node-level codes abort one subtree,
// NETWORK_ERROR aborts the current user, STORAGE_REFUSED aborts one folder's
// retirement only.
type AppError struct {
	Code    string
	Message string
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AppErrorBuilder helps construct AppError instances
type AppErrorBuilder struct {
	err AppError
}

// NewAppError creates a new error builder
func NewAppError(code, message string) *AppErrorBuilder {
	return &AppErrorBuilder{
		err: AppError{
			Code:    code,
			Message: message,
		},
	}
}

func (b *AppErrorBuilder) WithContext(key string, value interface{}) *AppErrorBuilder {
	if b.err.Context == nil {
		b.err.Context = make(map[string]interface{})
	}
	b.err.Context[key] = value
	return b
}

func (b *AppErrorBuilder) Build() *AppError {
	return &b.err
}

// CodeOf returns the stable error code for any error.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeUnknown
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// GetExitCode returns the exit code for an error code
func GetExitCode(errorCode string) int {
	mapping := map[string]int{
		ErrCodeConfigInvalid:  ExitConfigInvalid,
		ErrCodeUserError:      ExitUserError,
		ErrCodeConflict:       ExitConflict,
		ErrCodeAmbiguousName:  ExitAmbiguousName,
		ErrCodeNodeMissing:    ExitNodeMissing,
		ErrCodeNetworkError:   ExitNetworkError,
		ErrCodeStorageRefused: ExitStorageRefused,
	}
	if code, ok := mapping[errorCode]; ok {
		return code
	}
	return ExitUnknown
}
