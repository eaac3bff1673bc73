// Package errors provides the structured error type used across pipedeploy.
// Every failure that reaches the command line carries a machine-readable code
// naming the stage that failed, with the original error kept as the cause.
package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// SourceUnreadable reports a source file that could not be read.
func SourceUnreadable(path string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeSourceUnreadable, Message: fmt.Sprintf("cannot read %s", path),
		Details: map[string]any{"path": path}, Cause: cause,
	}
}

// RemoteCreateFailed reports a failed create-or-replace of a pipeline.
func RemoteCreateFailed(pipeline string, cause error) *AppError {
	return remote(ErrCodeRemoteCreate, "create-or-replace", pipeline, cause)
}

// RemoteStartFailed reports a failed start of a pipeline.
func RemoteStartFailed(pipeline string, cause error) *AppError {
	return remote(ErrCodeRemoteStart, "start", pipeline, cause)
}

// RemoteStopFailed reports a failed stop of a pipeline.
func RemoteStopFailed(pipeline string, cause error) *AppError {
	return remote(ErrCodeRemoteStop, "stop", pipeline, cause)
}

// RemoteDeleteFailed reports a failed delete of a pipeline.
func RemoteDeleteFailed(pipeline string, cause error) *AppError {
	return remote(ErrCodeRemoteDelete, "delete", pipeline, cause)
}

func remote(code ErrorCode, op, pipeline string, cause error) *AppError {
	return &AppError{
		Code: code, Message: fmt.Sprintf("%s of pipeline %q failed", op, pipeline),
		Details: map[string]any{"pipeline": pipeline, "operation": op}, Cause: cause,
	}
}

// CompilationFailed reports a program the service refused to compile.
func CompilationFailed(pipeline, status, detail string) *AppError {
	details := map[string]any{"pipeline": pipeline, "status": status}
	if detail != "" {
		details["detail"] = detail
	}
	return &AppError{
		Code: ErrCodeCompilation, Message: fmt.Sprintf("pipeline %q failed to compile: %s", pipeline, status),
		Details: details,
	}
}

// DeploymentFailed reports a pipeline that failed to reach the wanted state.
func DeploymentFailed(pipeline, want, got string) *AppError {
	return &AppError{
		Code: ErrCodeDeployment, Message: fmt.Sprintf("pipeline %q did not reach %s (status %s)", pipeline, want, got),
		Details: map[string]any{"pipeline": pipeline, "want": want, "got": got},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("the requested %s was not found", resource),
		Details: details,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("missing required field: %s", field),
		Details: map[string]any{"field": field},
	}
}

// Timeout creates a new AppError for an operation that ran out of time.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("%s timed out", operation),
		Retryable: true, Details: map[string]any{"operation": operation},
	}
}

// Internal creates a new AppError for an unexpected error.
func Internal(cause error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: "an unexpected error occurred", Cause: cause}
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}
