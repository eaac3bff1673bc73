package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Local source errors
const (
	// ErrCodeSourceUnreadable indicates a source file is missing or cannot be read.
	ErrCodeSourceUnreadable ErrorCode = "SOURCE_UNREADABLE"
)

// Remote lifecycle errors
const (
	// ErrCodeRemoteCreate indicates the create-or-replace call failed.
	ErrCodeRemoteCreate ErrorCode = "REMOTE_CREATE_FAILED"
	// ErrCodeRemoteStart indicates the start call failed.
	ErrCodeRemoteStart ErrorCode = "REMOTE_START_FAILED"
	// ErrCodeRemoteStop indicates the stop call failed.
	ErrCodeRemoteStop ErrorCode = "REMOTE_STOP_FAILED"
	// ErrCodeRemoteDelete indicates the delete call failed.
	ErrCodeRemoteDelete ErrorCode = "REMOTE_DELETE_FAILED"
	// ErrCodeCompilation indicates the service rejected the program.
	ErrCodeCompilation ErrorCode = "COMPILATION_FAILED"
	// ErrCodeDeployment indicates the pipeline failed to reach the requested state.
	ErrCodeDeployment ErrorCode = "DEPLOYMENT_FAILED"
)

// Connection/Availability errors (retryable)
const (
	// ErrCodeConnectionFailed indicates a failed connection to a service.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeConnectionFailed: true,
	ErrCodeTimeout:          true,
	ErrCodeInternal:         false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
