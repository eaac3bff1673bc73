package controlplane

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/kbukum/pipedeploy/httpclient"
)

// APIError is the error body returned by the control plane. When built
// from a failed request it wraps the transport error, so the httpclient
// predicates (IsNotFound, IsConflict, ...) still apply.
type APIError struct {
	Message    string          `json:"message" yaml:"message"`
	ErrorCode  string          `json:"error_code" yaml:"error_code"`
	Details    json.RawMessage `json:"details,omitempty" yaml:"-"`
	StatusCode int             `json:"-" yaml:"-"`
	Err        error           `json:"-" yaml:"-"`
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode > 0 && e.ErrorCode != "":
		return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.ErrorCode, e.Message)
	case e.ErrorCode != "":
		return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
	default:
		return e.Message
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// decodeError replaces a transport status error with an *APIError when the
// body carries one. Any other error is returned as is.
func decodeError(err error) error {
	var he *httpclient.Error
	if !stderrors.As(err, &he) || len(he.Body) == 0 {
		return err
	}
	var apiErr APIError
	if json.Unmarshal(he.Body, &apiErr) != nil || apiErr.Message == "" {
		return err
	}
	apiErr.StatusCode = he.StatusCode
	apiErr.Err = err
	return &apiErr
}

// AsAPIError extracts the service error from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
