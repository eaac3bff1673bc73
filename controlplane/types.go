package controlplane

import (
	"encoding/json"
	"time"
)

// ProgramStatus is the compilation state of a pipeline's program.
type ProgramStatus string

const (
	ProgramPending       ProgramStatus = "Pending"
	ProgramCompilingSQL  ProgramStatus = "CompilingSql"
	ProgramSQLCompiled   ProgramStatus = "SqlCompiled"
	ProgramCompilingRust ProgramStatus = "CompilingRust"
	ProgramSuccess       ProgramStatus = "Success"
	ProgramSQLError      ProgramStatus = "SqlError"
	ProgramRustError     ProgramStatus = "RustError"
	ProgramSystemError   ProgramStatus = "SystemError"
)

// Compiled reports whether the program is ready to run.
func (s ProgramStatus) Compiled() bool { return s == ProgramSuccess }

// Failed reports whether compilation ended in an error.
func (s ProgramStatus) Failed() bool {
	switch s {
	case ProgramSQLError, ProgramRustError, ProgramSystemError:
		return true
	}
	return false
}

// DeploymentStatus is the runtime state of a pipeline.
type DeploymentStatus string

const (
	DeploymentStopped      DeploymentStatus = "Stopped"
	DeploymentShutdown     DeploymentStatus = "Shutdown"
	DeploymentProvisioning DeploymentStatus = "Provisioning"
	DeploymentInitializing DeploymentStatus = "Initializing"
	DeploymentPaused       DeploymentStatus = "Paused"
	DeploymentRunning      DeploymentStatus = "Running"
	DeploymentSuspended    DeploymentStatus = "Suspended"
	DeploymentStopping     DeploymentStatus = "Stopping"
	DeploymentShuttingDown DeploymentStatus = "ShuttingDown"
	DeploymentFailed       DeploymentStatus = "Failed"
	DeploymentUnavailable  DeploymentStatus = "Unavailable"
)

// Normalize maps legacy spellings onto their current names.
func (s DeploymentStatus) Normalize() DeploymentStatus {
	switch s {
	case DeploymentShutdown:
		return DeploymentStopped
	case DeploymentShuttingDown:
		return DeploymentStopping
	}
	return s
}

// Stopped reports whether the pipeline holds no compute resources.
func (s DeploymentStatus) Stopped() bool { return s.Normalize() == DeploymentStopped }

// Definition is everything submitted by create-or-replace.
type Definition struct {
	Name          string         `json:"name" validate:"required,pipeline_name"`
	Description   string         `json:"description"`
	Query         string         `json:"program_code"`
	UDFRust       string         `json:"udf_rust"`
	UDFToml       string         `json:"udf_toml"`
	RuntimeConfig map[string]any `json:"runtime_config"`
	ProgramConfig map[string]any `json:"program_config"`
}

// Pipeline is the service's view of a pipeline.
type Pipeline struct {
	ID                      string           `json:"id" yaml:"id"`
	Name                    string           `json:"name" yaml:"name"`
	Description             string           `json:"description" yaml:"description,omitempty"`
	CreatedAt               *time.Time       `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Version                 int64            `json:"version" yaml:"version"`
	ProgramVersion          int64            `json:"program_version" yaml:"program_version"`
	ProgramCode             string           `json:"program_code" yaml:"-"`
	UDFRust                 string           `json:"udf_rust" yaml:"-"`
	UDFToml                 string           `json:"udf_toml" yaml:"-"`
	ProgramStatus           ProgramStatus    `json:"program_status" yaml:"program_status"`
	ProgramError            json.RawMessage  `json:"program_error,omitempty" yaml:"-"`
	DeploymentStatus        DeploymentStatus `json:"deployment_status" yaml:"deployment_status"`
	DeploymentDesiredStatus DeploymentStatus `json:"deployment_desired_status" yaml:"deployment_desired_status"`
	DeploymentError         *APIError        `json:"deployment_error,omitempty" yaml:"deployment_error,omitempty"`
}

// ProgramErrorText renders the compiler diagnostics, if any, as a string.
func (p *Pipeline) ProgramErrorText() string {
	if len(p.ProgramError) == 0 || string(p.ProgramError) == "null" {
		return ""
	}
	return string(p.ProgramError)
}
