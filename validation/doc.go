// Package validation validates configuration and pipeline definitions.
//
// Struct tag validation uses go-playground/validator with one extra tag,
// pipeline_name, and reports fields by their config key:
//
//	type PipelineConfig struct {
//	    Name string `mapstructure:"name" validate:"required,pipeline_name"`
//	}
//	err := validation.Validate(cfg)
//
// The programmatic Validator collects errors for rules tags cannot express:
//
//	v := validation.New()
//	v.FileExists("client.tls.ca_file", caFile).
//	    Custom(timeout == 0 || timeout >= poll, "deploy.wait_timeout", "too short")
//	err := v.Validate()
package validation
