package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/pipedeploy/config"
	"github.com/kbukum/pipedeploy/controlplane"
	"github.com/kbukum/pipedeploy/deployer"
	"github.com/kbukum/pipedeploy/httpclient"
	"github.com/kbukum/pipedeploy/observability"
	"github.com/kbukum/pipedeploy/validation"
	"github.com/kbukum/pipedeploy/version"
)

const (
	appName   = "pipedeploy"
	envPrefix = "PIPEDEPLOY"

	// DefaultEndpoint is the control plane a local install listens on.
	DefaultEndpoint = "http://localhost:28080"
)

// ClientConfig is the `client` section.
type ClientConfig struct {
	Endpoint      string                `yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`
	Timeout       time.Duration         `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	APIKey        string                `yaml:"-" mapstructure:"api_key"`
	RetryAttempts int                   `yaml:"retry_attempts" mapstructure:"retry_attempts" validate:"gte=0,lte=10"`
	TLS           *httpclient.TLSConfig `yaml:"tls,omitempty" mapstructure:"tls"`
}

// PipelineConfig is the `pipeline` section.
type PipelineConfig struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required,pipeline_name"`
	Description string `yaml:"description" mapstructure:"description"`
	SQLFile     string `yaml:"sql_file" mapstructure:"sql_file" validate:"required"`
	UDFFile     string `yaml:"udf_file" mapstructure:"udf_file" validate:"required"`
	UDFTomlFile string `yaml:"udf_toml_file" mapstructure:"udf_toml_file"`
}

// DeployConfig is the `deploy` section.
type DeployConfig struct {
	StopBeforeReplace  bool          `yaml:"stop_before_replace" mapstructure:"stop_before_replace"`
	WaitForCompilation bool          `yaml:"wait_for_compilation" mapstructure:"wait_for_compilation"`
	WaitForState       bool          `yaml:"wait_for_state" mapstructure:"wait_for_state"`
	PollInterval       time.Duration `yaml:"poll_interval" mapstructure:"poll_interval" validate:"gte=0"`
	WaitTimeout        time.Duration `yaml:"wait_timeout" mapstructure:"wait_timeout" validate:"gte=0"`
}

// Config is the full pipedeploy configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Client   ClientConfig                `yaml:"client" mapstructure:"client"`
	Pipeline PipelineConfig              `yaml:"pipeline" mapstructure:"pipeline"`
	Deploy   DeployConfig                `yaml:"deploy" mapstructure:"deploy"`
	Tracing  observability.TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics  observability.MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// defaults reproduce the stock invocation: pipeline "otel" from otel.sql
// and udf.rs, deployed to a local control plane.
func defaults() map[string]any {
	return map[string]any{
		"name":                        appName,
		"client.endpoint":             DefaultEndpoint,
		"client.timeout":              "0s",
		"client.retry_attempts":       0,
		"pipeline.name":               "otel",
		"pipeline.sql_file":           "otel.sql",
		"pipeline.udf_file":           "udf.rs",
		"deploy.stop_before_replace":  true,
		"deploy.wait_for_compilation": true,
		"deploy.wait_for_state":       true,
		"deploy.poll_interval":        controlplane.DefaultPollInterval.String(),
		"deploy.wait_timeout":         "0s",
		"tracing.insecure":            true,
		"tracing.sample_rate":         1.0,
		"metrics.insecure":            true,
	}
}

// ApplyDefaults fills zero values left after loading.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = appName
	}
	if c.Version == "" {
		c.Version = version.Get().Short()
	}
	c.ServiceConfig.ApplyDefaults()
	if c.Deploy.PollInterval == 0 {
		c.Deploy.PollInterval = controlplane.DefaultPollInterval
	}
	c.Tracing.ApplyDefaults()
	c.Metrics.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	hc := c.HTTPClient()
	if err := hc.Validate(); err != nil {
		return err
	}
	if err := c.validateRefs(); err != nil {
		return err
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}

// validateRefs covers rules that span fields or touch the filesystem.
// Pipeline sources are not checked here; a missing source is reported
// by the deploy itself.
func (c *Config) validateRefs() error {
	v := validation.New()
	if tls := c.Client.TLS; tls != nil {
		v.FileExists("client.tls.ca_file", tls.CAFile).
			FileExists("client.tls.cert_file", tls.CertFile).
			FileExists("client.tls.key_file", tls.KeyFile).
			Custom(!tls.SkipVerify || !strings.HasPrefix(c.Client.Endpoint, "http://"),
				"client.tls.skip_verify", "requires an https endpoint")
	}
	v.Custom(c.Deploy.WaitTimeout == 0 || c.Deploy.WaitTimeout >= c.Deploy.PollInterval,
		"deploy.wait_timeout", "must not be shorter than deploy.poll_interval")
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// HTTPClient derives the transport settings for the control plane.
func (c *Config) HTTPClient() httpclient.Config {
	hc := httpclient.Config{
		Name:    "controlplane",
		BaseURL: c.Client.Endpoint,
		Timeout: c.Client.Timeout,
		TLS:     c.Client.TLS,
	}
	if c.Client.APIKey != "" {
		hc.Auth = httpclient.BearerAuth(c.Client.APIKey)
	}
	if c.Client.RetryAttempts > 0 {
		hc.Retry = httpclient.DefaultRetryConfig()
		hc.Retry.MaxAttempts = c.Client.RetryAttempts + 1
	}
	return hc
}

// Deployer derives the deployment settings.
func (c *Config) Deployer() deployer.Config {
	return deployer.Config{
		Name:        c.Pipeline.Name,
		Description: c.Pipeline.Description,
		Sources: deployer.Sources{
			QueryPath:   c.Pipeline.SQLFile,
			UDFPath:     c.Pipeline.UDFFile,
			UDFTomlPath: c.Pipeline.UDFTomlFile,
		},
		StopBeforeReplace:  c.Deploy.StopBeforeReplace,
		WaitForCompilation: c.Deploy.WaitForCompilation,
		WaitForState:       c.Deploy.WaitForState,
		PollInterval:       c.Deploy.PollInterval,
		WaitTimeout:        c.Deploy.WaitTimeout,
	}
}

// Resource describes this process to the telemetry backends.
func (c *Config) Resource() observability.Resource {
	return observability.Resource{
		ServiceName:    c.Name,
		ServiceVersion: c.Version,
		Environment:    c.Environment,
	}
}

// loadConfig reads defaults, the config file, .env and PIPEDEPLOY_*
// variables, then applies command-line overrides.
func loadConfig(f *globalFlags) (*Config, error) {
	opts := []config.LoaderOption{
		config.WithEnvPrefix(envPrefix),
		config.WithDefaults(defaults()),
	}
	if f.configFile != "" {
		opts = append(opts, config.WithConfigFile(f.configFile))
	}
	if f.envFile != "" {
		opts = append(opts, config.WithEnvFile(f.envFile))
	}

	cfg := &Config{}
	if err := config.LoadConfig(appName, cfg, opts...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	f.apply(cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}
