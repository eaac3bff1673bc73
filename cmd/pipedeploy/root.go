package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ExitCode is the process exit status.
type ExitCode int

const (
	exitCodeSuccess ExitCode = 0
	exitCodeError   ExitCode = 1
)

// globalFlags are the persistent flags shared by every command. Empty
// values leave the loaded configuration untouched.
type globalFlags struct {
	configFile  string
	envFile     string
	endpoint    string
	apiKey      string
	name        string
	sqlFile     string
	udfFile     string
	udfTomlFile string
	logLevel    string
	noWait      bool
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "config file (default: discovered pipedeploy.yml or config.yml)")
	pf.StringVar(&f.envFile, "env-file", "", ".env file to load before reading the environment")
	pf.StringVar(&f.endpoint, "endpoint", "", "control plane base URL (default "+DefaultEndpoint+")")
	pf.StringVar(&f.apiKey, "api-key", "", "bearer API key for the control plane")
	pf.StringVarP(&f.name, "name", "n", "", "pipeline name (default otel)")
	pf.StringVar(&f.sqlFile, "sql", "", "SQL program file (default otel.sql)")
	pf.StringVar(&f.udfFile, "udf", "", "Rust UDF source file (default udf.rs)")
	pf.StringVar(&f.udfTomlFile, "udf-toml", "", "optional UDF dependency manifest")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&f.noWait, "no-wait", false, "return once requests are accepted instead of waiting for state changes")
}

func (f *globalFlags) apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Client.Endpoint, f.endpoint)
	set(&cfg.Client.APIKey, f.apiKey)
	set(&cfg.Pipeline.Name, f.name)
	set(&cfg.Pipeline.SQLFile, f.sqlFile)
	set(&cfg.Pipeline.UDFFile, f.udfFile)
	set(&cfg.Pipeline.UDFTomlFile, f.udfTomlFile)
	set(&cfg.Logging.Level, f.logLevel)
	if f.noWait {
		cfg.Deploy.WaitForCompilation = false
		cfg.Deploy.WaitForState = false
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}
	r := &runner{flags: flags, stdout: stdout, stderr: stderr}

	deploy := newDeployCmd(r)
	root := &cobra.Command{
		Use:           appName,
		Short:         "Deploy and start a SQL pipeline on a control plane",
		Args:          cobra.NoArgs,
		RunE:          deploy.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	flags.register(root)

	root.AddCommand(
		deploy,
		newStatusCmd(r),
		newStopCmd(r),
		newDeleteCmd(r),
		newVersionCmd(stdout),
	)
	return root
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) ExitCode {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCodeError
	}
	return exitCodeSuccess
}
