package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kbukum/pipedeploy/deployer"
	"github.com/kbukum/pipedeploy/logger"
	"github.com/kbukum/pipedeploy/validation"
	"github.com/kbukum/pipedeploy/version"
)

var outputFormats = []string{"yaml", "json"}

// checkOutput rejects an unknown -o value before any remote call.
func checkOutput(format string) error {
	if err := validation.New().OneOf("output", format, outputFormats).Validate(); err != nil {
		return err
	}
	return nil
}

func newDeployCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Create or replace the pipeline and start it",
		Args:  cobra.NoArgs,
		RunE: r.withDeployer(func(ctx context.Context, d *deployer.Deployer, log *logger.Logger) error {
			p, err := d.DeployAndStart(ctx)
			if err != nil {
				return err
			}
			fields := logger.Fields(logger.FieldPipeline, d.Name())
			if p != nil {
				fields = logger.Fields(
					logger.FieldPipeline, d.Name(),
					"program_status", string(p.ProgramStatus),
					"deployment_status", string(p.DeploymentStatus),
				)
			}
			log.Info("pipeline deployed", fields)
			return nil
		}),
	}
}

func newStatusCmd(r *runner) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the pipeline's program and deployment state",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return checkOutput(output)
		},
		RunE: r.withDeployer(func(ctx context.Context, d *deployer.Deployer, _ *logger.Logger) error {
			p, err := d.Status(ctx)
			if err != nil {
				return err
			}
			return encode(r.stdout, output, p)
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}

func newStopCmd(r *runner) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the pipeline",
		Args:  cobra.NoArgs,
		RunE: r.withDeployer(func(ctx context.Context, d *deployer.Deployer, log *logger.Logger) error {
			if _, err := d.Stop(ctx, force); err != nil {
				return err
			}
			log.Info("pipeline stop requested", logger.Fields(logger.FieldPipeline, d.Name(), "force", force))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "stop without checkpointing")
	return cmd
}

func newDeleteCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Stop the pipeline if needed and delete it",
		Args:  cobra.NoArgs,
		RunE: r.withDeployer(func(ctx context.Context, d *deployer.Deployer, _ *logger.Logger) error {
			return d.Delete(ctx)
		}),
	}
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return checkOutput(output)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if output == "" {
				_, err := fmt.Fprintln(stdout, info.String())
				return err
			}
			return encode(stdout, output, info)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: yaml or json")
	return cmd
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
