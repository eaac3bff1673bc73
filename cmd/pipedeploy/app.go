package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/pipedeploy/bootstrap"
	"github.com/kbukum/pipedeploy/controlplane"
	"github.com/kbukum/pipedeploy/deployer"
	"github.com/kbukum/pipedeploy/httpclient"
	"github.com/kbukum/pipedeploy/logger"
	"github.com/kbukum/pipedeploy/observability"
)

type deployerFunc func(ctx context.Context, d *deployer.Deployer, log *logger.Logger) error

// runner holds what every command needs to build an app.
type runner struct {
	flags  *globalFlags
	stdout io.Writer
	stderr io.Writer
}

// withDeployer loads config, starts the infrastructure components, builds
// the deployer on top of them and runs fn as the app's task.
func (r *runner) withDeployer(fn deployerFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(r.flags)
		if err != nil {
			return err
		}

		log := logger.NewWithWriter(&cfg.Logging, cfg.Name, r.stderr)
		app, err := bootstrap.NewApp(cfg, bootstrap.WithLogger(log))
		if err != nil {
			return err
		}

		transport := httpclient.NewComponent(cfg.HTTPClient(), httpclient.WithLogger(log))
		if err := app.RegisterComponent(transport); err != nil {
			return err
		}
		if cfg.Tracing.Enabled {
			if err := app.RegisterComponent(observability.NewTracerComponent(cfg.Tracing, cfg.Resource())); err != nil {
				return err
			}
		}
		var meter *observability.MeterComponent
		if cfg.Metrics.Enabled {
			meter = observability.NewMeterComponent(cfg.Metrics, cfg.Resource())
			if err := app.RegisterComponent(meter); err != nil {
				return err
			}
		}

		var d *deployer.Deployer
		app.OnConfigure(func(_ context.Context, a *bootstrap.App[*Config]) error {
			var metrics *observability.Metrics
			if meter != nil {
				metrics = meter.Metrics()
			}
			client := controlplane.New(transport.Adapter(),
				controlplane.WithLogger(a.Logger),
				controlplane.WithMetrics(metrics),
			)
			var err error
			d, err = deployer.New(a.Cfg.Deployer(), client,
				deployer.WithOutput(r.stdout),
				deployer.WithLogger(a.Logger),
				deployer.WithMetrics(metrics),
			)
			return err
		})

		return app.RunTask(cmd.Context(), func(ctx context.Context) error {
			return fn(ctx, d, app.Logger)
		})
	}
}
