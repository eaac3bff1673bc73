package deployer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/pipedeploy/controlplane"
	"github.com/kbukum/pipedeploy/errors"
	"github.com/kbukum/pipedeploy/httpclient"
	"github.com/kbukum/pipedeploy/logger"
	"github.com/kbukum/pipedeploy/observability"
	"github.com/kbukum/pipedeploy/validation"
)

// StatusLine is written to the output before the first remote call.
const StatusLine = "Starting pipeline"

// ControlPlane is the subset of controlplane.Client the deployer drives.
type ControlPlane interface {
	Endpoint() string
	CreateOrReplace(ctx context.Context, def controlplane.Definition) (*controlplane.Pipeline, error)
	Get(ctx context.Context, name string) (*controlplane.Pipeline, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string, force bool) error
	Delete(ctx context.Context, name string) error
	WaitForProgram(ctx context.Context, name string, interval time.Duration) (*controlplane.Pipeline, error)
	WaitForDeployment(ctx context.Context, name string, want controlplane.DeploymentStatus, interval time.Duration) (*controlplane.Pipeline, error)
}

var _ ControlPlane = (*controlplane.Client)(nil)

// Config describes one deployment.
type Config struct {
	Name        string  `mapstructure:"name" validate:"required,pipeline_name"`
	Description string  `mapstructure:"description"`
	Sources     Sources `mapstructure:",squash"`

	// StopBeforeReplace stops a running pipeline so the upsert is accepted.
	StopBeforeReplace bool
	// WaitForCompilation blocks after the upsert until the program compiled.
	WaitForCompilation bool
	// WaitForState blocks until a requested transition lands: Running
	// after start, Stopped after Stop.
	WaitForState bool
	// PollInterval spaces status reads during waits.
	PollInterval time.Duration `validate:"gte=0"`
	// WaitTimeout bounds each wait. Zero waits indefinitely.
	WaitTimeout time.Duration `validate:"gte=0"`
}

// DefaultConfig deploys otel.sql and udf.rs from the working directory as "otel".
func DefaultConfig() Config {
	return Config{
		Name: "otel",
		Sources: Sources{
			QueryPath: "otel.sql",
			UDFPath:   "udf.rs",
		},
		StopBeforeReplace:  true,
		WaitForCompilation: true,
		WaitForState:       true,
		PollInterval:       controlplane.DefaultPollInterval,
	}
}

// Deployer submits a pipeline definition and starts it.
type Deployer struct {
	cfg     Config
	plane   ControlPlane
	out     io.Writer
	log     *logger.Logger
	metrics *observability.Metrics
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithOutput sets where the status line goes. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(d *Deployer) { d.out = w }
}

// WithLogger sets the deployer logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Deployer) { d.log = l }
}

// WithMetrics records operation metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Deployer) { d.metrics = m }
}

// New validates cfg and returns a deployer bound to plane.
func New(cfg Config, plane ControlPlane, opts ...Option) (*Deployer, error) {
	if err := validation.Validate(cfg); err != nil {
		return nil, err
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = controlplane.DefaultPollInterval
	}
	d := &Deployer{
		cfg:   cfg,
		plane: plane,
		out:   os.Stdout,
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithComponent("deployer")
	return d, nil
}

// Name returns the pipeline name.
func (d *Deployer) Name() string { return d.cfg.Name }

// DeployAndStart reads the sources, announces the deployment, upserts the
// pipeline and starts it. Nothing remote happens when a source is missing,
// and start is never attempted when the upsert fails. A failed start does
// not roll the upsert back.
func (d *Deployer) DeployAndStart(ctx context.Context) (*controlplane.Pipeline, error) {
	ctx = withRequestID(ctx)
	ctx, op := d.operation(ctx, observability.SpanDeploy)

	prog, err := d.readSources(ctx)
	if err != nil {
		return nil, op.End(ctx, err)
	}

	if _, err := fmt.Fprintln(d.out, StatusLine); err != nil {
		d.log.WithContext(ctx).Warn("status line not written", logger.Fields(logger.FieldError, err.Error()))
	}

	def := controlplane.Definition{
		Name:        d.cfg.Name,
		Description: d.cfg.Description,
		Query:       prog.Query,
		UDFRust:     prog.UDFRust,
		UDFToml:     prog.UDFToml,
	}
	p, err := d.createOrReplace(ctx, def)
	if err != nil {
		return nil, op.End(ctx, err)
	}

	started, err := d.start(ctx)
	if err != nil {
		return p, op.End(ctx, err)
	}
	if started != nil {
		p = started
	}
	return p, op.End(ctx, nil)
}

func (d *Deployer) readSources(ctx context.Context) (Program, error) {
	ctx, op := d.operation(ctx, observability.SpanReadSources)
	prog, err := ReadSources(d.cfg.Sources)
	if err == nil {
		d.log.WithContext(ctx).Debug("sources read", logger.Fields(
			"query_bytes", len(prog.Query),
			"udf_bytes", len(prog.UDFRust),
		))
	}
	return prog, op.End(ctx, err)
}

func (d *Deployer) createOrReplace(ctx context.Context, def controlplane.Definition) (*controlplane.Pipeline, error) {
	ctx, op := d.operation(ctx, observability.SpanCreateOrReplace)
	log := d.log.WithContext(ctx)

	if d.cfg.StopBeforeReplace {
		if err := d.stopIfRunning(ctx); err != nil {
			return nil, op.End(ctx, err)
		}
	}

	p, err := d.plane.CreateOrReplace(ctx, def)
	if err != nil {
		return nil, op.End(ctx, errors.RemoteCreateFailed(def.Name, err))
	}
	log.Info("pipeline created or replaced", logger.Fields(
		logger.FieldPipeline, def.Name,
		"program_version", p.ProgramVersion,
	))

	if !d.cfg.WaitForCompilation {
		return p, op.End(ctx, nil)
	}

	waitCtx, cancel := d.waitContext(ctx)
	defer cancel()
	compiled, err := d.plane.WaitForProgram(waitCtx, def.Name, d.cfg.PollInterval)
	if err != nil {
		if !errors.HasCode(err, errors.ErrCodeCompilation) {
			err = errors.RemoteCreateFailed(def.Name, err)
		}
		return nil, op.End(ctx, err)
	}
	log.Info("program compiled", logger.Fields(logger.FieldPipeline, def.Name))
	return compiled, op.End(ctx, nil)
}

// stopIfRunning force-stops an existing pipeline that is not stopped and
// waits for it to stop.
func (d *Deployer) stopIfRunning(ctx context.Context) error {
	name := d.cfg.Name
	existing, err := d.plane.Get(ctx, name)
	switch {
	case httpclient.IsNotFound(err):
		return nil
	case err != nil:
		return errors.RemoteCreateFailed(name, err)
	case existing.DeploymentStatus.Stopped():
		return nil
	}

	d.log.WithContext(ctx).Info("stopping pipeline before replace", logger.Fields(
		logger.FieldPipeline, name,
		logger.FieldStatus, string(existing.DeploymentStatus),
	))
	_, err = d.stop(ctx, true, true)
	return err
}

func (d *Deployer) start(ctx context.Context) (*controlplane.Pipeline, error) {
	ctx, op := d.operation(ctx, observability.SpanStart)
	name := d.cfg.Name

	if err := d.plane.Start(ctx, name); err != nil {
		return nil, op.End(ctx, errors.RemoteStartFailed(name, err))
	}
	if !d.cfg.WaitForState {
		d.log.WithContext(ctx).Info("pipeline start requested", logger.Fields(logger.FieldPipeline, name))
		return nil, op.End(ctx, nil)
	}

	waitCtx, cancel := d.waitContext(ctx)
	defer cancel()
	p, err := d.plane.WaitForDeployment(waitCtx, name, controlplane.DeploymentRunning, d.cfg.PollInterval)
	if err != nil {
		if !errors.HasCode(err, errors.ErrCodeDeployment) {
			err = errors.RemoteStartFailed(name, err)
		}
		return nil, op.End(ctx, err)
	}
	d.log.WithContext(ctx).Info("pipeline running", logger.Fields(logger.FieldPipeline, name))
	return p, op.End(ctx, nil)
}

// Stop stops the pipeline and, when waiting is enabled, blocks until it
// reports Stopped.
func (d *Deployer) Stop(ctx context.Context, force bool) (*controlplane.Pipeline, error) {
	return d.stop(withRequestID(ctx), force, d.cfg.WaitForState)
}

func (d *Deployer) stop(ctx context.Context, force, wait bool) (*controlplane.Pipeline, error) {
	ctx, op := d.operation(ctx, observability.SpanStop, attribute.Bool("force", force))
	name := d.cfg.Name

	if err := d.plane.Stop(ctx, name, force); err != nil {
		return nil, op.End(ctx, errors.RemoteStopFailed(name, err))
	}
	if !wait {
		return nil, op.End(ctx, nil)
	}

	waitCtx, cancel := d.waitContext(ctx)
	defer cancel()
	p, err := d.plane.WaitForDeployment(waitCtx, name, controlplane.DeploymentStopped, d.cfg.PollInterval)
	if err != nil {
		return nil, op.End(ctx, errors.RemoteStopFailed(name, err))
	}
	d.log.WithContext(ctx).Info("pipeline stopped", logger.Fields(logger.FieldPipeline, name))
	return p, op.End(ctx, nil)
}

// Delete removes the pipeline, force-stopping it first if needed.
func (d *Deployer) Delete(ctx context.Context) error {
	ctx = withRequestID(ctx)
	ctx, op := d.operation(ctx, observability.SpanDelete)
	name := d.cfg.Name

	p, err := d.plane.Get(ctx, name)
	if err != nil {
		return op.End(ctx, errors.RemoteDeleteFailed(name, err))
	}
	if !p.DeploymentStatus.Stopped() {
		if _, err := d.stop(ctx, true, true); err != nil {
			return op.End(ctx, err)
		}
	}
	if err := d.plane.Delete(ctx, name); err != nil {
		return op.End(ctx, errors.RemoteDeleteFailed(name, err))
	}
	d.log.WithContext(ctx).Info("pipeline deleted", logger.Fields(logger.FieldPipeline, name))
	return op.End(ctx, nil)
}

// Status fetches the pipeline's current state.
func (d *Deployer) Status(ctx context.Context) (*controlplane.Pipeline, error) {
	ctx = withRequestID(ctx)
	ctx, op := d.operation(ctx, observability.SpanStatus)
	name := d.cfg.Name

	p, err := d.plane.Get(ctx, name)
	if httpclient.IsNotFound(err) {
		err = errors.NotFound("pipeline", name).WithCause(err)
	}
	if err != nil {
		return nil, op.End(ctx, err)
	}
	return p, op.End(ctx, nil)
}

func (d *Deployer) operation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *observability.Operation) {
	attrs = append(attrs,
		attribute.String(observability.AttrEndpoint, d.plane.Endpoint()),
		attribute.String(observability.AttrRequestID, logger.RequestIDFromContext(ctx)),
	)
	return observability.StartOperation(ctx, name, d.cfg.Name, d.metrics, attrs...)
}

func (d *Deployer) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.WaitTimeout > 0 {
		return context.WithTimeout(ctx, d.cfg.WaitTimeout)
	}
	return context.WithCancel(ctx)
}

// withRequestID tags ctx with a fresh request ID unless it carries one.
func withRequestID(ctx context.Context) context.Context {
	if logger.RequestIDFromContext(ctx) != "" {
		return ctx
	}
	return logger.ContextWithRequestID(ctx, uuid.NewString())
}
