package controlplane

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/kbukum/pipedeploy/httpclient"
	"github.com/kbukum/pipedeploy/logger"
	"github.com/kbukum/pipedeploy/observability"
	"github.com/kbukum/pipedeploy/validation"
)

const pipelinesPath = "/v0/pipelines"

// Client performs the pipeline resource operations against one control
// plane. Constructing it performs no I/O.
type Client struct {
	http    *httpclient.Adapter
	log     *logger.Logger
	metrics *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records status polls on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client on top of an HTTP adapter whose BaseURL is the
// control plane root, e.g. http://localhost:28080.
func New(adapter *httpclient.Adapter, opts ...Option) *Client {
	c := &Client{http: adapter, log: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("controlplane")
	return c
}

// Dial builds the HTTP adapter from cfg and returns a client on it.
func Dial(cfg httpclient.Config, opts ...Option) (*Client, error) {
	a, err := httpclient.New(cfg)
	if err != nil {
		return nil, err
	}
	return New(a, opts...), nil
}

// Endpoint returns the control plane base URL.
func (c *Client) Endpoint() string {
	return c.http.BaseURL()
}

func pipelinePath(name string, action ...string) string {
	p := pipelinesPath + "/" + url.PathEscape(name)
	for _, a := range action {
		p += "/" + a
	}
	return p
}

// CreateOrReplace upserts the pipeline keyed by def.Name. The service
// rejects the call while the pipeline is running.
func (c *Client) CreateOrReplace(ctx context.Context, def Definition) (*Pipeline, error) {
	if err := validation.Validate(def); err != nil {
		return nil, err
	}
	if def.RuntimeConfig == nil {
		def.RuntimeConfig = map[string]any{}
	}
	if def.ProgramConfig == nil {
		def.ProgramConfig = map[string]any{}
	}

	resp, err := httpclient.Put[Pipeline](c.http, ctx, pipelinePath(def.Name), def)
	if err != nil {
		return nil, decodeError(err)
	}
	c.log.WithContext(ctx).Debug("pipeline upserted", logger.Fields(
		logger.FieldPipeline, def.Name,
		logger.FieldStatus, resp.StatusCode,
	))
	return &resp.Data, nil
}

// Get fetches the pipeline. A missing pipeline satisfies httpclient.IsNotFound.
func (c *Client) Get(ctx context.Context, name string) (*Pipeline, error) {
	resp, err := httpclient.Get[Pipeline](c.http, ctx, pipelinePath(name))
	if err != nil {
		return nil, decodeError(err)
	}
	return &resp.Data, nil
}

// Start asks the service to run the pipeline. The call returns once the
// request is accepted; use WaitForDeployment to observe the transition.
func (c *Client) Start(ctx context.Context, name string) error {
	_, err := httpclient.Post[json.RawMessage](c.http, ctx, pipelinePath(name, "start"), nil)
	if err != nil {
		return decodeError(err)
	}
	c.log.WithContext(ctx).Debug("pipeline start accepted", logger.Fields(logger.FieldPipeline, name))
	return nil
}

// Stop asks the service to stop the pipeline. force skips checkpointing.
func (c *Client) Stop(ctx context.Context, name string, force bool) error {
	_, err := httpclient.Post[json.RawMessage](c.http, ctx, pipelinePath(name, "stop"), nil,
		httpclient.WithQueryParam("force", strconv.FormatBool(force)))
	if err != nil {
		return decodeError(err)
	}
	c.log.WithContext(ctx).Debug("pipeline stop accepted", logger.Fields(
		logger.FieldPipeline, name,
		"force", force,
	))
	return nil
}

// Delete removes a stopped pipeline.
func (c *Client) Delete(ctx context.Context, name string) error {
	_, err := httpclient.Delete[json.RawMessage](c.http, ctx, pipelinePath(name))
	if err != nil {
		return decodeError(err)
	}
	c.log.WithContext(ctx).Debug("pipeline deleted", logger.Fields(logger.FieldPipeline, name))
	return nil
}
