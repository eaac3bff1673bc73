package fakeplane

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/pipedeploy/component"
	"github.com/kbukum/pipedeploy/controlplane"
	"github.com/kbukum/pipedeploy/testutil"
)

// Op names a pipeline API operation for failure injection.
type Op string

const (
	OpCreate Op = "create"
	OpGet    Op = "get"
	OpStart  Op = "start"
	OpStop   Op = "stop"
	OpDelete Op = "delete"
)

// Call is one request received by the fake.
type Call struct {
	Method        string
	Path          string
	RawQuery      string
	RequestID     string
	Authorization string
}

// String renders the call as "METHOD /path[?query]".
func (c Call) String() string {
	if c.RawQuery == "" {
		return c.Method + " " + c.Path
	}
	return c.Method + " " + c.Path + "?" + c.RawQuery
}

type behavior struct {
	compilePolls  int
	compileResult controlplane.ProgramStatus
	startPolls    int
	startResult   controlplane.DeploymentStatus
	stopPolls     int
	apiKey        string
	failures      map[Op]int
	seed          []controlplane.Pipeline
}

// Option configures the fake.
type Option func(*behavior)

// WithCompilePolls makes compilation take n status reads.
func WithCompilePolls(n int) Option { return func(b *behavior) { b.compilePolls = n } }

// WithCompileResult sets the status compilation settles on.
func WithCompileResult(s controlplane.ProgramStatus) Option {
	return func(b *behavior) { b.compileResult = s }
}

// WithStartPolls makes a start take n status reads to settle.
func WithStartPolls(n int) Option { return func(b *behavior) { b.startPolls = n } }

// WithStartResult sets the status a start settles on (Running or Failed).
func WithStartResult(s controlplane.DeploymentStatus) Option {
	return func(b *behavior) { b.startResult = s }
}

// WithStopPolls makes a stop take n status reads to settle.
func WithStopPolls(n int) Option { return func(b *behavior) { b.stopPolls = n } }

// WithAPIKey requires "Authorization: Bearer <key>" on every request.
func WithAPIKey(key string) Option { return func(b *behavior) { b.apiKey = key } }

// WithFailure answers op with the given HTTP status and an error body.
func WithFailure(op Op, status int) Option {
	return func(b *behavior) { b.failures[op] = status }
}

// WithPipeline seeds an existing pipeline.
func WithPipeline(p controlplane.Pipeline) Option {
	return func(b *behavior) { b.seed = append(b.seed, p) }
}

type pipelineState struct {
	p           controlplane.Pipeline
	compileLeft int
	transitLeft int
	transitTo   controlplane.DeploymentStatus
}

// Server is an in-memory control plane serving /v0/pipelines over HTTP.
type Server struct {
	opts []Option

	mu        sync.Mutex
	b         behavior
	pipelines map[string]*pipelineState
	calls     []Call

	engine *gin.Engine
	srv    *httptest.Server
}

var _ testutil.TestComponent = (*Server)(nil)

// New creates a fake control plane. Call Start (or testutil.T(t).Setup)
// before use.
func New(opts ...Option) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{opts: opts}
	s.reset()
	s.engine = s.routes()
	return s
}

func (s *Server) reset() {
	b := behavior{
		compileResult: controlplane.ProgramSuccess,
		startResult:   controlplane.DeploymentRunning,
		failures:      map[Op]int{},
	}
	for _, opt := range s.opts {
		opt(&b)
	}
	s.b = b
	s.calls = nil
	s.pipelines = make(map[string]*pipelineState)
	for _, p := range b.seed {
		p := p
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		s.pipelines[p.Name] = &pipelineState{p: p}
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.record(), s.auth())

	v0 := r.Group("/v0/pipelines")
	v0.PUT("/:name", s.inject(OpCreate), s.createOrReplace)
	v0.GET("/:name", s.inject(OpGet), s.get)
	v0.DELETE("/:name", s.inject(OpDelete), s.remove)
	v0.POST("/:name/start", s.inject(OpStart), s.start)
	v0.POST("/:name/stop", s.inject(OpStop), s.stop)
	return r
}

// Name implements component.Component.
func (s *Server) Name() string { return "fakeplane" }

// Start begins serving on a loopback port.
func (s *Server) Start(_ context.Context) error {
	s.srv = httptest.NewServer(s.engine)
	return nil
}

// Stop shuts the listener down.
func (s *Server) Stop(_ context.Context) error {
	if s.srv != nil {
		s.srv.Close()
		s.srv = nil
	}
	return nil
}

// Health reports whether the fake is serving.
func (s *Server) Health(_ context.Context) component.Health {
	if s.srv == nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Reset drops all pipelines and recorded calls and reapplies the options.
func (s *Server) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// URL returns the base URL, e.g. http://127.0.0.1:41234.
func (s *Server) URL() string {
	if s.srv == nil {
		return ""
	}
	return s.srv.URL
}

// Handler exposes the router for in-process use.
func (s *Server) Handler() http.Handler { return s.engine }

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Ops returns the received requests as "METHOD /path[?query]", dropping
// status reads so only mutating calls remain.
func (s *Server) Ops() []string {
	var ops []string
	for _, c := range s.Calls() {
		if c.Method == http.MethodGet {
			continue
		}
		ops = append(ops, c.String())
	}
	return ops
}

// Pipeline returns the stored pipeline, if any.
func (s *Server) Pipeline(name string) (controlplane.Pipeline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.pipelines[name]
	if !ok {
		return controlplane.Pipeline{}, false
	}
	return st.p, true
}

func (s *Server) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
			RawQuery:      c.Request.URL.RawQuery,
			RequestID:     c.GetHeader("X-Request-ID"),
			Authorization: c.GetHeader("Authorization"),
		})
		s.mu.Unlock()
		c.Next()
	}
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		key := s.b.apiKey
		s.mu.Unlock()
		if key != "" && c.GetHeader("Authorization") != "Bearer "+key {
			abort(c, http.StatusUnauthorized, "Unauthorized", "missing or invalid API key")
			return
		}
		c.Next()
	}
}

func (s *Server) inject(op Op) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		status := s.b.failures[op]
		s.mu.Unlock()
		if status != 0 {
			abort(c, status, "InjectedFailure", fmt.Sprintf("%s failed", op))
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"message":    msg,
		"error_code": code,
		"details":    gin.H{},
	})
}

type createBody struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	RuntimeConfig map[string]any `json:"runtime_config"`
	ProgramConfig map[string]any `json:"program_config"`
	ProgramCode   string         `json:"program_code"`
	UDFRust       string         `json:"udf_rust"`
	UDFToml       string         `json:"udf_toml"`
}

func (s *Server) createOrReplace(c *gin.Context) {
	name := c.Param("name")
	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, http.StatusBadRequest, "InvalidBody", err.Error())
		return
	}
	if body.Name != name {
		abort(c, http.StatusBadRequest, "NameMismatch", "body name does not match path")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, exists := s.pipelines[name]
	if exists && !st.p.DeploymentStatus.Stopped() {
		abort(c, http.StatusBadRequest, "CannotUpdateNonShutdownPipeline",
			"cannot update a pipeline which is not fully stopped")
		return
	}

	status := http.StatusOK
	if !exists {
		now := time.Now().UTC()
		st = &pipelineState{p: controlplane.Pipeline{
			ID:               uuid.NewString(),
			Name:             name,
			CreatedAt:        &now,
			DeploymentStatus: controlplane.DeploymentStopped,
		}}
		s.pipelines[name] = st
		status = http.StatusCreated
	}

	p := &st.p
	codeChanged := p.ProgramCode != body.ProgramCode || p.UDFRust != body.UDFRust || p.UDFToml != body.UDFToml
	p.Description = body.Description
	p.ProgramCode = body.ProgramCode
	p.UDFRust = body.UDFRust
	p.UDFToml = body.UDFToml
	p.Version++
	if codeChanged || p.ProgramVersion == 0 {
		p.ProgramVersion++
		p.ProgramStatus = controlplane.ProgramPending
		p.ProgramError = nil
		st.compileLeft = s.b.compilePolls
		if st.compileLeft == 0 {
			s.settleCompile(st)
		}
	}
	p.DeploymentDesiredStatus = controlplane.DeploymentStopped
	p.DeploymentError = nil

	c.JSON(status, p)
}

func (s *Server) settleCompile(st *pipelineState) {
	st.p.ProgramStatus = s.b.compileResult
	if st.p.ProgramStatus.Failed() {
		st.p.ProgramError = []byte(`{"sql_compilation":{"messages":[{"message":"compilation failed"}]}}`)
	}
}

// advance moves in-flight transitions one step per status read.
func (s *Server) advance(st *pipelineState) {
	p := &st.p
	switch p.ProgramStatus {
	case controlplane.ProgramPending, controlplane.ProgramCompilingSQL,
		controlplane.ProgramSQLCompiled, controlplane.ProgramCompilingRust:
		if st.compileLeft > 0 {
			st.compileLeft--
			p.ProgramStatus = controlplane.ProgramCompilingSQL
		} else {
			s.settleCompile(st)
		}
	}

	if st.transitTo == "" {
		return
	}
	if st.transitLeft > 0 {
		st.transitLeft--
		return
	}
	s.settle(st)
}

func (s *Server) settle(st *pipelineState) {
	st.p.DeploymentStatus = st.transitTo
	if st.transitTo == controlplane.DeploymentFailed {
		st.p.DeploymentError = &controlplane.APIError{
			Message:   "pipeline failed to initialize",
			ErrorCode: "InitializationFailed",
		}
	}
	st.transitTo = ""
}

func (s *Server) lookup(c *gin.Context) (*pipelineState, bool) {
	name := c.Param("name")
	st, ok := s.pipelines[name]
	if !ok {
		abort(c, http.StatusNotFound, "UnknownPipelineName",
			fmt.Sprintf("pipeline %q does not exist", name))
	}
	return st, ok
}

func (s *Server) get(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.lookup(c)
	if !ok {
		return
	}
	s.advance(st)
	c.JSON(http.StatusOK, st.p)
}

func (s *Server) start(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.lookup(c)
	if !ok {
		return
	}
	if st.p.ProgramStatus.Failed() {
		abort(c, http.StatusBadRequest, "ProgramFailedCompilation", "program failed to compile")
		return
	}

	st.p.DeploymentDesiredStatus = controlplane.DeploymentRunning
	switch st.p.DeploymentStatus.Normalize() {
	case controlplane.DeploymentRunning, controlplane.DeploymentProvisioning:
		// already running or on its way
	default:
		st.p.DeploymentStatus = controlplane.DeploymentProvisioning
		st.p.DeploymentError = nil
		st.transitTo = s.b.startResult
		st.transitLeft = s.b.startPolls
		if st.transitLeft == 0 {
			s.settle(st)
		}
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) stop(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.lookup(c)
	if !ok {
		return
	}

	st.p.DeploymentDesiredStatus = controlplane.DeploymentStopped
	if !st.p.DeploymentStatus.Stopped() {
		st.p.DeploymentStatus = controlplane.DeploymentStopping
		st.transitTo = controlplane.DeploymentStopped
		st.transitLeft = s.b.stopPolls
		if st.transitLeft == 0 {
			s.settle(st)
		}
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) remove(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.lookup(c)
	if !ok {
		return
	}
	if !st.p.DeploymentStatus.Stopped() {
		abort(c, http.StatusBadRequest, "CannotDeleteNonShutdownPipeline",
			"cannot delete a pipeline which is not fully stopped")
		return
	}
	delete(s.pipelines, st.p.Name)
	c.Status(http.StatusOK)
}
