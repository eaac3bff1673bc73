package deployer_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/pipedeploy/controlplane"
	"github.com/kbukum/pipedeploy/deployer"
	"github.com/kbukum/pipedeploy/errors"
	"github.com/kbukum/pipedeploy/httpclient"
	"github.com/kbukum/pipedeploy/logger"
	"github.com/kbukum/pipedeploy/testutil"
	"github.com/kbukum/pipedeploy/testutil/fakeplane"
)

const (
	upsert = "PUT /v0/pipelines/otel"
	start  = "POST /v0/pipelines/otel/start"
	stop   = "POST /v0/pipelines/otel/stop?force=true"
	remove = "DELETE /v0/pipelines/otel"
)

type harness struct {
	plane *fakeplane.Server
	cfg   deployer.Config
	out   *bytes.Buffer
}

func newHarness(t *testing.T, opts ...fakeplane.Option) *harness {
	t.Helper()
	plane := fakeplane.New(opts...)
	testutil.T(t).Setup(plane)

	dir := t.TempDir()
	cfg := deployer.DefaultConfig()
	cfg.Sources.QueryPath = writeSource(t, dir, "otel.sql", "SELECT 1")
	cfg.Sources.UDFPath = writeSource(t, dir, "udf.rs", "")
	cfg.PollInterval = time.Millisecond
	return &harness{plane: plane, cfg: cfg, out: &bytes.Buffer{}}
}

func (h *harness) deployer(t *testing.T) *deployer.Deployer {
	t.Helper()
	client, err := controlplane.Dial(httpclient.Config{BaseURL: h.plane.URL()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	d, err := deployer.New(h.cfg, client, deployer.WithOutput(h.out))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDeployAndStart(t *testing.T) {
	h := newHarness(t, fakeplane.WithCompilePolls(2), fakeplane.WithStartPolls(2))

	p, err := h.deployer(t).DeployAndStart(context.Background())
	if err != nil {
		t.Fatalf("DeployAndStart: %v", err)
	}
	if p.DeploymentStatus != controlplane.DeploymentRunning {
		t.Errorf("deployment status = %s, want Running", p.DeploymentStatus)
	}
	if got := h.out.String(); got != "Starting pipeline\n" {
		t.Errorf("output = %q", got)
	}
	if diff := cmp.Diff([]string{upsert, start}, h.plane.Ops()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	stored, ok := h.plane.Pipeline("otel")
	if !ok {
		t.Fatal("pipeline not stored")
	}
	if stored.ProgramCode != "SELECT 1" || stored.UDFRust != "" {
		t.Errorf("stored code=%q udf=%q", stored.ProgramCode, stored.UDFRust)
	}

	calls := h.plane.Calls()
	id := calls[0].RequestID
	if id == "" {
		t.Fatal("request id missing")
	}
	for _, c := range calls {
		if c.RequestID != id {
			t.Errorf("%s carried request id %q, want %q", c, c.RequestID, id)
		}
	}
}

func TestDeployAndStartKeepsCallerRequestID(t *testing.T) {
	h := newHarness(t)
	ctx := logger.ContextWithRequestID(context.Background(), "ci-42")

	if _, err := h.deployer(t).DeployAndStart(ctx); err != nil {
		t.Fatalf("DeployAndStart: %v", err)
	}
	for _, c := range h.plane.Calls() {
		if c.RequestID != "ci-42" {
			t.Errorf("%s carried request id %q", c, c.RequestID)
		}
	}
}

func TestDeployAndStartMissingSource(t *testing.T) {
	tests := []struct {
		name  string
		patch func(*deployer.Config, string)
	}{
		{"query", func(c *deployer.Config, missing string) { c.Sources.QueryPath = missing }},
		{"udf", func(c *deployer.Config, missing string) { c.Sources.UDFPath = missing }},
		{"udf toml", func(c *deployer.Config, missing string) { c.Sources.UDFTomlPath = missing }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.patch(&h.cfg, filepath.Join(t.TempDir(), "absent"))

			_, err := h.deployer(t).DeployAndStart(context.Background())
			if !errors.HasCode(err, errors.ErrCodeSourceUnreadable) {
				t.Fatalf("expected SOURCE_UNREADABLE, got %v", err)
			}
			var pathErr *fs.PathError
			if !stderrors.As(err, &pathErr) {
				t.Errorf("expected *fs.PathError in chain, got %v", err)
			}
			if n := len(h.plane.Calls()); n != 0 {
				t.Errorf("missing source still made %d remote calls", n)
			}
			if h.out.Len() != 0 {
				t.Errorf("status line written before failing: %q", h.out.String())
			}
		})
	}
}

// callCountWriter records how many requests the fake had seen at each write.
type callCountWriter struct {
	plane  *fakeplane.Server
	counts []int
}

func (w *callCountWriter) Write(p []byte) (int, error) {
	w.counts = append(w.counts, len(w.plane.Calls()))
	return len(p), nil
}

func TestStatusLinePrecedesRemoteCalls(t *testing.T) {
	h := newHarness(t)
	w := &callCountWriter{plane: h.plane}
	client, err := controlplane.Dial(httpclient.Config{BaseURL: h.plane.URL()})
	if err != nil {
		t.Fatal(err)
	}
	d, err := deployer.New(h.cfg, client, deployer.WithOutput(w))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := d.DeployAndStart(context.Background()); err != nil {
		t.Fatalf("DeployAndStart: %v", err)
	}
	if diff := cmp.Diff([]int{0}, w.counts); diff != "" {
		t.Errorf("calls seen at status line (-want +got):\n%s", diff)
	}
}

func TestDeployAndStartRemoteFailures(t *testing.T) {
	tests := []struct {
		name     string
		opts     []fakeplane.Option
		wantCode errors.ErrorCode
		wantOps  []string
	}{
		{
			name:     "create rejected",
			opts:     []fakeplane.Option{fakeplane.WithFailure(fakeplane.OpCreate, http.StatusInternalServerError)},
			wantCode: errors.ErrCodeRemoteCreate,
			wantOps:  []string{upsert},
		},
		{
			name:     "create unauthorized",
			opts:     []fakeplane.Option{fakeplane.WithAPIKey("secret")},
			wantCode: errors.ErrCodeRemoteCreate,
			wantOps:  []string{},
		},
		{
			name:     "compile error",
			opts:     []fakeplane.Option{fakeplane.WithCompileResult(controlplane.ProgramSQLError)},
			wantCode: errors.ErrCodeCompilation,
			wantOps:  []string{upsert},
		},
		{
			name:     "start rejected",
			opts:     []fakeplane.Option{fakeplane.WithFailure(fakeplane.OpStart, http.StatusServiceUnavailable)},
			wantCode: errors.ErrCodeRemoteStart,
			wantOps:  []string{upsert, start},
		},
		{
			name:     "deployment failed",
			opts:     []fakeplane.Option{fakeplane.WithStartResult(controlplane.DeploymentFailed)},
			wantCode: errors.ErrCodeDeployment,
			wantOps:  []string{upsert, start},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.opts...)

			_, err := h.deployer(t).DeployAndStart(context.Background())
			appErr, ok := errors.AsAppError(err)
			if !ok || appErr.Code != tt.wantCode {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			ops := h.plane.Ops()
			if ops == nil {
				ops = []string{}
			}
			if diff := cmp.Diff(tt.wantOps, ops); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
			if got := h.out.String(); got != "Starting pipeline\n" {
				t.Errorf("output = %q", got)
			}
		})
	}
}

func TestCreateFailureCarriesTransportError(t *testing.T) {
	h := newHarness(t, fakeplane.WithFailure(fakeplane.OpCreate, http.StatusBadGateway))

	_, err := h.deployer(t).DeployAndStart(context.Background())
	if !httpclient.IsServerError(err) {
		t.Errorf("expected server error in chain, got %v", err)
	}
	apiErr, ok := controlplane.AsAPIError(err)
	if !ok {
		t.Fatalf("expected *APIError in chain, got %v", err)
	}
	if apiErr.ErrorCode != "InjectedFailure" {
		t.Errorf("error code = %q", apiErr.ErrorCode)
	}
}

func TestStartFailureLeavesPipeline(t *testing.T) {
	h := newHarness(t, fakeplane.WithFailure(fakeplane.OpStart, http.StatusInternalServerError))

	if _, err := h.deployer(t).DeployAndStart(context.Background()); err == nil {
		t.Fatal("expected start failure")
	}
	p, ok := h.plane.Pipeline("otel")
	if !ok {
		t.Fatal("pipeline was removed after failed start")
	}
	if !p.DeploymentStatus.Stopped() {
		t.Errorf("deployment status = %s, want Stopped", p.DeploymentStatus)
	}
}

func TestRedeployReplacesRunningPipeline(t *testing.T) {
	h := newHarness(t, fakeplane.WithStopPolls(1))
	d := h.deployer(t)
	ctx := context.Background()

	first, err := d.DeployAndStart(ctx)
	if err != nil {
		t.Fatalf("first deploy: %v", err)
	}
	second, err := d.DeployAndStart(ctx)
	if err != nil {
		t.Fatalf("second deploy: %v", err)
	}

	if first.ID != second.ID {
		t.Error("redeploy created a new pipeline")
	}
	want := []string{upsert, start, stop, upsert, start}
	if diff := cmp.Diff(want, h.plane.Ops()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if got := h.out.String(); got != "Starting pipeline\nStarting pipeline\n" {
		t.Errorf("output = %q", got)
	}
}

func TestReplaceRunningWithoutStop(t *testing.T) {
	h := newHarness(t, fakeplane.WithPipeline(controlplane.Pipeline{
		Name:             "otel",
		ProgramStatus:    controlplane.ProgramSuccess,
		DeploymentStatus: controlplane.DeploymentRunning,
	}))
	h.cfg.StopBeforeReplace = false

	_, err := h.deployer(t).DeployAndStart(context.Background())
	if !errors.HasCode(err, errors.ErrCodeRemoteCreate) {
		t.Fatalf("expected REMOTE_CREATE_FAILED, got %v", err)
	}
	if diff := cmp.Diff([]string{upsert}, h.plane.Ops()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestDeployAndStartNoWait(t *testing.T) {
	h := newHarness(t, fakeplane.WithCompilePolls(5), fakeplane.WithStartPolls(5))
	h.cfg.StopBeforeReplace = false
	h.cfg.WaitForCompilation = false
	h.cfg.WaitForState = false

	p, err := h.deployer(t).DeployAndStart(context.Background())
	if err != nil {
		t.Fatalf("DeployAndStart: %v", err)
	}
	if p.Name != "otel" {
		t.Errorf("pipeline = %+v", p)
	}
	var got []string
	for _, c := range h.plane.Calls() {
		got = append(got, c.String())
	}
	if diff := cmp.Diff([]string{upsert, start}, got); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestDeployAndStartWaitTimeout(t *testing.T) {
	h := newHarness(t, fakeplane.WithStartPolls(1_000_000))
	h.cfg.WaitTimeout = 50 * time.Millisecond

	_, err := h.deployer(t).DeployAndStart(context.Background())
	if !errors.HasCode(err, errors.ErrCodeRemoteStart) {
		t.Fatalf("expected REMOTE_START_FAILED, got %v", err)
	}
	if !errors.HasCode(err, errors.ErrCodeTimeout) {
		t.Errorf("expected TIMEOUT in chain, got %v", err)
	}
}

func TestDeployAndStartCanceled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.deployer(t).DeployAndStart(ctx)
	if !errors.HasCode(err, errors.ErrCodeRemoteCreate) {
		t.Fatalf("expected REMOTE_CREATE_FAILED, got %v", err)
	}
	if n := len(h.plane.Ops()); n != 0 {
		t.Errorf("canceled deploy mutated the service (%d calls)", n)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		patch func(*deployer.Config)
	}{
		{"empty name", func(c *deployer.Config) { c.Name = "" }},
		{"name with space", func(c *deployer.Config) { c.Name = "my pipeline" }},
		{"missing sql path", func(c *deployer.Config) { c.Sources.QueryPath = "" }},
		{"negative timeout", func(c *deployer.Config) { c.WaitTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := deployer.DefaultConfig()
			tt.patch(&cfg)
			_, err := deployer.New(cfg, &controlplane.Client{})
			if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t, fakeplane.WithStopPolls(2))
	d := h.deployer(t)
	ctx := context.Background()
	if _, err := d.DeployAndStart(ctx); err != nil {
		t.Fatal(err)
	}

	p, err := d.Stop(ctx, true)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !p.DeploymentStatus.Stopped() {
		t.Errorf("deployment status = %s, want Stopped", p.DeploymentStatus)
	}
}

func TestStopNoWait(t *testing.T) {
	h := newHarness(t, fakeplane.WithStopPolls(5))
	d := h.deployer(t)
	ctx := context.Background()
	if _, err := d.DeployAndStart(ctx); err != nil {
		t.Fatal(err)
	}

	h.cfg.WaitForState = false
	p, err := h.deployer(t).Stop(ctx, true)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p != nil {
		t.Errorf("expected no observed state without waiting, got %+v", p)
	}
	got, err := d.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.DeploymentStatus != controlplane.DeploymentStopping {
		t.Errorf("deployment status = %s, want Stopping", got.DeploymentStatus)
	}
}

func TestStopUnknownPipeline(t *testing.T) {
	h := newHarness(t)
	_, err := h.deployer(t).Stop(context.Background(), false)
	if !errors.HasCode(err, errors.ErrCodeRemoteStop) {
		t.Fatalf("expected REMOTE_STOP_FAILED, got %v", err)
	}
	if !httpclient.IsNotFound(err) {
		t.Errorf("expected not found in chain, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	d := h.deployer(t)
	ctx := context.Background()
	if _, err := d.DeployAndStart(ctx); err != nil {
		t.Fatal(err)
	}

	if err := d.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := h.plane.Pipeline("otel"); ok {
		t.Error("pipeline still stored")
	}
	want := []string{upsert, start, stop, remove}
	if diff := cmp.Diff(want, h.plane.Ops()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteUnknownPipeline(t *testing.T) {
	h := newHarness(t)
	err := h.deployer(t).Delete(context.Background())
	if !errors.HasCode(err, errors.ErrCodeRemoteDelete) {
		t.Fatalf("expected REMOTE_DELETE_FAILED, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	d := h.deployer(t)
	ctx := context.Background()

	_, err := d.Status(ctx)
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND before deploy, got %v", err)
	}

	if _, err := d.DeployAndStart(ctx); err != nil {
		t.Fatal(err)
	}
	p, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if p.ProgramStatus != controlplane.ProgramSuccess || p.DeploymentStatus != controlplane.DeploymentRunning {
		t.Errorf("status = %s/%s", p.ProgramStatus, p.DeploymentStatus)
	}
}
