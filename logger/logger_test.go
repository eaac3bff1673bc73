package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	cfg := &Config{Level: level, Format: FormatJSON}
	return NewWithWriter(cfg, "pipedeploy", buf)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "invalid-level")
	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("invalid level should fall back to info and drop debug")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected info message")
	}
}

func TestInfo_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "debug")
	l.Info("pipeline started", Fields(FieldPipeline, "otel", FieldStatus, "Running"))

	m := decodeLine(t, &buf)
	if m["message"] != "pipeline started" {
		t.Errorf("unexpected message %v", m["message"])
	}
	if m[FieldPipeline] != "otel" || m[FieldStatus] != "Running" {
		t.Errorf("missing fields in %v", m)
	}
	if m["level"] != "info" {
		t.Errorf("expected level info, got %v", m["level"])
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info").WithComponent("deployer")
	if l.service != "pipedeploy" {
		t.Errorf("service should be preserved, got %q", l.service)
	}
	l.Warn("careful")
	if m := decodeLine(t, &buf); m[FieldComponent] != "deployer" {
		t.Errorf("expected component field, got %v", m)
	}
}

func TestWithContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithRequestID(context.Background(), "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Fatalf("expected req-123, got %q", got)
	}
	jsonLogger(&buf, "info").WithContext(ctx).Info("hello")
	if m := decodeLine(t, &buf); m[FieldRequestID] != "req-123" {
		t.Errorf("expected request_id field, got %v", m)
	}
}

func TestWithContext_NoRequestID(t *testing.T) {
	l := NewDefault("x")
	if l.WithContext(context.Background()) != l {
		t.Error("expected same logger when context carries no request id")
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Error("expected empty request id")
	}
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	jsonLogger(&buf, "info").
		WithFields(map[string]interface{}{"k": "v"}).
		WithError(errors.New("boom")).
		Error("failed")
	m := decodeLine(t, &buf)
	if m["k"] != "v" || m["error"] != "boom" {
		t.Errorf("unexpected fields %v", m)
	}
}

func TestConsoleFormat_NoColor(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Level: "info", Format: FormatConsole, NoColor: true}
	NewWithWriter(cfg, "pipedeploy", &buf).Info("hello")
	out := buf.String()
	if !strings.Contains(out, "[PIP][INF]") {
		t.Errorf("expected service and level tag, got %q", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("expected no ANSI codes, got %q", out)
	}
}

func TestConsoleFormat_PlainWhenNotTerminal(t *testing.T) {
	tests := []struct {
		name string
		w    func(t *testing.T) io.Writer
	}{
		{"buffer", func(*testing.T) io.Writer { return &bytes.Buffer{} }},
		{"file", func(t *testing.T) io.Writer {
			f, err := os.Create(filepath.Join(t.TempDir(), "log"))
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { _ = f.Close() })
			return f
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.w(t)
			cfg := &Config{Level: "info", Format: FormatConsole}
			NewWithWriter(cfg, "pipedeploy", w).Warn("careful")

			var out string
			switch v := w.(type) {
			case *bytes.Buffer:
				out = v.String()
			case *os.File:
				b, err := os.ReadFile(v.Name())
				if err != nil {
					t.Fatal(err)
				}
				out = string(b)
			}
			if !strings.Contains(out, "[PIP][WRN]") {
				t.Errorf("expected service and level tag, got %q", out)
			}
			if strings.Contains(out, "\x1b") {
				t.Errorf("expected no ANSI codes, got %q", out)
			}
		})
	}
}

func TestLevelTag(t *testing.T) {
	tests := []struct {
		level   string
		noColor bool
		want    string
	}{
		{"info", true, "[INF]"},
		{"error", true, "[ERR]"},
		{"warn", false, "\x1b[33m[WRN]\x1b[0m"},
		{"custom", false, "[CUSTOM]"},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := levelTag(tt.level, tt.noColor); got != tt.want {
				t.Errorf("levelTag(%q, %v) = %q, want %q", tt.level, tt.noColor, got, tt.want)
			}
		})
	}
}

func TestNop(t *testing.T) {
	Nop().Info("discarded")
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := globalLogger
	defer SetGlobalLogger(prev)

	SetGlobalLogger(jsonLogger(&buf, "debug"))
	Debug("d")
	Info("i")
	Warn("w")
	Error("e")
	WithComponent("c").Info("tagged")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %q", len(lines), buf.String())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"json", Config{Format: "json"}, false},
		{"bad level", Config{Level: "loud"}, true},
		{"bad format", Config{Format: "xml"}, true},
		{"bad output", Config{Output: "file"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("wantErr=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stderr" || !cfg.Timestamp {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
