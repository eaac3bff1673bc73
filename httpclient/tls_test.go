package httpclient

import (
	"context"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestTLSConfig_Build(t *testing.T) {
	var nilCfg *TLSConfig
	if cfg, err := nilCfg.Build(); cfg != nil || err != nil {
		t.Errorf("nil Build() = %v, %v", cfg, err)
	}

	cfg, err := (&TLSConfig{SkipVerify: true}).Build()
	if err != nil || cfg == nil || !cfg.InsecureSkipVerify {
		t.Errorf("SkipVerify Build() = %+v, %v", cfg, err)
	}

	if _, err := (&TLSConfig{CAFile: filepath.Join(t.TempDir(), "missing.pem")}).Build(); err == nil {
		t.Error("expected error for missing CA file")
	}

	empty := filepath.Join(t.TempDir(), "empty.pem")
	_ = os.WriteFile(empty, []byte("not a cert"), 0o600)
	if _, err := (&TLSConfig{CAFile: empty}).Build(); err == nil {
		t.Error("expected error for CA file without certificates")
	}
}

func TestAdapter_TrustsConfiguredCA(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	block := &pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw}
	if err := os.WriteFile(caFile, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := New(Config{BaseURL: srv.URL, TLS: &TLSConfig{CAFile: caFile}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}); err != nil {
		t.Fatalf("Do over TLS: %v", err)
	}

	plain, _ := New(Config{BaseURL: srv.URL})
	if _, err := plain.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}); !IsConnection(err) {
		t.Errorf("expected untrusted certificate to fail as connection error, got %v", err)
	}
}
