package httpclient

import (
	"context"
	"testing"

	"github.com/kbukum/pipedeploy/component"
)

func TestComponentLifecycle(t *testing.T) {
	c := NewComponent(Config{Name: "controlplane", BaseURL: "http://localhost:28080"})
	ctx := context.Background()

	if c.Name() != "controlplane" {
		t.Errorf("Name() = %q", c.Name())
	}
	if h := c.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %s", h.Status)
	}
	if c.Adapter() != nil {
		t.Error("adapter must not exist before Start")
	}

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.Adapter() == nil {
		t.Fatal("adapter missing after Start")
	}
	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("health after start = %s", h.Status)
	}
	if d := c.Describe(); d.Details != "http://localhost:28080" || d.Type != "http-adapter" {
		t.Errorf("Describe() = %+v", d)
	}
	if err := c.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestComponentStartInvalid(t *testing.T) {
	c := NewComponent(Config{BaseURL: "localhost:28080"})
	if c.Name() != "http" {
		t.Errorf("default Name() = %q", c.Name())
	}
	if err := c.Start(context.Background()); err == nil {
		t.Error("expected error for base URL without scheme")
	}
}
