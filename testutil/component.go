package testutil

import (
	"context"

	"github.com/kbukum/pipedeploy/component"
)

// TestComponent is a component.Component that tests can return to its
// initial state between cases.
type TestComponent interface {
	component.Component

	// Reset restores the component to its initial state.
	Reset(ctx context.Context) error
}
