package controlplane

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kbukum/pipedeploy/errors"
	"github.com/kbukum/pipedeploy/logger"
)

// DefaultPollInterval is used when a wait is given a non-positive interval.
const DefaultPollInterval = time.Second

// pendingError marks a poll whose target state has not been reached yet.
type pendingError struct {
	awaiting string
	current  string
}

func (e *pendingError) Error() string {
	return fmt.Sprintf("waiting for %s, currently %s", e.awaiting, e.current)
}

// WaitForProgram polls until the program compiled. A compile error ends
// the wait with COMPILATION_FAILED. The wait is bounded only by ctx.
func (c *Client) WaitForProgram(ctx context.Context, name string, interval time.Duration) (*Pipeline, error) {
	const awaiting = string(ProgramSuccess)
	return c.poll(ctx, name, awaiting, interval, func(p *Pipeline) (bool, error) {
		switch {
		case p.ProgramStatus.Compiled():
			return true, nil
		case p.ProgramStatus.Failed():
			return false, errors.CompilationFailed(name, string(p.ProgramStatus), p.ProgramErrorText())
		}
		return false, &pendingError{awaiting: awaiting, current: string(p.ProgramStatus)}
	})
}

// WaitForDeployment polls until the pipeline reaches want. Failed is
// terminal and ends the wait with DEPLOYMENT_FAILED.
func (c *Client) WaitForDeployment(ctx context.Context, name string, want DeploymentStatus, interval time.Duration) (*Pipeline, error) {
	want = want.Normalize()
	return c.poll(ctx, name, string(want), interval, func(p *Pipeline) (bool, error) {
		got := p.DeploymentStatus.Normalize()
		switch {
		case got == want:
			return true, nil
		case got == DeploymentFailed:
			e := errors.DeploymentFailed(name, string(want), string(got))
			if p.DeploymentError != nil {
				e = e.WithDetail("deployment_error", p.DeploymentError.Message)
			}
			return false, e
		}
		return false, &pendingError{awaiting: string(want), current: string(got)}
	})
}

// poll fetches the pipeline at a constant interval until check reports
// done, returns a terminal error, or ctx ends. Request errors are terminal.
func (c *Client) poll(ctx context.Context, name, awaiting string, interval time.Duration,
	check func(*Pipeline) (bool, error)) (*Pipeline, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	log := c.log.WithContext(ctx)

	p, err := backoff.Retry(ctx, func() (*Pipeline, error) {
		c.metrics.RecordPoll(ctx, name, awaiting)
		p, err := c.Get(ctx, name)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		done, err := check(p)
		if done {
			return p, nil
		}
		var pending *pendingError
		if stderrors.As(err, &pending) {
			return p, err
		}
		return p, backoff.Permanent(err)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug("pipeline not ready", logger.Fields(
				logger.FieldPipeline, name,
				logger.FieldStatus, err.Error(),
				"next_poll", next.String(),
			))
		}),
	)
	if err == nil {
		return p, nil
	}
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) && (stderrors.Is(err, context.DeadlineExceeded) || isPending(err)) {
		return p, errors.Timeout("waiting for "+name+" to reach "+awaiting).WithCause(err)
	}
	return p, err
}

func isPending(err error) bool {
	var pending *pendingError
	return stderrors.As(err, &pending)
}
