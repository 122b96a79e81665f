package protocol

import (
	"context"
	"errors"
)

// ErrNoExecutor is returned when a Do/Action runs against a context with no
// Executor attached via WithExecutor.
var ErrNoExecutor = errors.New("protocol: no Executor in context")

// Action is a single CDP operation, mirroring chromedp's cdp.Action: any
// command type with a Do method already satisfies it via ActionFunc, and
// domain packages compose Actions the same way chromedp composes its own.
type Action interface {
	Do(ctx context.Context) error
}

// ActionFunc adapts a plain function to the Action interface.
type ActionFunc func(ctx context.Context) error

// Do calls f(ctx).
func (f ActionFunc) Do(ctx context.Context) error { return f(ctx) }

// Tasks runs a sequence of Actions in order, stopping at the first error.
type Tasks []Action

// Do runs each task in sequence.
func (t Tasks) Do(ctx context.Context) error {
	for _, task := range t {
		if err := task.Do(ctx); err != nil {
			return err
		}
	}
	return nil
}
