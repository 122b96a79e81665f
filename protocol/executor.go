package protocol

import "context"

// Executor issues one CDP command and waits for its correlated response.
// Connection implements Executor; per-domain command types (in
// protocol/runtime, protocol/target, ...) call it through the context,
// mirroring chromedp's cdp.Executor / cdp.WithExecutor pattern.
type Executor interface {
	Execute(ctx context.Context, method MethodType, params, res interface{}) error
}

type executorKey struct{}

// WithExecutor returns a context carrying e, retrievable with FromContext.
func WithExecutor(ctx context.Context, e Executor) context.Context {
	return context.WithValue(ctx, executorKey{}, e)
}

// FromContext extracts the Executor placed in ctx by WithExecutor, or nil.
func FromContext(ctx context.Context) Executor {
	e, _ := ctx.Value(executorKey{}).(Executor)
	return e
}
