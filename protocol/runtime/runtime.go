// Package runtime implements the handful of CDP Runtime domain commands and
// events the protocol engine needs: expression evaluation, function calls,
// execution-context lifecycle events, and the console.info bridge.
package runtime

import (
	"context"
	"encoding/json"

	"github.com/PieceOfGood/aio-dt-go/protocol"
)

// Well-known method names.
const (
	CommandEnable          protocol.MethodType = "Runtime.enable"
	CommandDisable         protocol.MethodType = "Runtime.disable"
	CommandEvaluate        protocol.MethodType = "Runtime.evaluate"
	CommandCallFunctionOn  protocol.MethodType = "Runtime.callFunctionOn"

	EventExecutionContextCreated   protocol.MethodType = "Runtime.executionContextCreated"
	EventExecutionContextDestroyed protocol.MethodType = "Runtime.executionContextDestroyed"
	EventExecutionContextsCleared  protocol.MethodType = "Runtime.executionContextsCleared"
	EventConsoleAPICalled          protocol.MethodType = "Runtime.consoleAPICalled"
	EventExceptionThrown           protocol.MethodType = "Runtime.exceptionThrown"
)

// ExecutionContextID identifies a Runtime execution context.
type ExecutionContextID int64

// RemoteObjectID addresses a RemoteObject for later operations.
type RemoteObjectID string

// RemoteObject is a handle to a JS value in the browser.
type RemoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	ClassName   string          `json:"className,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
	ObjectID    RemoteObjectID  `json:"objectId,omitempty"`
}

// ExceptionDetails describes a thrown JS exception or evaluation failure.
type ExceptionDetails struct {
	ExceptionID  int64         `json:"exceptionId"`
	Text         string        `json:"text"`
	LineNumber   int64         `json:"lineNumber"`
	ColumnNumber int64         `json:"columnNumber"`
	ScriptID     string        `json:"scriptId,omitempty"`
	URL          string        `json:"url,omitempty"`
	Exception    *RemoteObject `json:"exception,omitempty"`
}

// Error renders an ExceptionDetails the way EvaluateError annotates it:
// including the row/column pointer from the protocol, per spec.md §7.
func (e *ExceptionDetails) Error() string {
	msg := e.Text
	if e.Exception != nil && len(e.Exception.Description) > 0 {
		msg = string(e.Exception.Description)
	}
	return errorAtPosition(msg, e.LineNumber, e.ColumnNumber)
}

func errorAtPosition(msg string, line, col int64) string {
	return msg + " (at " + itoa(line) + ":" + itoa(col) + ")"
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ExecutionContextDescription describes a context created event's payload.
type ExecutionContextDescription struct {
	ID      ExecutionContextID `json:"id"`
	Origin  string              `json:"origin"`
	Name    string              `json:"name"`
	AuxData json.RawMessage     `json:"auxData,omitempty"`
}

// ContextAuxData is the shape of AuxData for a frame-owned context.
type ContextAuxData struct {
	FrameID    protocol.FrameID `json:"frameId"`
	IsDefault  bool             `json:"isDefault"`
	Type       string           `json:"type"`
}

// EventExecutionContextCreatedPayload is the Runtime.executionContextCreated params.
type EventExecutionContextCreatedPayload struct {
	Context ExecutionContextDescription `json:"context"`
}

// EventExecutionContextDestroyedPayload is the Runtime.executionContextDestroyed params.
type EventExecutionContextDestroyedPayload struct {
	ExecutionContextID ExecutionContextID `json:"executionContextId"`
}

// EventExecutionContextsClearedPayload is the (empty) Runtime.executionContextsCleared params.
type EventExecutionContextsClearedPayload struct{}

// ConsoleCallArgument is one argument of a console.* call.
type ConsoleCallArgument struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// EventConsoleAPICalledPayload is the Runtime.consoleAPICalled params.
type EventConsoleAPICalledPayload struct {
	Type               string                `json:"type"`
	Args               []ConsoleCallArgument `json:"args"`
	ExecutionContextID ExecutionContextID    `json:"executionContextId"`
}

// EvaluateParams are the parameters for Runtime.evaluate.
type EvaluateParams struct {
	Expression            string `json:"expression"`
	ObjectGroup           string `json:"objectGroup,omitempty"`
	IncludeCommandLineAPI bool   `json:"includeCommandLineAPI,omitempty"`
	Silent                bool   `json:"silent,omitempty"`
	ContextID             ExecutionContextID `json:"contextId,omitempty"`
	ReturnByValue         bool   `json:"returnByValue,omitempty"`
	UserGesture           bool   `json:"userGesture,omitempty"`
	AwaitPromise          bool   `json:"awaitPromise,omitempty"`
}

// Evaluate builds Runtime.evaluate parameters for expression.
func Evaluate(expression string) *EvaluateParams {
	return &EvaluateParams{Expression: expression}
}

// WithContextID targets a specific execution context, needed to evaluate in
// a non-top frame or isolated world (spec.md §4.3).
func (p *EvaluateParams) WithContextID(id ExecutionContextID) *EvaluateParams {
	p.ContextID = id
	return p
}

// WithReturnByValue requests the result be returned JSON-encoded by value.
func (p *EvaluateParams) WithReturnByValue(v bool) *EvaluateParams {
	p.ReturnByValue = v
	return p
}

// WithAwaitPromise makes Runtime.evaluate await a returned promise.
func (p *EvaluateParams) WithAwaitPromise(v bool) *EvaluateParams {
	p.AwaitPromise = v
	return p
}

// WithIncludeCommandLineAPI exposes the DevTools console helpers ($, $$, ...).
func (p *EvaluateParams) WithIncludeCommandLineAPI(v bool) *EvaluateParams {
	p.IncludeCommandLineAPI = v
	return p
}

// WithSilent suppresses exception reporting to Runtime.exceptionThrown.
func (p *EvaluateParams) WithSilent(v bool) *EvaluateParams {
	p.Silent = v
	return p
}

// EvaluateReturns is the Runtime.evaluate result envelope.
type EvaluateReturns struct {
	Result           RemoteObject      `json:"result"`
	ExceptionDetails *ExceptionDetails `json:"exceptionDetails,omitempty"`
}

// Do executes Runtime.evaluate against the Executor bound to ctx.
func (p *EvaluateParams) Do(ctx context.Context) (*RemoteObject, *ExceptionDetails, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return nil, nil, protocol.ErrNoExecutor
	}
	var res EvaluateReturns
	if err := exec.Execute(ctx, CommandEvaluate, p, &res); err != nil {
		return nil, nil, err
	}
	return &res.Result, res.ExceptionDetails, nil
}

// CallArgument is one argument to Runtime.callFunctionOn.
type CallArgument struct {
	Value    json.RawMessage `json:"value,omitempty"`
	ObjectID RemoteObjectID  `json:"objectId,omitempty"`
}

// CallFunctionOnParams are the parameters for Runtime.callFunctionOn.
type CallFunctionOnParams struct {
	FunctionDeclaration string          `json:"functionDeclaration"`
	ObjectID            RemoteObjectID  `json:"objectId,omitempty"`
	Arguments           []*CallArgument `json:"arguments,omitempty"`
	Silent              bool            `json:"silent,omitempty"`
	ReturnByValue       bool            `json:"returnByValue,omitempty"`
	AwaitPromise        bool            `json:"awaitPromise,omitempty"`
	ExecutionContextID  ExecutionContextID `json:"executionContextId,omitempty"`
}

// CallFunctionOn builds Runtime.callFunctionOn parameters.
func CallFunctionOn(functionDeclaration string) *CallFunctionOnParams {
	return &CallFunctionOnParams{FunctionDeclaration: functionDeclaration, Silent: true}
}

// WithObjectID binds the call's `this` to a RemoteObject.
func (p *CallFunctionOnParams) WithObjectID(id RemoteObjectID) *CallFunctionOnParams {
	p.ObjectID = id
	return p
}

// WithArguments sets the call arguments.
func (p *CallFunctionOnParams) WithArguments(args []*CallArgument) *CallFunctionOnParams {
	p.Arguments = args
	return p
}

// WithReturnByValue requests the result be returned JSON-encoded by value.
func (p *CallFunctionOnParams) WithReturnByValue(v bool) *CallFunctionOnParams {
	p.ReturnByValue = v
	return p
}

// Do executes Runtime.callFunctionOn against the Executor bound to ctx.
func (p *CallFunctionOnParams) Do(ctx context.Context) (*RemoteObject, *ExceptionDetails, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return nil, nil, protocol.ErrNoExecutor
	}
	var res EvaluateReturns
	if err := exec.Execute(ctx, CommandCallFunctionOn, p, &res); err != nil {
		return nil, nil, err
	}
	return &res.Result, res.ExceptionDetails, nil
}

// Enable enables the Runtime domain.
func Enable() protocol.Action {
	return protocol.ActionFunc(func(ctx context.Context) error {
		exec := protocol.FromContext(ctx)
		if exec == nil {
			return protocol.ErrNoExecutor
		}
		return exec.Execute(ctx, CommandEnable, nil, nil)
	})
}

