package aiodt

import (
	"fmt"
	"strings"

	"github.com/PieceOfGood/aio-dt-go/protocol"
)

// Error is a sentinel error kind, grounded in chromedp/errors.go's
// `type Error string` pattern: a handful of named string constants that
// satisfy the error interface directly, rather than a struct hierarchy.
type Error string

func (e Error) Error() string { return string(e) }

// Transport errors (spec.md §7 "Transport").
const (
	// ErrConnectionLost is delivered to pending callers when the
	// underlying websocket closes unexpectedly.
	ErrConnectionLost Error = "aiodt: connection lost"
	// ErrNotConnected is returned by Call when the Connection has not
	// been activated, or has already been detached.
	ErrNotConnected Error = "aiodt: not connected"
	// ErrAlreadyActivated is returned by Activate on a Connection that
	// was already activated once (activation is not idempotent; a
	// detached Connection cannot be re-activated, per spec.md §4.1).
	ErrAlreadyActivated Error = "aiodt: connection already activated"
)

// State errors (spec.md §7 "State").
const (
	// ErrRuntimeNotWatched is returned by operations (BuildScript) that
	// require Runtime to be enabled in "watch" mode (a generic callback
	// registered at Activate) and it is not.
	ErrRuntimeNotWatched Error = "aiodt: runtime is not in watch mode"
	// ErrNodeNotDescribed is returned by DOMNode.Resolve when called
	// before DOMNode.Describe populated the node's backend id.
	ErrNodeNotDescribed Error = "aiodt: node has not been described"
	// ErrNodeInvalidated is returned by any DOMNode method after the
	// node's handle was invalidated by SetOuterHTML/SetNodeName/MoveTo.
	ErrNodeInvalidated Error = "aiodt: node handle invalidated"
	// ErrNodeNotResolved is returned by DOMNode.Request when called before
	// DOMNode.Resolve populated the node's RemoteObject id.
	ErrNodeNotResolved Error = "aiodt: node has not been resolved"
	// ErrNoDefaultContext is returned by BuildScript when the node's
	// owning frame has no tracked default execution context.
	ErrNoDefaultContext Error = "aiodt: no default execution context for frame"
)

// Fetch errors (spec.md §4.4 "exactly one terminal disposition").
const (
	// ErrRequestAlreadyDisposed is returned by an Interceptor disposition
	// method (Fulfill/Continue/Fail) called twice for the same requestId.
	ErrRequestAlreadyDisposed Error = "aiodt: fetch request already reached a terminal disposition"
)

// ErrRootNoLongerExists reports that a query's root node id was invalidated
// mid-query (spec.md §4.6, §8 boundary behaviour).
type ErrRootNoLongerExists struct {
	Selector string
}

func (e *ErrRootNoLongerExists) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("aiodt: root node no longer exists (selector %q)", e.Selector)
	}
	return "aiodt: root node no longer exists"
}

// EvaluateError reports a Runtime.evaluate (or callFunctionOn) response
// carrying exceptionDetails, annotated with the offending row/column.
type EvaluateError struct {
	Text   string
	Line   int64
	Column int64
}

func (e *EvaluateError) Error() string {
	return fmt.Sprintf("aiodt: evaluate: %s (at %d:%d)", e.Text, e.Line, e.Column)
}

// PromiseEvaluateError describes a rejected promise. EvalPromise does not
// return it: a rejection never reaches EvalPromise's .then tail, so nothing
// in this package constructs a PromiseEvaluateError.
type PromiseEvaluateError struct {
	Expression string
	Reason     string
}

func (e *PromiseEvaluateError) Error() string {
	return fmt.Sprintf("aiodt: promise rejected for %q: %s", e.Expression, e.Reason)
}

// ConfigurationError reports a caller-supplied option that is missing a
// value it requires.
type ConfigurationError struct {
	Option string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("aiodt: configuration: %s requires a value", e.Option)
}

// protocolErrorSubstrings maps known protocol.Error message substrings to a
// constructor for a typed error, per spec.md §7's known-substring table and
// the additional entries SPEC_FULL.md pulls from original_source/exceptions.py
// and domains/Fetch.py, Runtime.py. Order matters only in that every
// substring is distinct; a linear scan is fine at this table's size.
var protocolErrorSubstrings = []struct {
	substr string
	mk     func(msg *protocol.Error, method protocol.MethodType, params interface{}) error
}{
	{"Target crashed", wrapKnown("target crashed")},
	{"Could not find node with given id", wrapKnown("could not find node with given id")},
	{"Could not compute box model", wrapKnown("could not compute box model")},
	{"Could not compute content quads", wrapKnown("could not compute content quads")},
	{"No node with given id found", wrapKnown("no node with given id found")},
	{"No dialog is showing", wrapKnown("no dialog is showing")},
	{"No target with given id found", wrapKnown("no target with given id found")},
	{"No script with given id", wrapKnown("no script with given id")},
	{"uniqueContextId not found", wrapKnown("unique context id not found")},
	{"Locale override already in effect", wrapKnown("locale override already in effect")},
	{"Font families can only be set once", wrapKnown("font families already set")},
}

func wrapKnown(kind string) func(*protocol.Error, protocol.MethodType, interface{}) error {
	return func(msg *protocol.Error, method protocol.MethodType, params interface{}) error {
		return &KnownProtocolError{Kind: kind, Method: method, Params: params, Underlying: msg}
	}
}

// KnownProtocolError is a CDP protocol-level error whose message matched one
// of the recognised substrings in spec.md §7.
type KnownProtocolError struct {
	Kind       string
	Method     protocol.MethodType
	Params     interface{}
	Underlying *protocol.Error
}

func (e *KnownProtocolError) Error() string {
	return fmt.Sprintf("aiodt: %s: %s (method=%s)", e.Kind, e.Underlying.Message, e.Method)
}

func (e *KnownProtocolError) Unwrap() error { return e.Underlying }

// UnknownProtocolError wraps a CDP {error} envelope whose message did not
// match any recognised substring, keeping the method, params, code and
// message for diagnosis (spec.md §7).
type UnknownProtocolError struct {
	Method     protocol.MethodType
	Params     interface{}
	Underlying *protocol.Error
}

func (e *UnknownProtocolError) Error() string {
	return fmt.Sprintf("aiodt: cdp error %d: %s (method=%s, params=%+v)",
		e.Underlying.Code, e.Underlying.Message, e.Method, e.Params)
}

func (e *UnknownProtocolError) Unwrap() error { return e.Underlying }

// classifyProtocolError turns a raw CDP {error} envelope into a typed error.
func classifyProtocolError(msg *protocol.Error, method protocol.MethodType, params interface{}) error {
	for _, k := range protocolErrorSubstrings {
		if strings.Contains(msg.Message, k.substr) {
			return k.mk(msg, method, params)
		}
	}
	return &UnknownProtocolError{Method: method, Params: params, Underlying: msg}
}
