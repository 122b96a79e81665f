// Package aiodt is a client library for driving a Chromium-family browser
// through the Chrome DevTools Protocol over one per-target websocket per
// Connection: request/response correlation, event fan-out, a two-way
// JS-to-host callback bridge, execution-context tracking, and request
// interception, grounded throughout in chromedp/chromedp (conn.go,
// handler.go, context.go) and in the PieceOfGood aio_dt_protocol Python
// library (Browser.py, Page.py) this module's contract was distilled from.
package aiodt

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mailru/easyjson"

	"github.com/PieceOfGood/aio-dt-go/protocol"
	"github.com/PieceOfGood/aio-dt-go/protocol/inspector"
	"github.com/PieceOfGood/aio-dt-go/protocol/runtime"
	"github.com/PieceOfGood/aio-dt-go/protocol/target"
	"github.com/PieceOfGood/aio-dt-go/transport"
)

// Connection is one live websocket session to one CDP target: it owns the
// channel, the request/response correlator, the listener registry, the
// promise bridge and the execution-context manager (spec.md §3
// "Ownership"). Exactly one Connection exists per active (target, session)
// pair; there is no sharing of a websocket across Connections.
type Connection struct {
	wsURL       string
	targetID    string
	frontendURL string
	isHeadless  bool
	browserFamily string
	verbose     bool

	logf, errf, debugf LogFunc
	generic             GenericCallback

	conn *transport.Conn

	nextID     int64
	pendingMu  sync.Mutex
	pending    map[int64]chan *protocol.Message

	listeners *listenerRegistry
	bridge    *promiseBridge
	execCtx   *ExecutionContextManager
	loading   *loadingTracker

	runtimeEnabled atomic.Bool
	connected      atomic.Bool

	onDetachMu sync.RWMutex
	onDetach   *onDetachHook

	doneOnce    sync.Once
	doneCh      chan struct{}
	closeOnce   sync.Once
	closeSignal chan struct{}
	closeSubs   closeBroadcast
}

type onDetachHook struct {
	fn func(ctx context.Context) error
}

// NewConnection constructs a Connection for one target descriptor. It must
// be Activate'd before use.
func NewConnection(wsURL, targetID, frontendURL string, opts ...ConnectionOption) *Connection {
	c := &Connection{
		wsURL:       wsURL,
		targetID:    targetID,
		frontendURL: frontendURL,
		logf:        defaultLogf,
		errf:        defaultLogf,
		debugf:      nil,
		pending:     make(map[int64]chan *protocol.Message),
		listeners:   newListenerRegistry(),
		bridge:      newPromiseBridge(),
		execCtx:     newExecutionContextManager(),
		loading:     newLoadingTracker(),
		doneCh:      make(chan struct{}),
		closeSignal: make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TargetID returns the CDP target id this Connection is attached to.
func (c *Connection) TargetID() string { return c.targetID }

// WSURL returns the websocket debugger URL this Connection dials.
func (c *Connection) WSURL() string { return c.wsURL }

// FrontendURL returns the relative devtoolsFrontendUrl for this target.
func (c *Connection) FrontendURL() string { return c.frontendURL }

// IsHeadless reports whether the owning browser was launched headless.
func (c *Connection) IsHeadless() bool { return c.isHeadless }

// BrowserFamily returns the browser family tag ("chrome", "brave", ...).
func (c *Connection) BrowserFamily() string { return c.browserFamily }

// Connected reports whether the Connection currently has a live websocket.
func (c *Connection) Connected() bool { return c.connected.Load() }

// isWatchMode reports whether this Connection was activated with a generic
// callback, the "Runtime-watch mode" DOMNode.BuildScript requires.
func (c *Connection) isWatchMode() bool { return c.generic != nil }

// ExecutionContexts returns the Connection's execution-context manager
// (spec.md §4.3).
func (c *Connection) ExecutionContexts() *ExecutionContextManager { return c.execCtx }

// Context returns ctx carrying c as the protocol.Executor, so that
// protocol/<domain> command types' Do(ctx) methods run against c.
func (c *Connection) Context(ctx context.Context) context.Context {
	return protocol.WithExecutor(ctx, c)
}

// Activate opens the websocket at WSURL (no keepalive ping), marks the
// Connection connected, and spawns its receiver goroutine. If a generic
// callback was registered via WithGenericCallback, it additionally enables
// the Runtime domain. Activation is not idempotent: re-activating an
// already-active or previously detached Connection is an error (spec.md
// §4.1 "activate()").
func (c *Connection) Activate(ctx context.Context) error {
	if !c.connected.CompareAndSwap(false, true) {
		return ErrAlreadyActivated
	}

	var opts []transport.Option
	if c.debugf != nil {
		opts = append(opts, transport.WithDebugf(c.debugf))
	}
	conn, err := transport.Dial(ctx, c.wsURL, opts...)
	if err != nil {
		c.connected.Store(false)
		return err
	}
	c.conn = conn

	go c.receive()

	if c.generic != nil {
		if err := c.ensureRuntimeEnabled(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Call issues one CDP command, assigning it a monotonically increasing id.
// If waitForResponse is true, the pending slot for id is inserted before
// the message is sent, closing the race where a fast response arrives
// before the issuer registers to receive it (spec.md §4.1, §5). It returns
// the raw `result` payload, or a typed error translated from the response's
// `error` envelope.
func (c *Connection) Call(ctx context.Context, method protocol.MethodType, params interface{}, waitForResponse bool) (json.RawMessage, error) {
	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	id := atomic.AddInt64(&c.nextID, 1)

	var ch chan *protocol.Message
	if waitForResponse {
		ch = make(chan *protocol.Message, 1)
		c.pendingMu.Lock()
		c.pending[id] = ch
		c.pendingMu.Unlock()
	}

	msg := &protocol.Message{ID: id, Method: method}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			if waitForResponse {
				c.pendingMu.Lock()
				delete(c.pending, id)
				c.pendingMu.Unlock()
			}
			return nil, err
		}
		if string(b) != "null" {
			msg.Params = easyjson.RawMessage(b)
		}
	}

	if err := c.conn.WriteMessage(msg); err != nil {
		if waitForResponse {
			c.pendingMu.Lock()
			delete(c.pending, id)
			c.pendingMu.Unlock()
		}
		return nil, err
	}

	if !waitForResponse {
		return nil, nil
	}

	select {
	case resp := <-ch:
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		if resp == nil {
			return nil, ErrConnectionLost
		}
		if resp.Error != nil {
			return nil, classifyProtocolError(resp.Error, method, params)
		}
		return json.RawMessage(resp.Result), nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	}
}

// Execute implements protocol.Executor: it issues method via Call and, if
// res is non-nil, decodes the result into it. Per-domain command types
// (protocol/runtime, protocol/page, ...) invoke this through the context
// installed by Connection.Context.
func (c *Connection) Execute(ctx context.Context, method protocol.MethodType, params, res interface{}) error {
	result, err := c.Call(ctx, method, params, true)
	if err != nil {
		return err
	}
	if res == nil || len(result) == 0 {
		return nil
	}
	return json.Unmarshal(result, res)
}

func (c *Connection) ensureRuntimeEnabled(ctx context.Context) error {
	if c.runtimeEnabled.Load() {
		return nil
	}
	if err := c.Execute(ctx, runtime.CommandEnable, nil, nil); err != nil {
		return err
	}
	c.runtimeEnabled.Store(true)
	return nil
}

// Eval wraps Runtime.evaluate and surfaces an *EvaluateError (annotated
// with the protocol's row/column pointer) when the response carries
// exceptionDetails (spec.md §4.1 "eval()").
func (c *Connection) Eval(ctx context.Context, expression string) (*runtime.RemoteObject, error) {
	obj, exc, err := runtime.Evaluate(expression).WithIncludeCommandLineAPI(true).Do(c.Context(ctx))
	if err != nil {
		return nil, err
	}
	if exc != nil {
		msg := exc.Text
		if exc.Exception != nil && exc.Exception.Description != "" {
			msg = exc.Exception.Description
		}
		return nil, &EvaluateError{Text: msg, Line: exc.LineNumber, Column: exc.ColumnNumber}
	}
	return obj, nil
}

var promiseTailPattern = regexp.MustCompile(`\.then\(result\);?\s*$`)

// EvalPromise requires expression to end with ".then(result)"; it rewrites
// that tail to report the resolved value back over the console.info
// control channel, registers a one-shot waiter keyed by a freshly minted
// id, evaluates the rewritten script, and blocks until the value arrives
// (spec.md §4.1 "eval_promise()"). The promise-tail is keyed by a
// uuid.NewString() rather than a hash of the expression text, per spec.md
// §9's "promise-tail hashing" open question resolved in SPEC_FULL.md.
// Only a resolved promise reports back: a promise that rejects never reaches
// the rewritten tail, so EvalPromise then returns only when ctx is done or
// the Connection is lost.
func (c *Connection) EvalPromise(ctx context.Context, expression string) (json.RawMessage, error) {
	expr := strings.TrimSpace(expression)
	if !promiseTailPattern.MatchString(expr) {
		return nil, &ConfigurationError{Option: `expression (must end with ".then(result)")`}
	}

	channelID := uuid.NewString()
	tail := fmt.Sprintf(".then(result => console.info(JSON.stringify({channel_id: '%s', result: result})))", channelID)
	rewritten := promiseTailPattern.ReplaceAllString(expr, tail)

	ch := c.bridge.register(channelID)
	if _, err := c.Eval(ctx, rewritten); err != nil {
		c.bridge.abandon(channelID)
		return nil, err
	}

	select {
	case result := <-ch:
		return result, nil
	case <-ctx.Done():
		c.bridge.abandon(channelID)
		return nil, ctx.Err()
	case <-c.doneCh:
		return nil, ErrConnectionLost
	}
}

// AddListener registers a JS-to-host callback handler under name, the
// function name the page's console.info({func_name: name, ...}) envelope
// must match (spec.md §4.1, §6). Re-registering the same name replaces the
// previous handler (spec.md §9 "last registration wins on name
// collision"). If Runtime is not yet enabled, AddListener enables it.
func (c *Connection) AddListener(ctx context.Context, name string, handler CallbackHandler, bound ...interface{}) error {
	c.listeners.setCallback(name, handler, bound)
	return c.ensureRuntimeEnabled(ctx)
}

// RemoveListener unregisters the callback listener named name. Missing
// entries are tolerated.
func (c *Connection) RemoveListener(name string) { c.listeners.removeCallback(name) }

// AddEventListener registers handler for event, in registration order.
// Re-registering the same handler for the same event is idempotent
// (spec.md §3 "Event listener entry"). If Runtime is not yet enabled,
// AddEventListener enables it.
func (c *Connection) AddEventListener(ctx context.Context, event protocol.MethodType, handler EventHandler, bound ...interface{}) error {
	c.listeners.addEvent(event, handler, bound)
	return c.ensureRuntimeEnabled(ctx)
}

// RemoveEventListener unregisters handler from event. Missing entries are
// tolerated.
func (c *Connection) RemoveEventListener(event protocol.MethodType, handler EventHandler) {
	c.listeners.removeEvent(event, handler)
}

// RemoveAllForEvent drops every listener registered for event.
func (c *Connection) RemoveAllForEvent(event protocol.MethodType) {
	c.listeners.removeAllForEvent(event)
}

// SetOnDetach registers an async hook invoked (and awaited) when the
// Connection detaches, for whatever reason. It replaces any previously set
// hook (spec.md §3 "one slot").
func (c *Connection) SetOnDetach(fn func(ctx context.Context, bound []interface{}) error, bound ...interface{}) {
	c.onDetachMu.Lock()
	c.onDetach = &onDetachHook{fn: func(ctx context.Context) error { return fn(ctx, bound) }}
	c.onDetachMu.Unlock()
}

// RemoveOnDetach clears the on-detach hook.
func (c *Connection) RemoveOnDetach() {
	c.onDetachMu.Lock()
	c.onDetach = nil
	c.onDetachMu.Unlock()
}

func (c *Connection) getOnDetach() *onDetachHook {
	c.onDetachMu.RLock()
	defer c.onDetachMu.RUnlock()
	return c.onDetach
}

// OnClose subscribes fn to the Connection's close broadcast: fn runs
// exactly once, the first time the Connection detaches for any reason. If
// the Connection has already detached, fn runs immediately (spec.md §8
// "Close-observers see the close exactly once").
func (c *Connection) OnClose(fn func()) { c.closeSubs.subscribe(fn) }

// WaitForClose suspends until the target-side Inspector.detached(reason=
// "target_closed") event is received, or ctx is done (spec.md §4.1
// "wait_for_close()"). It does not fire on a locally initiated Detach or on
// an unrelated transport failure — only on the browser closing the target.
func (c *Connection) WaitForClose(ctx context.Context) error {
	select {
	case <-c.closeSignal:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Detach tears down the Connection: cancels the receiver, marks it
// disconnected, and awaits the on-detach hook if one is set. It is a no-op
// if already detached (spec.md §8 "Executing detach twice is
// observationally equivalent to executing it once"). Detach does NOT close
// the remote target (spec.md §9).
func (c *Connection) Detach(ctx context.Context) error {
	if !c.markDisconnected() {
		return nil
	}
	if hook := c.getOnDetach(); hook != nil {
		return hook.fn(ctx)
	}
	return nil
}

// markDisconnected performs the connected->false transition exactly once,
// failing every pending call and promise waiter and firing the close
// broadcast. It reports whether this call performed the transition.
func (c *Connection) markDisconnected() bool {
	if !c.connected.CompareAndSwap(true, false) {
		return false
	}
	c.failPending()
	c.bridge.abandonAll()
	c.doneOnce.Do(func() { close(c.doneCh) })
	c.closeSubs.fire()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return true
}

func (c *Connection) failPending() {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		// A slot that already holds its response keeps it; the waiter
		// consumes that instead of the connection-lost nil.
		select {
		case ch <- nil:
		default:
		}
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// GetTargetInfo fetches this Connection's own Target.getTargetInfo.
func (c *Connection) GetTargetInfo(ctx context.Context) (*target.Info, error) {
	return target.GetTargetInfo(target.ID(c.targetID)).Do(c.Context(ctx))
}

// GetURL returns the target's current URL, grounded in
// extend_connection.py's getUrl: a single Target.getTargetInfo call. Registry's
// URL and title lookups do not use it; they match on the /json/list fields.
func (c *Connection) GetURL(ctx context.Context) (string, error) {
	info, err := c.GetTargetInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// GetTitle returns the target's current title, the Title analogue of GetURL.
func (c *Connection) GetTitle(ctx context.Context) (string, error) {
	info, err := c.GetTargetInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

// receive is the Connection's single background receiver goroutine: it
// reads one JSON text frame at a time and dispatches it, per spec.md §4.1
// "Receiver algorithm". There is at most one receiver goroutine per
// Connection (spec.md §3 invariant).
func (c *Connection) receive() {
	for {
		var msg protocol.Message
		if err := c.conn.ReadMessage(&msg); err != nil {
			if c.verbose {
				c.errf("aiodt: %s: receiver: %v", c.targetID, err)
			}
			c.handleUnexpectedClose()
			return
		}
		c.dispatch(&msg)
	}
}

func (c *Connection) handleUnexpectedClose() {
	if !c.markDisconnected() {
		return
	}
	if hook := c.getOnDetach(); hook != nil {
		_ = hook.fn(context.Background())
	}
}

// dispatch demultiplexes one inbound envelope. An Inspector.detached event
// tears the Connection down and returns without further dispatch; for every
// other envelope, response correlation, the generic callback, the
// console.info JS bridge, and the event listener fan-out all run
// independently, the same way the Python original's _Recv runs each check in
// sequence rather than a mutually exclusive branch (spec.md §4.1).
func (c *Connection) dispatch(msg *protocol.Message) {
	if msg.Method == inspector.EventDetached {
		var p inspector.EventDetachedPayload
		if len(msg.Params) > 0 {
			_ = json.Unmarshal(msg.Params, &p)
		}
		if p.Reason == "target_closed" {
			c.closeOnce.Do(func() { close(c.closeSignal) })
		}
		c.handleUnexpectedClose()
		return
	}

	if msg.ID != 0 {
		c.pendingMu.Lock()
		if ch, ok := c.pending[msg.ID]; ok {
			ch <- msg
		}
		c.pendingMu.Unlock()
	}

	if c.generic != nil {
		go c.generic(msg)
	}

	if msg.Method == runtime.EventConsoleAPICalled {
		c.handleConsoleAPICalled(msg)
	}

	c.trackExecutionContexts(msg)
	c.loading.observe(c.targetID, msg)

	if msg.Method != "" {
		for _, e := range c.listeners.snapshotEvent(msg.Method) {
			entry := e
			go entry.handler(json.RawMessage(msg.Params), entry.bound)
		}
	}
}

// controlFrame is the decoded shape of a console.info bridge envelope,
// preserved bit-exact per spec.md §6/§9: exactly these four keys, no more.
type controlFrame struct {
	FuncName  string            `json:"func_name"`
	Args      []json.RawMessage `json:"args"`
	ChannelID string            `json:"channel_id"`
	Result    json.RawMessage   `json:"result"`
}

func (c *Connection) handleConsoleAPICalled(msg *protocol.Message) {
	var p runtime.EventConsoleAPICalledPayload
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return
	}
	if p.Type != "info" || len(p.Args) != 1 {
		return
	}

	var asString string
	if err := json.Unmarshal(p.Args[0].Value, &asString); err != nil {
		return // ordinary console output, not a control frame
	}

	var frame controlFrame
	if err := json.Unmarshal([]byte(asString), &frame); err != nil {
		if c.verbose {
			c.logf("aiodt: console.info payload is not a control frame: %v", err)
		}
		return
	}

	switch {
	case frame.FuncName != "":
		entry, ok := c.listeners.getCallback(frame.FuncName)
		if !ok {
			return
		}
		handler, bound := entry.handler, entry.bound
		go handler(frame.Args, bound)
	case frame.ChannelID != "":
		c.bridge.deliver(frame.ChannelID, frame.Result)
	default:
		if c.verbose {
			c.logf("aiodt: console.info control frame missing func_name/channel_id")
		}
	}
}

func (c *Connection) trackExecutionContexts(msg *protocol.Message) {
	switch msg.Method {
	case runtime.EventExecutionContextCreated:
		var p runtime.EventExecutionContextCreatedPayload
		if err := json.Unmarshal(msg.Params, &p); err == nil {
			c.execCtx.created(&p.Context)
		}
	case runtime.EventExecutionContextDestroyed:
		var p runtime.EventExecutionContextDestroyedPayload
		if err := json.Unmarshal(msg.Params, &p); err == nil {
			c.execCtx.destroyed(p.ExecutionContextID)
		}
	case runtime.EventExecutionContextsCleared:
		c.execCtx.cleared()
	}
}

// closeBroadcast is a multi-subscriber close notification: every Subscribe
// callback runs exactly once, the first time fire is called, or
// immediately on Subscribe if fire already ran (spec.md §3 "on_close
// broadcast", SPEC_FULL.md's multi-subscriber OnClose).
type closeBroadcast struct {
	mu    sync.Mutex
	fired bool
	subs  []func()
}

func (b *closeBroadcast) subscribe(fn func()) {
	b.mu.Lock()
	if b.fired {
		b.mu.Unlock()
		fn()
		return
	}
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

func (b *closeBroadcast) fire() {
	b.mu.Lock()
	if b.fired {
		b.mu.Unlock()
		return
	}
	b.fired = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
