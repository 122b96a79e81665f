package aiodt

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/PieceOfGood/aio-dt-go/protocol/fetch"
)

// Interceptor is the request interception pipeline (spec.md §2 item 7,
// §4.4): pattern-matched pause events fan out to caller-supplied handlers,
// which must reach exactly one terminal disposition
// (Fulfill/Continue/Fail) per requestId. The engine tracks which request
// ids are still awaiting a disposition so a caller bug (double-dispose) is
// reported rather than silently producing a second Fetch command for an
// already-resumed request; it does not time out a pause that never
// receives one, per spec.md §4.4 "The engine itself does not time these
// out."
type Interceptor struct {
	conn *Connection

	mu       sync.Mutex
	inflight map[string]struct{}

	pauseHandler EventHandler
	authHandler  EventHandler
}

// NewInterceptor returns an Interceptor bound to conn. Enable must be
// called before requests are paused.
func NewInterceptor(conn *Connection) *Interceptor {
	return &Interceptor{conn: conn, inflight: make(map[string]struct{})}
}

// Enable installs onPause (and, if WithHandleAuth was passed, onAuth) as
// this connection's Fetch.requestPaused / Fetch.authRequired handlers and
// turns on interception for the patterns given via opts. An Enable call
// with no WithPattern options intercepts every request, Fetch's own
// default.
func (it *Interceptor) Enable(ctx context.Context, onPause func(context.Context, *fetch.EventRequestPausedPayload), onAuth func(context.Context, *fetch.EventAuthRequiredPayload), opts ...FetchOption) error {
	cfg := &fetchConfig{}
	for _, o := range opts {
		o(cfg)
	}

	it.pauseHandler = func(params json.RawMessage, bound []interface{}) {
		var p fetch.EventRequestPausedPayload
		if err := json.Unmarshal(params, &p); err != nil {
			return
		}
		it.markInflight(p.RequestID)
		if onPause != nil {
			onPause(ctx, &p)
		}
	}
	if err := it.conn.AddEventListener(ctx, fetch.EventRequestPaused, it.pauseHandler); err != nil {
		return err
	}

	if cfg.handleAuth {
		it.authHandler = func(params json.RawMessage, bound []interface{}) {
			var p fetch.EventAuthRequiredPayload
			if err := json.Unmarshal(params, &p); err != nil {
				return
			}
			if onAuth != nil {
				onAuth(ctx, &p)
			}
		}
		if err := it.conn.AddEventListener(ctx, fetch.EventAuthRequired, it.authHandler); err != nil {
			return err
		}
	}

	patterns := make([]*fetch.RequestPattern, 0, len(cfg.patterns))
	for _, p := range cfg.patterns {
		patterns = append(patterns, &fetch.RequestPattern{
			URLPattern:   p.urlPattern,
			ResourceType: p.resourceType,
			RequestStage: fetch.RequestStage(p.stage),
		})
	}

	params := &fetch.EnableParams{Patterns: patterns, HandleAuthRequests: cfg.handleAuth}
	return it.conn.Execute(ctx, fetch.CommandEnable, params, nil)
}

// Disable turns off interception and unregisters its event handlers.
func (it *Interceptor) Disable(ctx context.Context) error {
	if it.pauseHandler != nil {
		it.conn.RemoveEventListener(fetch.EventRequestPaused, it.pauseHandler)
	}
	if it.authHandler != nil {
		it.conn.RemoveEventListener(fetch.EventAuthRequired, it.authHandler)
	}
	return fetch.Disable().Do(it.conn.Context(ctx))
}

func (it *Interceptor) markInflight(requestID string) {
	it.mu.Lock()
	it.inflight[requestID] = struct{}{}
	it.mu.Unlock()
}

func (it *Interceptor) consume(requestID string) error {
	it.mu.Lock()
	_, ok := it.inflight[requestID]
	if ok {
		delete(it.inflight, requestID)
	}
	it.mu.Unlock()
	if !ok {
		return ErrRequestAlreadyDisposed
	}
	return nil
}

// Continue resumes a paused request, unmodified or with overrides.
func (it *Interceptor) Continue(ctx context.Context, p *fetch.ContinueRequestParams) error {
	if err := it.consume(p.RequestID); err != nil {
		return err
	}
	return p.Do(it.conn.Context(ctx))
}

// Fulfill answers a paused request with a canned response.
func (it *Interceptor) Fulfill(ctx context.Context, p *fetch.FulfillRequestParams) error {
	if err := it.consume(p.RequestID); err != nil {
		return err
	}
	return p.Do(it.conn.Context(ctx))
}

// Fail aborts a paused request with reason.
func (it *Interceptor) Fail(ctx context.Context, requestID string, reason fetch.ErrorReason) error {
	if err := it.consume(requestID); err != nil {
		return err
	}
	return fetch.FailRequest(requestID, reason).Do(it.conn.Context(ctx))
}

// ContinueWithAuth answers an auth challenge pause. Auth pauses are
// tracked by the browser in a separate namespace from request pauses, so
// they are not subject to Continue/Fulfill/Fail's inflight bookkeeping.
func (it *Interceptor) ContinueWithAuth(ctx context.Context, requestID string, resp fetch.AuthChallengeResponse) error {
	return fetch.ContinueWithAuth(requestID, resp).Do(it.conn.Context(ctx))
}

// GetResponseBody fetches a Response-stage pause's body, returning it
// alongside whether it is base64-encoded (CDP's base64Encoded flag) so the
// caller can decode it correctly instead of assuming one encoding.
func (it *Interceptor) GetResponseBody(ctx context.Context, requestID string) (body string, base64Encoded bool, err error) {
	return fetch.GetResponseBody(requestID).Do(it.conn.Context(ctx))
}
