package aiodt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PieceOfGood/aio-dt-go/protocol"
	"github.com/PieceOfGood/aio-dt-go/protocol/page"
)

// LoadingState is the six-state projection of a connection's top-frame
// navigation lifecycle (spec.md §3, §4.5).
type LoadingState int32

const (
	LoadingIdle LoadingState = iota
	LoadingNavigateRequested
	LoadingStarted
	LoadingNavigated
	LoadingStopped
	LoadingReloadRequested
)

func (s LoadingState) String() string {
	switch s {
	case LoadingIdle:
		return "idle"
	case LoadingNavigateRequested:
		return "navigate_requested"
	case LoadingStarted:
		return "started"
	case LoadingNavigated:
		return "navigated"
	case LoadingStopped:
		return "stopped"
	case LoadingReloadRequested:
		return "reload_requested"
	default:
		return "unknown"
	}
}

// loadingTracker derives LoadingState from Page-domain events, scoped to
// one connection's own top frame (frameId == target id), per spec.md §4.5.
// Navigate/Reload set the "requested" states directly; the remaining
// transitions come from the three frame lifecycle events.
type loadingTracker struct {
	state atomic.Int32

	mu   sync.RWMutex
	subs []func(LoadingState)
}

func newLoadingTracker() *loadingTracker {
	return &loadingTracker{}
}

func (t *loadingTracker) set(s LoadingState) {
	t.state.Store(int32(s))
	t.mu.RLock()
	subs := append([]func(LoadingState){}, t.subs...)
	t.mu.RUnlock()
	for _, fn := range subs {
		fn(s)
	}
}

// State returns the tracker's current LoadingState.
func (t *loadingTracker) State() LoadingState { return LoadingState(t.state.Load()) }

// onChange subscribes fn to every future state transition.
func (t *loadingTracker) onChange(fn func(LoadingState)) {
	t.mu.Lock()
	t.subs = append(t.subs, fn)
	t.mu.Unlock()
}

func (t *loadingTracker) observe(targetID string, msg *protocol.Message) {
	switch msg.Method {
	case page.EventFrameStartedLoading:
		var p page.EventFrameStartedLoadingPayload
		if json.Unmarshal(msg.Params, &p) == nil && string(p.FrameID) == targetID {
			t.set(LoadingStarted)
		}
	case page.EventFrameNavigated:
		var p page.EventFrameNavigatedPayload
		if json.Unmarshal(msg.Params, &p) == nil && string(p.Frame.ID) == targetID {
			t.set(LoadingNavigated)
		}
	case page.EventFrameStoppedLoading:
		var p page.EventFrameStoppedLoadingPayload
		if json.Unmarshal(msg.Params, &p) == nil && string(p.FrameID) == targetID {
			t.set(LoadingStopped)
		}
	}
}

// LoadingState returns the connection's current page loading state.
func (c *Connection) LoadingState() LoadingState { return c.loading.State() }

// OnLoadingStateChange subscribes fn to every future loading state
// transition observed on this connection.
func (c *Connection) OnLoadingStateChange(fn func(LoadingState)) { c.loading.onChange(fn) }

// Navigate enables the Page domain (Page.enable is sent on every call),
// rewrites url per spec.md
// §4.5's navigation wrapper rules, marks the loading state
// NavigateRequested, and issues Page.navigate:
//
//   - "http(s)://...", "<scheme>://..." or "about:blank" pass through.
//   - any other string is wrapped as "data:text/html,<percent-encoded>".
func (c *Connection) Navigate(ctx context.Context, target string) (protocol.FrameID, error) {
	return c.navigate(ctx, rewriteNavigateURL(target))
}

// NavigateBytes wraps payload as "data:text/html;Base64,<payload>" and
// navigates to it, the bytes-argument branch of spec.md §4.5's rewrite
// rules.
func (c *Connection) NavigateBytes(ctx context.Context, payload []byte) (protocol.FrameID, error) {
	return c.navigate(ctx, "data:text/html;Base64,"+base64.StdEncoding.EncodeToString(payload))
}

func (c *Connection) navigate(ctx context.Context, rewritten string) (protocol.FrameID, error) {
	if err := page.Enable().Do(c.Context(ctx)); err != nil {
		return protocol.EmptyFrameID, err
	}
	c.loading.set(LoadingNavigateRequested)
	return page.Navigate(rewritten).Do(c.Context(ctx))
}

// Reload enables the Page domain (Page.enable is sent on every call), marks
// the loading state
// ReloadRequested, and issues Page.reload.
func (c *Connection) Reload(ctx context.Context, ignoreCache bool) error {
	if err := page.Enable().Do(c.Context(ctx)); err != nil {
		return err
	}
	c.loading.set(LoadingReloadRequested)
	return page.Reload().WithIgnoreCache(ignoreCache).Do(c.Context(ctx))
}

// StopLoading issues Page.stopLoading.
func (c *Connection) StopLoading(ctx context.Context) error {
	return page.StopLoading().Do(c.Context(ctx))
}

func rewriteNavigateURL(target string) string {
	if isPassthroughURL(target) {
		return target
	}
	return "data:text/html," + url.PathEscape(target)
}

func isPassthroughURL(target string) bool {
	if target == "about:blank" {
		return true
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return true
	}
	if i := strings.Index(target, "://"); i > 0 {
		// any <scheme>://... browser-internal URL (chrome://, edge://, ...);
		// text before "://" that is not a scheme (HTML holding a link) is not.
		for _, r := range target[:i] {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
				return false
			}
		}
		return true
	}
	return false
}
