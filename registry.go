package aiodt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PieceOfGood/aio-dt-go/discovery"
	"github.com/PieceOfGood/aio-dt-go/protocol"
	"github.com/PieceOfGood/aio-dt-go/protocol/browser"
	"github.com/PieceOfGood/aio-dt-go/protocol/page"
	"github.com/PieceOfGood/aio-dt-go/protocol/runtime"
	"github.com/PieceOfGood/aio-dt-go/protocol/target"
	"github.com/PieceOfGood/aio-dt-go/transport"
)

// Registry is the target registry and session factory (spec.md §2 item 8):
// it discovers targets over the browser's HTTP endpoint and hands out
// activated Connections for them. It holds no state beyond the debug
// endpoint and the browser family tag (spec.md §4.2): every lookup re-reads
// /json/list and every Connection() method dials a fresh websocket, since a
// Target Registry "holds weak references to Connections only by id; it
// never owns them" (spec.md §3). Callers are expected to hold on to and
// detach the Connections they are handed back.
type Registry struct {
	http *discovery.Client

	logf          LogFunc
	verbose       bool
	isHeadless    bool
	browserFamily string
}

// NewRegistry constructs a Registry against the browser's HTTP debugging
// endpoint at urlstr (e.g. "http://127.0.0.1:9222/json").
func NewRegistry(urlstr string, opts ...RegistryOption) *Registry {
	r := &Registry{
		http: discovery.New(urlstr),
		logf: defaultLogf,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// List returns every target currently known to the browser.
func (r *Registry) List(ctx context.Context) ([]*discovery.Target, error) {
	return r.http.ListTargets(ctx)
}

// MatchMode selects how GetBy compares a target's field against value.
type MatchMode int

const (
	MatchExact MatchMode = iota
	MatchContains
	MatchStartsWith
)

// targetField extracts the string form of one of a Target's lookup keys,
// the set get_by(key, ...) is defined over (id, type, title, url, parentId).
func targetField(t *discovery.Target, key string) (string, bool) {
	switch key {
	case "id":
		return t.ID, true
	case "type":
		return string(t.Type), true
	case "title":
		return t.Title, true
	case "url":
		return t.URL, true
	case "parentId":
		return t.ParentID, true
	default:
		return "", false
	}
}

// GetBy scans the target list in order and returns the index-th target
// whose key field matches value under mode, lower-casing both sides of the
// comparison first (original_source/aio_dt_protocol/browser.py's
// getConnectionBy: value.lower(), exact/contains/startswith).
func (r *Registry) GetBy(ctx context.Context, key, value string, mode MatchMode, index int) (*discovery.Target, error) {
	targets, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	v := strings.ToLower(value)
	counter := 0
	for _, t := range targets {
		field, ok := targetField(t, key)
		if !ok {
			continue
		}
		field = strings.ToLower(field)
		var matched bool
		switch mode {
		case MatchExact:
			matched = field == v
		case MatchContains:
			matched = strings.Contains(field, v)
		case MatchStartsWith:
			matched = strings.HasPrefix(field, v)
		}
		if !matched {
			continue
		}
		if counter == index {
			return t, nil
		}
		counter++
	}
	return nil, discovery.ErrTargetNotFound
}

// ConnectionByID re-reads the target list and returns a freshly activated
// Connection for targetID. It does not cache or reuse any previously
// returned Connection (spec.md §3, §4.2): the caller owns the Connection it
// gets back and is responsible for detaching it.
func (r *Registry) ConnectionByID(ctx context.Context, targetID string) (*Connection, error) {
	t, err := r.GetBy(ctx, "id", targetID, MatchExact, 0)
	if err != nil {
		return nil, err
	}
	return r.activate(ctx, t)
}

// ConnectionByURL re-reads the target list and returns a freshly activated
// Connection for the index-th target whose URL matches value under mode.
func (r *Registry) ConnectionByURL(ctx context.Context, value string, mode MatchMode, index int) (*Connection, error) {
	t, err := r.GetBy(ctx, "url", value, mode, index)
	if err != nil {
		return nil, err
	}
	return r.activate(ctx, t)
}

// ConnectionByTitle re-reads the target list and returns a freshly
// activated Connection for the index-th target whose title matches value
// under mode.
func (r *Registry) ConnectionByTitle(ctx context.Context, value string, mode MatchMode, index int) (*Connection, error) {
	t, err := r.GetBy(ctx, "title", value, mode, index)
	if err != nil {
		return nil, err
	}
	return r.activate(ctx, t)
}

// ConnectionByType re-reads the target list and returns a freshly activated
// Connection for the first target of the given discovery.TargetType.
func (r *Registry) ConnectionByType(ctx context.Context, typ discovery.TargetType) (*Connection, error) {
	t, err := r.GetBy(ctx, "type", string(typ), MatchExact, 0)
	if err != nil {
		return nil, err
	}
	return r.activate(ctx, t)
}

// ConnectionByOpener re-reads the target list and returns a freshly
// activated Connection for the first target whose ParentID is openerID, the
// window.open()/target="_blank" child-tab lookup (spec.md §2 item 8 "child
// targets such as popups").
func (r *Registry) ConnectionByOpener(ctx context.Context, openerID string) (*Connection, error) {
	t, err := r.GetBy(ctx, "parentId", openerID, MatchExact, 0)
	if err != nil {
		return nil, err
	}
	return r.activate(ctx, t)
}

// ChildrenFrames returns every target whose ParentID is parentID, used to
// enumerate a page's own iframe targets (out-of-process frames expose a
// target of their own).
func (r *Registry) ChildrenFrames(ctx context.Context, parentID string) ([]*discovery.Target, error) {
	targets, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*discovery.Target
	for _, t := range targets {
		if t.ParentID == parentID {
			out = append(out, t)
		}
	}
	return out, nil
}

// CreateTab opens a new page target at urlstr (or about:blank if empty),
// activates a Connection for it, and primes it with the Page and Runtime
// domains enabled as one protocol.Tasks sequence, so the Connection handed
// back is immediately ready for Navigate/Eval without the caller having to
// enable either domain itself.
func (r *Registry) CreateTab(ctx context.Context, urlstr string) (*Connection, error) {
	t, err := r.http.NewTarget(ctx, urlstr)
	if err != nil {
		return nil, err
	}
	c, err := r.activate(ctx, t)
	if err != nil {
		return nil, err
	}

	prime := protocol.Tasks{page.Enable(), runtime.Enable()}
	if err := prime.Do(c.Context(ctx)); err != nil {
		c.Detach(ctx)
		return nil, err
	}
	c.runtimeEnabled.Store(true)
	return c, nil
}

// WaitFirstTab blocks until a page target appears, or ctx is done, and
// returns an activated Connection for it. It has no deadline of its own:
// it polls for as long as ctx allows.
func (r *Registry) WaitFirstTab(ctx context.Context) (*Connection, error) {
	t, err := r.http.WaitForTarget(ctx, func(t *discovery.Target) bool { return t.Type == discovery.Page })
	if err != nil {
		return nil, err
	}
	return r.activate(ctx, t)
}

// CloseAllExcept closes every page target except keepID, one at a time,
// over CDP's Target.closeTarget issued on a Connection scoped to the
// target being closed (spec.md §4.2: "obtain its Connection and issue
// Target.closeTarget; tolerate 'no target with given id found'"),
// rather than the HTTP /json/close endpoint, which cannot close the
// browser's own last remaining page.
func (r *Registry) CloseAllExcept(ctx context.Context, keepID string) error {
	targets, err := r.List(ctx)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if t.Type != discovery.Page || t.ID == keepID {
			continue
		}
		if err := r.CloseTarget(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// CloseTarget closes the target identified by targetID over CDP's
// Target.closeTarget, activating a fresh Connection scoped to targetID
// itself to issue the command and detaching it afterward. A target that has
// already disappeared (from the list, or reported "no target with given id
// found" by the browser) is tolerated rather than treated as an error,
// grounded in original_source/aio_dt_protocol/browser.py's
// closeAllTabsExcept swallowing NoTargetWithGivenIdFound.
func (r *Registry) CloseTarget(ctx context.Context, targetID string) error {
	t, err := r.GetBy(ctx, "id", targetID, MatchExact, 0)
	if err != nil {
		if err == discovery.ErrTargetNotFound {
			return nil
		}
		return err
	}

	c, err := r.activate(ctx, t)
	if err != nil {
		return err
	}
	defer c.Detach(ctx)

	err = target.CloseTarget(target.ID(targetID)).Do(c.Context(ctx))
	if isNoTargetWithGivenID(err) {
		return nil
	}
	return err
}

func isNoTargetWithGivenID(err error) bool {
	var known *KnownProtocolError
	return errors.As(err, &known) && known.Kind == "no target with given id found"
}

// BrowserConnection dials a fresh Connection to the browser-level CDP
// endpoint (as opposed to any one page target), reading its websocket URL
// from the HTTP /json/version payload. It is not cached: each call re-reads
// /json/version and dials anew, matching ConnectionByID's "no registry-
// owned session" contract.
func (r *Registry) BrowserConnection(ctx context.Context) (*Connection, error) {
	info, err := r.http.VersionInfo(ctx)
	if err != nil {
		return nil, err
	}
	wsURL := transport.ForceIP(info["webSocketDebuggerUrl"])
	if wsURL == "" {
		return nil, fmt.Errorf("aiodt: browser endpoint did not report a websocket debugger URL")
	}

	c := NewConnection(wsURL, "", "",
		WithLogf(r.logf),
		WithVerbose(r.verbose),
		WithHeadless(r.isHeadless),
		WithBrowserFamily(r.browserFamily),
	)
	if err := c.Activate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Version fetches the remote browser's product/revision/protocol metadata,
// over a scratch browser-level Connection it detaches when done.
func (r *Registry) Version(ctx context.Context) (*browser.GetVersionReturns, error) {
	c, err := r.BrowserConnection(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Detach(ctx)
	return browser.GetVersion().Do(c.Context(ctx))
}

// Shutdown asks the remote browser process to close cleanly, over
// Browser.close rather than closing any one target.
func (r *Registry) Shutdown(ctx context.Context) error {
	c, err := r.BrowserConnection(ctx)
	if err != nil {
		return err
	}
	defer c.Detach(ctx)
	return browser.Close().Do(c.Context(ctx))
}

func (r *Registry) activate(ctx context.Context, t *discovery.Target) (*Connection, error) {
	wsURL := transport.ForceIP(t.WebSocketDebuggerURL)
	if wsURL == "" {
		return nil, fmt.Errorf("aiodt: target %s has no websocket debugger URL", t.ID)
	}

	c := NewConnection(wsURL, t.ID, t.DevtoolsFrontendURL,
		WithLogf(r.logf),
		WithVerbose(r.verbose),
		WithHeadless(r.isHeadless),
		WithBrowserFamily(r.browserFamily),
	)
	if err := c.Activate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}
