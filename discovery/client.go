// Package discovery talks to the Chrome DevTools /json HTTP endpoint: it
// lists, creates, activates and closes targets, and resolves their
// websocket debugger URL, grounded in chromedp's client package and the
// PieceOfGood browser.py tab-management helpers (getConnectionBy,
// createTab, waitFirstTab, closeAllTabsExcept).
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the default HTTP debugging endpoint.
	DefaultEndpoint = "http://127.0.0.1:9222/json"

	// DefaultPollInterval is the default interval used by WaitForTarget.
	DefaultPollInterval = 100 * time.Millisecond
)

// TargetType classifies a discovered target.
type TargetType string

// Known target types.
const (
	Page          TargetType = "page"
	BackgroundPage TargetType = "background_page"
	ServiceWorker TargetType = "service_worker"
	SharedWorker  TargetType = "shared_worker"
	Browser       TargetType = "browser"
	Other         TargetType = "other"
)

// Target describes one entry returned by the /json/list endpoint.
type Target struct {
	ID                   string `json:"id"`
	Type                 TargetType `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl,omitempty"`
	ParentID             string `json:"parentId,omitempty"`
}

// Client queries a browser's HTTP debugging endpoint.
type Client struct {
	url  string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the *http.Client used for requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a discovery Client for the HTTP debugging endpoint at urlstr.
// Since Chrome 66+ the Host header must be "localhost" or an IP address;
// New resolves a literal "localhost" to its IP the same way chromedp's
// client.URL option does.
func New(urlstr string, opts ...Option) *Client {
	c := &Client{url: resolveLocalhost(urlstr), http: &http.Client{Timeout: 10 * time.Second}}
	for _, o := range opts {
		o(c)
	}
	return c
}

func resolveLocalhost(urlstr string) string {
	const prefix = "http://"
	if !strings.HasPrefix(strings.ToLower(urlstr), prefix) {
		return urlstr
	}
	host, port, path := urlstr[len(prefix):], "", ""
	if i := strings.Index(host, "/"); i != -1 {
		host, path = host[:i], host[i:]
	}
	if i := strings.Index(host, ":"); i != -1 {
		host, port = host[:i], host[i:]
	}
	if host != "localhost" {
		return urlstr
	}
	if addr, err := net.ResolveIPAddr("ip", host); err == nil {
		return prefix + addr.IP.String() + port + path
	}
	return urlstr
}

func (c *Client) doReq(ctx context.Context, action string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/"+action, nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("discovery: %s: unexpected status %s", action, res.Status)
	}
	if v == nil {
		return nil
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// ListTargets lists every target known to the browser.
func (c *Client) ListTargets(ctx context.Context) ([]*Target, error) {
	var targets []*Target
	if err := c.doReq(ctx, "list", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// ListTargetsWithType lists the targets of the given type.
func (c *Client) ListTargetsWithType(ctx context.Context, typ TargetType) ([]*Target, error) {
	all, err := c.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Target
	for _, t := range all {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out, nil
}

// FindTargetByURL returns the first target whose URL contains substr, the
// discovery analogue of getConnectionBy in the Python original.
func (c *Client) FindTargetByURL(ctx context.Context, substr string) (*Target, error) {
	targets, err := c.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if strings.Contains(t.URL, substr) {
			return t, nil
		}
	}
	return nil, ErrTargetNotFound
}

// ErrTargetNotFound is returned when no target matches a discovery query.
var ErrTargetNotFound = fmt.Errorf("discovery: no matching target")

// NewTarget opens a new page target at urlstr, or about:blank if empty.
func (c *Client) NewTarget(ctx context.Context, urlstr string) (*Target, error) {
	action := "new"
	if urlstr != "" {
		action += "?" + urlstr
	}
	t := new(Target)
	if err := c.doReq(ctx, action, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ActivateTarget brings a target's tab to the foreground.
func (c *Client) ActivateTarget(ctx context.Context, id string) error {
	return c.doReq(ctx, "activate/"+id, nil)
}

// CloseTarget closes a target by id.
func (c *Client) CloseTarget(ctx context.Context, id string) error {
	return c.doReq(ctx, "close/"+id, nil)
}

// CloseAllExcept closes every page target except keepID, mirroring
// closeAllTabsExcept from the Python original.
func (c *Client) CloseAllExcept(ctx context.Context, keepID string) error {
	targets, err := c.ListTargetsWithType(ctx, Page)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if t.ID == keepID {
			continue
		}
		if err := c.CloseTarget(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// VersionInfo returns the remote /json/version payload (Browser, Protocol-Version,
// webSocketDebuggerUrl, and the rest of Chrome's own field names).
func (c *Client) VersionInfo(ctx context.Context) (map[string]string, error) {
	v := make(map[string]string)
	if err := c.doReq(ctx, "version", &v); err != nil {
		return nil, err
	}
	return v, nil
}

// WaitForTarget polls ListTargets until match returns true for some target,
// or ctx is done. It is the discovery analogue of waitFirstTab.
func (c *Client) WaitForTarget(ctx context.Context, match func(*Target) bool) (*Target, error) {
	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()
	for {
		targets, err := c.ListTargets(ctx)
		if err == nil {
			for _, t := range targets {
				if match(t) {
					return t, nil
				}
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
