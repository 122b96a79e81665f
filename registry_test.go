package aiodt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PieceOfGood/aio-dt-go/discovery"
	"github.com/PieceOfGood/aio-dt-go/protocol"
	"github.com/PieceOfGood/aio-dt-go/protocol/browser"
	"github.com/PieceOfGood/aio-dt-go/protocol/page"
	"github.com/PieceOfGood/aio-dt-go/protocol/runtime"
	"github.com/PieceOfGood/aio-dt-go/protocol/target"
)

// fakeDiscovery serves the handful of /json/* routes Registry depends on,
// backed by one or more fakePeer websockets so a Registry test exercises a
// real (loopback) CDP connection end to end.
type fakeDiscovery struct {
	srv     *httptest.Server
	url     string
	targets []map[string]interface{}
	newTarget map[string]interface{}
	closed  map[string]bool
	version map[string]string
}

func newFakeDiscovery(t *testing.T) *fakeDiscovery {
	t.Helper()
	d := &fakeDiscovery{closed: make(map[string]bool)}
	mux := http.NewServeMux()
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(d.targets)
	})
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(d.version)
	})
	mux.HandleFunc("/json/new", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(d.newTarget)
	})
	mux.HandleFunc("/json/close/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/json/close/"):]
		d.closed[id] = true
		w.Write([]byte("Target is closing"))
	})
	d.srv = httptest.NewServer(mux)
	d.url = d.srv.URL + "/json"
	t.Cleanup(d.srv.Close)
	return d
}

func (d *fakeDiscovery) addTarget(id, typ, urlstr, wsURL string) {
	d.targets = append(d.targets, map[string]interface{}{
		"id":                   id,
		"type":                 typ,
		"title":                "title-" + id,
		"url":                  urlstr,
		"webSocketDebuggerUrl": wsURL,
	})
}

func TestRegistryConnectionByIDAlwaysDialsFresh(t *testing.T) {
	peer := newFakePeer(t)
	disc := newFakeDiscovery(t)
	disc.addTarget("tgt-1", "page", "https://example.com", peer.wsURL)

	r := NewRegistry(disc.url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c1, err := r.ConnectionByID(ctx, "tgt-1")
	if err != nil {
		t.Fatalf("ConnectionByID: %v", err)
	}
	defer c1.Detach(ctx)

	c2, err := r.ConnectionByID(ctx, "tgt-1")
	if err != nil {
		t.Fatalf("ConnectionByID (second): %v", err)
	}
	defer c2.Detach(ctx)

	if c1 == c2 {
		t.Fatal("Registry holds no state beyond the debug endpoint; it must never hand back a cached Connection")
	}
	if !c1.Connected() || !c2.Connected() {
		t.Fatal("both independently dialed Connections should be live")
	}
}

func TestRegistryConnectionByURLAndTitle(t *testing.T) {
	peer := newFakePeer(t)
	disc := newFakeDiscovery(t)
	disc.addTarget("tgt-1", "page", "https://example.com/path", peer.wsURL)

	r := NewRegistry(disc.url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := r.ConnectionByURL(ctx, "example.com", MatchContains, 0)
	if err != nil {
		t.Fatalf("ConnectionByURL: %v", err)
	}
	defer c.Detach(ctx)
	if c.TargetID() != "tgt-1" {
		t.Fatalf("unexpected target: %s", c.TargetID())
	}

	c2, err := r.ConnectionByTitle(ctx, "title-tgt-1", MatchExact, 0)
	if err != nil {
		t.Fatalf("ConnectionByTitle: %v", err)
	}
	defer c2.Detach(ctx)
	if c2 == c {
		t.Fatal("ConnectionByTitle must dial its own fresh Connection, not reuse ConnectionByURL's")
	}
	if c2.TargetID() != "tgt-1" {
		t.Fatalf("unexpected target: %s", c2.TargetID())
	}

	if _, err := r.ConnectionByURL(ctx, "EXAMPLE.COM", MatchContains, 0); err != nil {
		t.Fatalf("ConnectionByURL should match case-insensitively: %v", err)
	}
}

func TestRegistryGetByModeAndIndex(t *testing.T) {
	disc := newFakeDiscovery(t)
	peer1 := newFakePeer(t)
	peer2 := newFakePeer(t)
	disc.addTarget("tgt-1", "page", "https://example.com/a", peer1.wsURL)
	disc.addTarget("tgt-2", "page", "https://example.com/b", peer2.wsURL)

	r := NewRegistry(disc.url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, err := r.GetBy(ctx, "url", "https://example.com", MatchStartsWith, 0)
	if err != nil {
		t.Fatalf("GetBy index 0: %v", err)
	}
	if first.ID != "tgt-1" {
		t.Fatalf("unexpected first match: %s", first.ID)
	}

	second, err := r.GetBy(ctx, "url", "https://example.com", MatchStartsWith, 1)
	if err != nil {
		t.Fatalf("GetBy index 1: %v", err)
	}
	if second.ID != "tgt-2" {
		t.Fatalf("unexpected second match: %s", second.ID)
	}

	if _, err := r.GetBy(ctx, "url", "https://example.com", MatchStartsWith, 2); err != discovery.ErrTargetNotFound {
		t.Fatalf("expected ErrTargetNotFound for an out-of-range index, got %v", err)
	}
}

func TestRegistryCreateTab(t *testing.T) {
	peer := newFakePeer(t)
	disc := newFakeDiscovery(t)
	disc.newTarget = map[string]interface{}{
		"id": "tgt-new", "type": "page", "title": "", "url": "about:blank",
		"webSocketDebuggerUrl": peer.wsURL,
	}
	peer.onCommand(page.CommandEnable, func(protocol.Message) (interface{}, *protocol.Error) {
		return map[string]interface{}{}, nil
	})
	peer.onCommand(runtime.CommandEnable, func(protocol.Message) (interface{}, *protocol.Error) {
		return map[string]interface{}{}, nil
	})

	r := NewRegistry(disc.url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := r.CreateTab(ctx, "")
	if err != nil {
		t.Fatalf("CreateTab: %v", err)
	}
	if c.TargetID() != "tgt-new" {
		t.Fatalf("unexpected target id: %s", c.TargetID())
	}
}

func TestRegistryWaitFirstTab(t *testing.T) {
	peer := newFakePeer(t)
	disc := newFakeDiscovery(t)

	r := NewRegistry(disc.url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	var c *Connection
	var err error
	go func() {
		c, err = r.WaitFirstTab(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	disc.addTarget("tgt-1", "page", "https://example.com", peer.wsURL)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitFirstTab never returned after a page target appeared")
	}
	if err != nil {
		t.Fatalf("WaitFirstTab: %v", err)
	}
	if c.TargetID() != "tgt-1" {
		t.Fatalf("unexpected target id: %s", c.TargetID())
	}
}

func TestRegistryCloseAllExceptUsesCDPCloseTarget(t *testing.T) {
	peerKeep := newFakePeer(t)
	peerDrop := newFakePeer(t)
	disc := newFakeDiscovery(t)
	disc.addTarget("keep", "page", "https://keep.example", peerKeep.wsURL)
	disc.addTarget("drop", "page", "https://drop.example", peerDrop.wsURL)

	var sawCloseTarget bool
	peerDrop.onCommand(target.CommandCloseTarget, func(msg protocol.Message) (interface{}, *protocol.Error) {
		sawCloseTarget = true
		return map[string]interface{}{}, nil
	})

	r := NewRegistry(disc.url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.CloseAllExcept(ctx, "keep"); err != nil {
		t.Fatalf("CloseAllExcept: %v", err)
	}
	if !sawCloseTarget {
		t.Fatal("expected CloseAllExcept to issue Target.closeTarget over the dropped target's own websocket")
	}
	if disc.closed["drop"] {
		t.Fatal("CloseAllExcept must not fall back to the HTTP /json/close endpoint")
	}
}

func TestRegistryCloseTargetTreatsMissingTargetAsNoOp(t *testing.T) {
	disc := newFakeDiscovery(t)

	r := NewRegistry(disc.url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.CloseTarget(ctx, "already-gone"); err != nil {
		t.Fatalf("CloseTarget on a vanished target should be a no-op, got: %v", err)
	}
}

func TestRegistryBrowserConnectionVersion(t *testing.T) {
	peer := newFakePeer(t)
	disc := newFakeDiscovery(t)
	disc.version = map[string]string{
		"Browser":              "Chrome/120.0",
		"Protocol-Version":     "1.3",
		"webSocketDebuggerUrl": peer.wsURL,
	}
	peer.onCommand(browser.CommandGetVersion, func(msg protocol.Message) (interface{}, *protocol.Error) {
		return map[string]interface{}{
			"product":         "Chrome/120.0",
			"revision":        "abc123",
			"userAgent":       "test-agent",
			"jsVersion":       "12.0",
			"protocolVersion": "1.3",
		}, nil
	})

	r := NewRegistry(disc.url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	v, err := r.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.Product != "Chrome/120.0" {
		t.Fatalf("unexpected version: %+v", v)
	}

	// A second Version call re-reads /json/version and dials its own
	// browser-level Connection; BrowserConnection is not cached.
	v2, err := r.Version(ctx)
	if err != nil {
		t.Fatalf("Version (second): %v", err)
	}
	if v2.Revision != v.Revision {
		t.Fatalf("unexpected second version result: %+v", v2)
	}
}
