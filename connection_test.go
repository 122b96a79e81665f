package aiodt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PieceOfGood/aio-dt-go/protocol"
)

// fakePeer is a minimal CDP-speaking websocket server used to drive
// Connection against a real (loopback) socket rather than a mock transport.
type fakePeer struct {
	srv    *httptest.Server
	wsURL  string
	upgrade websocket.Upgrader

	mu         sync.Mutex
	conn       *websocket.Conn
	recv       []protocol.Message
	responders map[protocol.MethodType]func(protocol.Message) (interface{}, *protocol.Error)
}

// onCommand registers an automatic responder for method: whenever the
// fakePeer reads a request for method, it writes back {id, result} (or
// {id, error} if fn returns a non-nil *protocol.Error) immediately.
func (p *fakePeer) onCommand(method protocol.MethodType, fn func(protocol.Message) (interface{}, *protocol.Error)) {
	p.mu.Lock()
	p.responders[method] = fn
	p.mu.Unlock()
}

func newFakePeer(t *testing.T) *fakePeer {
	t.Helper()
	p := &fakePeer{responders: make(map[protocol.MethodType]func(protocol.Message) (interface{}, *protocol.Error))}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := p.upgrade.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p.mu.Lock()
		p.conn = c
		p.mu.Unlock()
		for {
			var msg protocol.Message
			if err := c.ReadJSON(&msg); err != nil {
				return
			}
			p.mu.Lock()
			p.recv = append(p.recv, msg)
			responder, ok := p.responders[msg.Method]
			p.mu.Unlock()
			if ok && msg.ID != 0 {
				result, protoErr := responder(msg)
				resp := map[string]interface{}{"id": msg.ID}
				if protoErr != nil {
					resp["error"] = protoErr
				} else {
					resp["result"] = result
				}
				_ = c.WriteJSON(resp)
			}
		}
	}))
	p.wsURL = "ws" + strings.TrimPrefix(p.srv.URL, "http")
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePeer) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		c := p.conn
		p.mu.Unlock()
		if c != nil {
			return c
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for the server side to accept the websocket")
	return nil
}

func (p *fakePeer) send(t *testing.T, v interface{}) {
	t.Helper()
	c := p.waitConn(t)
	if err := c.WriteJSON(v); err != nil {
		t.Fatalf("fakePeer.send: %v", err)
	}
}

func (p *fakePeer) received(t *testing.T) []protocol.Message {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.Message, len(p.recv))
	copy(out, p.recv)
	return out
}

func activatedConnection(t *testing.T, peer *fakePeer) *Connection {
	t.Helper()
	c := NewConnection(peer.wsURL, "target-1", "", WithVerbose(true))
	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	t.Cleanup(func() { _ = c.Detach(context.Background()) })
	return c
}

func TestCallAssignsMonotonicUniqueIDs(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)
	peer.waitConn(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Call(context.Background(), "Foo.bar", nil, false)
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(peer.received(t)) < n {
		time.Sleep(time.Millisecond)
	}

	seen := make(map[int64]bool)
	for _, msg := range peer.received(t) {
		if seen[msg.ID] {
			t.Fatalf("duplicate request id observed: %d", msg.ID)
		}
		seen[msg.ID] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct ids, saw %d", n, len(seen))
	}
	for id := int64(1); id <= n; id++ {
		if !seen[id] {
			t.Fatalf("expected the ids 1..%d issued by the monotonic counter, id %d is missing", n, id)
		}
	}
}

func TestCallResponseReachesOnlyItsIssuer(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)

	type result struct {
		id  int64
		res json.RawMessage
		err error
	}
	results := make(chan result, 2)

	go func() {
		res, err := c.Call(context.Background(), "A.one", nil, true)
		results <- result{1, res, err}
	}()
	go func() {
		res, err := c.Call(context.Background(), "A.two", nil, true)
		results <- result{2, res, err}
	}()

	// Wait for both requests to land, then answer only id 2 first, then id 1,
	// each with a distinguishing payload, and confirm each caller gets its
	// own response back.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(peer.received(t)) < 2 {
		time.Sleep(time.Millisecond)
	}
	recv := peer.received(t)
	if len(recv) != 2 {
		t.Fatalf("expected 2 requests to arrive, got %d", len(recv))
	}

	for _, msg := range recv {
		peer.send(t, map[string]interface{}{
			"id":     msg.ID,
			"result": map[string]interface{}{"method": string(msg.Method)},
		})
	}

	got := map[int64]result{}
	for i := 0; i < 2; i++ {
		r := <-results
		got[r.id] = r
	}

	var r1 struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(got[1].res, &r1); err != nil || r1.Method != "A.one" {
		t.Fatalf("caller 1 did not receive its own response: %+v err=%v", r1, err)
	}
	var r2 struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(got[2].res, &r2); err != nil || r2.Method != "A.two" {
		t.Fatalf("caller 2 did not receive its own response: %+v err=%v", r2, err)
	}
}

func TestEventListenerFiresExactlyOnce(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)

	// AddEventListener enables Runtime first and waits for its reply.
	peer.onCommand("Runtime.enable", func(protocol.Message) (interface{}, *protocol.Error) {
		return map[string]interface{}{}, nil
	})

	var calls int
	var mu sync.Mutex
	done := make(chan struct{})
	handler := func(params json.RawMessage, bound []interface{}) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(done)
	}
	if err := c.AddEventListener(context.Background(), "Page.loadEventFired", handler); err != nil {
		t.Fatalf("AddEventListener: %v", err)
	}

	peer.send(t, map[string]interface{}{"method": "Page.loadEventFired", "params": map[string]interface{}{}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never fired")
	}
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected handler to fire exactly once, fired %d times", calls)
	}
}

func TestUnregisteredEventIsSilentlyDropped(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)

	// No listener registered for this method; dispatch must not panic or
	// block, and a subsequent Call must still succeed.
	peer.send(t, map[string]interface{}{"method": "Unknown.thing", "params": map[string]interface{}{}})

	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go func() {
		peer.send(t, map[string]interface{}{"id": 1, "result": map[string]interface{}{}})
	}()
	if _, err := c.Call(ctx, "Foo.ping", nil, true); err != nil {
		t.Fatalf("expected Call to still work after an unrelated event, got %v", err)
	}
}

func TestDetachIsIdempotent(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)

	if err := c.Detach(context.Background()); err != nil {
		t.Fatalf("first Detach: %v", err)
	}
	if err := c.Detach(context.Background()); err != nil {
		t.Fatalf("second Detach should be a silent no-op, got %v", err)
	}
	if c.Connected() {
		t.Fatal("expected Connected() false after Detach")
	}
}

func TestWaitForCloseOnlyFiresOnTargetClosed(t *testing.T) {
	// A Connection only ever observes one Inspector.detached event before
	// it tears itself down, so the two reasons are exercised on separate
	// connections rather than two sends over the same socket.

	t.Run("unrelated reason never satisfies WaitForClose", func(t *testing.T) {
		peer := newFakePeer(t)
		c := activatedConnection(t, peer)

		waitDone := make(chan error, 1)
		go func() { waitDone <- c.WaitForClose(context.Background()) }()

		peer.send(t, map[string]interface{}{"method": "Inspector.detached", "params": map[string]interface{}{"reason": "canceled_by_user"}})
		select {
		case <-waitDone:
			t.Fatal("WaitForClose fired on a non-target_closed detach reason")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("target_closed satisfies WaitForClose", func(t *testing.T) {
		peer := newFakePeer(t)
		c := activatedConnection(t, peer)

		waitDone := make(chan error, 1)
		go func() { waitDone <- c.WaitForClose(context.Background()) }()

		peer.send(t, map[string]interface{}{"method": "Inspector.detached", "params": map[string]interface{}{"reason": "target_closed"}})
		select {
		case err := <-waitDone:
			if err != nil {
				t.Fatalf("WaitForClose returned an error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("WaitForClose never fired for reason=target_closed")
		}
	})
}

func TestOnCloseFiresForAnyDetachReason(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)

	fired := make(chan struct{})
	c.OnClose(func() { close(fired) })

	peer.send(t, map[string]interface{}{"method": "Inspector.detached", "params": map[string]interface{}{"reason": "canceled_by_user"}})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose never fired on a non-target_closed detach")
	}
}

func TestMalformedConsoleInfoIsTreatedAsOrdinaryOutput(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)

	// console.info with two arguments (not a control frame shape) must not
	// panic the receiver, and the connection must remain usable afterwards.
	peer.send(t, map[string]interface{}{
		"method": "Runtime.consoleAPICalled",
		"params": map[string]interface{}{
			"type": "info",
			"args": []map[string]interface{}{
				{"type": "string", "value": "hello"},
				{"type": "string", "value": "world"},
			},
		},
	})

	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go func() {
		peer.send(t, map[string]interface{}{"id": 1, "result": map[string]interface{}{}})
	}()
	if _, err := c.Call(ctx, "Foo.ping", nil, true); err != nil {
		t.Fatalf("connection should remain usable after a non-control-frame console.info: %v", err)
	}
}
