package aiodt

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PieceOfGood/aio-dt-go/protocol"
	"github.com/PieceOfGood/aio-dt-go/protocol/page"
)

func TestRewriteNavigateURL(t *testing.T) {
	cases := []struct {
		in       string
		wantSame bool
	}{
		{"http://example.com", true},
		{"https://example.com", true},
		{"about:blank", true},
		{"chrome://version", true},
		{"edge://settings", true},
		{"<h1>hello</h1>", false},
		{"just some text", false},
	}
	for _, c := range cases {
		got := rewriteNavigateURL(c.in)
		if c.wantSame {
			if got != c.in {
				t.Errorf("rewriteNavigateURL(%q) = %q, want passthrough", c.in, got)
			}
		} else {
			if got == c.in {
				t.Errorf("rewriteNavigateURL(%q) should have been wrapped as a data: URL", c.in)
			}
			const prefix = "data:text/html,"
			if len(got) < len(prefix) || got[:len(prefix)] != prefix {
				t.Errorf("rewriteNavigateURL(%q) = %q, want data:text/html, prefix", c.in, got)
			}
			wantPayload := url.PathEscape(c.in)
			if got != prefix+wantPayload {
				t.Errorf("rewriteNavigateURL(%q) = %q, want %q", c.in, got, prefix+wantPayload)
			}
		}
	}

	// A literal space must survive as %20, not a query-encoded '+', since a
	// data: URL's payload is not a query string.
	got := rewriteNavigateURL("just some text")
	if strings.Contains(got, "+") {
		t.Errorf("rewriteNavigateURL space-encoding regressed to '+': %q", got)
	}
	if !strings.Contains(got, "%20") {
		t.Errorf("rewriteNavigateURL should percent-encode spaces as %%20, got %q", got)
	}
}

func TestLoadingTrackerScopedToOwnTargetID(t *testing.T) {
	tr := newLoadingTracker()
	const targetID = "target-1"

	msg := &protocol.Message{
		Method: page.EventFrameStartedLoading,
		Params: mustRawMessage(t, page.EventFrameStartedLoadingPayload{FrameID: protocol.FrameID("other-frame")}),
	}
	tr.observe(targetID, msg)
	if tr.State() != LoadingIdle {
		t.Fatalf("expected an event for a different frame to be ignored, got state %v", tr.State())
	}

	msg = &protocol.Message{
		Method: page.EventFrameStartedLoading,
		Params: mustRawMessage(t, page.EventFrameStartedLoadingPayload{FrameID: protocol.FrameID(targetID)}),
	}
	tr.observe(targetID, msg)
	if tr.State() != LoadingStarted {
		t.Fatalf("expected LoadingStarted, got %v", tr.State())
	}

	msg = &protocol.Message{
		Method: page.EventFrameNavigated,
		Params: mustRawMessage(t, page.EventFrameNavigatedPayload{Frame: page.Frame{ID: protocol.FrameID(targetID)}}),
	}
	tr.observe(targetID, msg)
	if tr.State() != LoadingNavigated {
		t.Fatalf("expected LoadingNavigated, got %v", tr.State())
	}

	msg = &protocol.Message{
		Method: page.EventFrameStoppedLoading,
		Params: mustRawMessage(t, page.EventFrameStoppedLoadingPayload{FrameID: protocol.FrameID(targetID)}),
	}
	tr.observe(targetID, msg)
	if tr.State() != LoadingStopped {
		t.Fatalf("expected LoadingStopped, got %v", tr.State())
	}
}

func TestLoadingTrackerOnChangeNotifiesSubscribers(t *testing.T) {
	tr := newLoadingTracker()
	seen := make(chan LoadingState, 4)
	tr.onChange(func(s LoadingState) { seen <- s })

	tr.set(LoadingNavigateRequested)
	select {
	case s := <-seen:
		if s != LoadingNavigateRequested {
			t.Fatalf("unexpected state: %v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never notified")
	}
}

func TestConnectionNavigateMarksRequestedAndIssuesPageNavigate(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)

	peer.onCommand(page.CommandEnable, func(protocol.Message) (interface{}, *protocol.Error) {
		return map[string]interface{}{}, nil
	})
	peer.onCommand(page.CommandNavigate, func(protocol.Message) (interface{}, *protocol.Error) {
		return map[string]interface{}{"frameId": "target-1"}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frameID, err := c.Navigate(ctx, "https://example.com")
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if frameID != protocol.FrameID("target-1") {
		t.Fatalf("unexpected frame id: %v", frameID)
	}
	if got := c.LoadingState(); got != LoadingNavigateRequested {
		t.Fatalf("expected LoadingNavigateRequested after Navigate, got %v", got)
	}
}

func mustRawMessage(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
