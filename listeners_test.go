package aiodt

import (
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/PieceOfGood/aio-dt-go/protocol"
)

func TestListenerRegistryAddEventIdempotent(t *testing.T) {
	r := newListenerRegistry()
	var calls int32
	handler := func(json.RawMessage, []interface{}) { atomic.AddInt32(&calls, 1) }

	r.addEvent("Page.frameNavigated", handler, nil)
	r.addEvent("Page.frameNavigated", handler, nil)

	entries := r.snapshotEvent("Page.frameNavigated")
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry after re-registering the same handler, got %d", len(entries))
	}
}

func TestListenerRegistryRemoveEvent(t *testing.T) {
	r := newListenerRegistry()
	handler := func(json.RawMessage, []interface{}) {}

	r.addEvent("Page.frameNavigated", handler, nil)
	r.removeEvent("Page.frameNavigated", handler)

	if entries := r.snapshotEvent("Page.frameNavigated"); len(entries) != 0 {
		t.Fatalf("expected no entries after removal, got %d", len(entries))
	}
	// Removing an absent handler must be a no-op, not a panic.
	r.removeEvent("Page.frameNavigated", handler)
}

func TestListenerRegistryRemoveAllForEvent(t *testing.T) {
	r := newListenerRegistry()
	r.addEvent("Page.frameNavigated", func(json.RawMessage, []interface{}) {}, nil)
	r.addEvent("Page.frameNavigated", func(json.RawMessage, []interface{}) {}, nil)

	r.removeAllForEvent("Page.frameNavigated")

	if entries := r.snapshotEvent("Page.frameNavigated"); len(entries) != 0 {
		t.Fatalf("expected no entries after removeAllForEvent, got %d", len(entries))
	}
}

func TestListenerRegistryCallbackLastWriteWins(t *testing.T) {
	r := newListenerRegistry()
	var first, second bool

	r.setCallback("on_tick", func([]json.RawMessage, []interface{}) { first = true }, nil)
	r.setCallback("on_tick", func([]json.RawMessage, []interface{}) { second = true }, nil)

	entry, ok := r.getCallback("on_tick")
	if !ok {
		t.Fatal("expected a registered callback named on_tick")
	}
	entry.handler(nil, nil)
	if first || !second {
		t.Fatal("expected the second registration to win on name collision")
	}
}

func TestListenerRegistryRemoveCallback(t *testing.T) {
	r := newListenerRegistry()
	r.setCallback("on_tick", func([]json.RawMessage, []interface{}) {}, nil)
	r.removeCallback("on_tick")

	if _, ok := r.getCallback("on_tick"); ok {
		t.Fatal("expected on_tick to be gone after removeCallback")
	}
	if !r.empty() {
		t.Fatal("expected registry to report empty after full teardown")
	}
}

func TestListenerRegistrySnapshotIsStableDuringFanOut(t *testing.T) {
	r := newListenerRegistry()
	const event protocol.MethodType = "Page.frameNavigated"
	r.addEvent(event, func(json.RawMessage, []interface{}) {}, nil)

	snapshot := r.snapshotEvent(event)
	r.addEvent(event, func(json.RawMessage, []interface{}) {}, nil) // mutate after snapshotting

	if len(snapshot) != 1 {
		t.Fatalf("snapshot should be unaffected by registration after it was taken, got %d entries", len(snapshot))
	}
	if len(r.snapshotEvent(event)) != 2 {
		t.Fatalf("expected the live registry to now have 2 entries")
	}
}
