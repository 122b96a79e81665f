package aiodt

import (
	"encoding/json"
	"reflect"
	"runtime"
	"sync"

	"github.com/PieceOfGood/aio-dt-go/protocol"
)

// EventHandler handles one CDP event. params is the event's raw params
// (an empty object if the event carries none); bound are the arguments
// supplied at registration time, mirroring the Python original's
// AddListenerForEvent(event, listener, *args).
type EventHandler func(params json.RawMessage, bound []interface{})

// CallbackHandler handles one JS-to-host callback invocation. args are the
// JSON-decoded arguments from the page's console.info({func_name, args})
// envelope; bound are the arguments supplied at registration time.
type CallbackHandler func(args []json.RawMessage, bound []interface{})

// GenericCallback receives every inbound CDP envelope, raw, as spec.md
// §4.1's "generic callback" registered at construction time.
type GenericCallback func(msg *protocol.Message)

type eventEntry struct {
	name    string
	handler EventHandler
	bound   []interface{}
}

type callbackEntry struct {
	handler CallbackHandler
	bound   []interface{}
}

// listenerRegistry is the two-map listener registry of spec.md §2 item 4:
// (a) event-name → ordered set of (handler, bound-args), (b) named-JS-
// callback → (handler, bound-args). All mutation and fan-out snapshotting
// goes through mu, per spec.md §5 "listener maps mutated between
// suspensions; fan-out dispatches to a snapshot".
type listenerRegistry struct {
	mu        sync.RWMutex
	events    map[protocol.MethodType][]*eventEntry
	callbacks map[string]*callbackEntry
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		events:    make(map[protocol.MethodType][]*eventEntry),
		callbacks: make(map[string]*callbackEntry),
	}
}

// handlerName derives a stable identity string for handler, the Go
// analogue of the Python original's reliance on listener.__name__.
func handlerName(handler interface{}) string {
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		return ""
	}
	if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
		return fn.Name()
	}
	return ""
}

// addEvent registers handler for event, in registration order. Idempotent
// on handler identity per event: re-registering the same handler for the
// same event is a no-op (spec.md §3 "Event listener entry" invariant).
func (r *listenerRegistry) addEvent(event protocol.MethodType, handler EventHandler, bound []interface{}) {
	name := handlerName(handler)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events[event] {
		if e.name != "" && e.name == name {
			return
		}
	}
	r.events[event] = append(r.events[event], &eventEntry{name: name, handler: handler, bound: bound})
}

// removeEvent unregisters handler from event. Missing entries are tolerated.
func (r *listenerRegistry) removeEvent(event protocol.MethodType, handler EventHandler) {
	name := handlerName(handler)
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.events[event]
	for i, e := range entries {
		if e.name != "" && e.name == name {
			r.events[event] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// removeAllForEvent drops every listener registered for event.
func (r *listenerRegistry) removeAllForEvent(event protocol.MethodType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, event)
}

// snapshotEvent returns the entries registered for event at call time,
// safe to range over concurrently with further registration/removal.
func (r *listenerRegistry) snapshotEvent(event protocol.MethodType) []*eventEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.events[event]
	if len(entries) == 0 {
		return nil
	}
	out := make([]*eventEntry, len(entries))
	copy(out, entries)
	return out
}

// setCallback registers handler under name. Last registration wins on a
// name collision (spec.md §9 "JS-callback listener collisions").
func (r *listenerRegistry) setCallback(name string, handler CallbackHandler, bound []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[name] = &callbackEntry{handler: handler, bound: bound}
}

// removeCallback unregisters the callback listener named name.
func (r *listenerRegistry) removeCallback(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.callbacks, name)
}

// getCallback returns the callback entry registered under name, if any.
func (r *listenerRegistry) getCallback(name string) (*callbackEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.callbacks[name]
	return e, ok
}

// empty reports whether no listener of either kind is registered, used only
// for tests asserting round-trip add/remove symmetry.
func (r *listenerRegistry) empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.callbacks) != 0 {
		return false
	}
	for _, v := range r.events {
		if len(v) != 0 {
			return false
		}
	}
	return true
}
