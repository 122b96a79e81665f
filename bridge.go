package aiodt

import (
	"encoding/json"
	"sync"
)

// promiseBridge implements spec.md §2 item 5 and §4.1 EvalPromise: it lets
// the host await a JS Promise's resolution by injecting a `.then` tail that
// reports the result back over the console.info control channel, keyed by
// a fresh id per call rather than a hash of the expression text (spec.md §9
// "promise-tail hashing" open question, resolved in SPEC_FULL.md by minting
// a uuid per call instead).
type promiseBridge struct {
	mu      sync.Mutex
	waiters map[string]chan json.RawMessage
}

func newPromiseBridge() *promiseBridge {
	return &promiseBridge{waiters: make(map[string]chan json.RawMessage)}
}

// register creates the one-shot channel for channelID, which must not
// already be registered (each EvalPromise call mints a fresh id).
func (b *promiseBridge) register(channelID string) chan json.RawMessage {
	ch := make(chan json.RawMessage, 1)
	b.mu.Lock()
	b.waiters[channelID] = ch
	b.mu.Unlock()
	return ch
}

// deliver resolves the waiter for channelID, if one is still registered.
// It is a no-op if the channel was never registered or was already
// delivered (each promiseBridge channel is used for exactly one delivery,
// per spec.md §3 "Promise channel ... never reused").
func (b *promiseBridge) deliver(channelID string, result json.RawMessage) bool {
	b.mu.Lock()
	ch, ok := b.waiters[channelID]
	if ok {
		delete(b.waiters, channelID)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	ch <- result
	return true
}

// abandon drops channelID's waiter without delivering to it, used when a
// connection is lost and pending waiters must be released (spec.md §7
// "Propagation" — transport errors surface to the immediate caller).
func (b *promiseBridge) abandon(channelID string) {
	b.mu.Lock()
	delete(b.waiters, channelID)
	b.mu.Unlock()
}

// abandonAll releases every pending waiter, called from Detach.
func (b *promiseBridge) abandonAll() {
	b.mu.Lock()
	b.waiters = make(map[string]chan json.RawMessage)
	b.mu.Unlock()
}
