package aiodt

import (
	"encoding/json"
	"sync"

	"github.com/PieceOfGood/aio-dt-go/protocol"
	"github.com/PieceOfGood/aio-dt-go/protocol/runtime"
)

// execContext is one tracked Runtime execution context, stored by its
// context id; DefaultForFrame finds it by (frameID, isDefault) (spec.md §3,
// §4.3).
type execContext struct {
	ID        runtime.ExecutionContextID
	Origin    string
	Name      string
	FrameID   protocol.FrameID
	IsDefault bool
	Type      string
}

// ExecutionContextManager tracks a Connection's live Runtime execution
// contexts by subscribing to executionContextCreated/destroyed/cleared,
// per spec.md §4.3. One instance lives per Connection; there is no
// process-wide singleton (spec.md §9 "Global state: none required").
type ExecutionContextManager struct {
	mu    sync.RWMutex
	byID  map[runtime.ExecutionContextID]*execContext
}

func newExecutionContextManager() *ExecutionContextManager {
	return &ExecutionContextManager{byID: make(map[runtime.ExecutionContextID]*execContext)}
}

func (m *ExecutionContextManager) created(c *runtime.ExecutionContextDescription) {
	var aux runtime.ContextAuxData
	if len(c.AuxData) > 0 {
		_ = json.Unmarshal(c.AuxData, &aux)
	}
	ec := &execContext{
		ID:        c.ID,
		Origin:    c.Origin,
		Name:      c.Name,
		FrameID:   aux.FrameID,
		IsDefault: aux.IsDefault,
		Type:      aux.Type,
	}
	m.mu.Lock()
	m.byID[c.ID] = ec
	m.mu.Unlock()
}

func (m *ExecutionContextManager) destroyed(id runtime.ExecutionContextID) {
	m.mu.Lock()
	delete(m.byID, id)
	m.mu.Unlock()
}

func (m *ExecutionContextManager) cleared() {
	m.mu.Lock()
	m.byID = make(map[runtime.ExecutionContextID]*execContext)
	m.mu.Unlock()
}

// DefaultForFrame returns the default execution context id for frameID, and
// whether one is currently tracked. Evaluating JS against a specific frame
// (an <iframe> or an isolated world) requires this id after a navigation
// (spec.md §4.3 "Purpose").
func (m *ExecutionContextManager) DefaultForFrame(frameID protocol.FrameID) (runtime.ExecutionContextID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ec := range m.byID {
		if ec.FrameID == frameID && ec.IsDefault {
			return ec.ID, true
		}
	}
	return 0, false
}

// Len reports how many execution contexts are currently tracked.
func (m *ExecutionContextManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
