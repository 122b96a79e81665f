// Package protocol defines the wire-level Chrome DevTools Protocol envelope
// and the small set of domain-independent identifiers shared across the
// per-domain packages (protocol/runtime, protocol/target, protocol/page,
// protocol/dom, protocol/fetch, protocol/input, protocol/inspector,
// protocol/browser).
//
// This is not the closed catalogue of CDP command bindings — that is out of
// scope (see spec.md §1) — only the envelope and the identifiers the
// protocol engine itself must understand to correlate requests, demultiplex
// events, and track frames/nodes/execution contexts.
package protocol

// MethodType is a CDP command or event name, e.g. "Runtime.evaluate" or
// "Page.frameNavigated".
type MethodType string

// Domain returns the portion of the method name before the dot.
func (m MethodType) Domain() string {
	for i := 0; i < len(m); i++ {
		if m[i] == '.' {
			return string(m[:i])
		}
	}
	return string(m)
}

func (m MethodType) String() string { return string(m) }

// FrameID identifies a CDP Page.Frame.
type FrameID string

// NodeID identifies a CDP DOM.Node within the node tree of a single frame.
type NodeID int64

// BackendNodeID is a node id stable across frame navigations.
type BackendNodeID int64

// EmptyFrameID is the zero value, used to mean "the current top frame".
const EmptyFrameID FrameID = ""

// EmptyNodeID is the zero value, used to mean "no node".
const EmptyNodeID NodeID = 0
