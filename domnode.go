package aiodt

import (
	"context"
	"errors"
	"sync"

	"github.com/PieceOfGood/aio-dt-go/protocol"
	"github.com/PieceOfGood/aio-dt-go/protocol/dom"
	"github.com/PieceOfGood/aio-dt-go/protocol/runtime"
)

// DOMNode is an opaque handle to one CDP DOM node: a node id plus the
// Connection that owns it, optionally remembering the selector that
// produced it for error reporting (spec.md §4.6). A mutation
// (SetOuterHTML/SetNodeName/MoveTo) invalidates the handle; every method
// on an invalidated DOMNode returns ErrNodeInvalidated without issuing a
// command.
type DOMNode struct {
	conn     *Connection
	selector string

	mu            sync.RWMutex
	nodeID        protocol.NodeID
	backendNodeID protocol.BackendNodeID
	frameID       protocol.FrameID
	objectID      runtime.RemoteObjectID
	invalidated   bool
}

// NewDOMNode wraps nodeID, owned by conn, in a DOMNode handle.
func NewDOMNode(conn *Connection, nodeID protocol.NodeID) *DOMNode {
	return &DOMNode{conn: conn, nodeID: nodeID}
}

// WithSelector records the selector that produced this handle, surfaced by
// ErrRootNoLongerExists.
func (n *DOMNode) WithSelector(selector string) *DOMNode {
	n.selector = selector
	return n
}

// NodeID returns the node's current id in its owning Connection's tree.
func (n *DOMNode) NodeID() protocol.NodeID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.nodeID
}

// Connection returns the Connection that owns this node.
func (n *DOMNode) Connection() *Connection { return n.conn }

func (n *DOMNode) checkLive() (protocol.NodeID, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.invalidated {
		return protocol.EmptyNodeID, ErrNodeInvalidated
	}
	return n.nodeID, nil
}

func (n *DOMNode) invalidate() {
	n.mu.Lock()
	n.invalidated = true
	n.mu.Unlock()
}

// Describe fetches the node's metadata, populating its backendNodeId and,
// for frame owners, its frameId (spec.md §4.6 pipeline step 1).
func (n *DOMNode) Describe(ctx context.Context) error {
	id, err := n.checkLive()
	if err != nil {
		return err
	}
	node, err := dom.DescribeNode(id).Do(n.conn.Context(ctx))
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.backendNodeID = node.BackendNodeID
	n.frameID = node.FrameID
	n.mu.Unlock()
	return nil
}

// Resolve obtains a RemoteObject reference to the node's JS wrapper. It
// requires a prior successful Describe (spec.md §4.6 pipeline step 2).
func (n *DOMNode) Resolve(ctx context.Context) (runtime.RemoteObjectID, error) {
	if _, err := n.checkLive(); err != nil {
		return "", err
	}
	n.mu.RLock()
	backend := n.backendNodeID
	n.mu.RUnlock()
	if backend == 0 {
		return "", ErrNodeNotDescribed
	}

	obj, err := (&dom.ResolveNodeParams{BackendNodeID: backend}).Do(n.conn.Context(ctx))
	if err != nil {
		return "", err
	}
	n.mu.Lock()
	n.objectID = obj.ObjectID
	n.mu.Unlock()
	return obj.ObjectID, nil
}

// Request is the inverse of Resolve: given the node's already-resolved
// RemoteObject, it retrieves the node's id in into's own DOM tree (spec.md
// §4.6 pipeline step 3). into is typically a different Connection's — or
// the same Connection's — document.
func (n *DOMNode) Request(ctx context.Context, into *Connection) (protocol.NodeID, error) {
	if _, err := n.checkLive(); err != nil {
		return protocol.EmptyNodeID, err
	}
	n.mu.RLock()
	objectID := n.objectID
	n.mu.RUnlock()
	if objectID == "" {
		return protocol.EmptyNodeID, ErrNodeNotResolved
	}
	return dom.RequestNode(objectID).Do(into.Context(ctx))
}

// RequestMirror composes Resolve then Request to cross a DOM boundary,
// e.g. reaching into an <iframe>'s own document (spec.md §4.6 pipeline
// step 4). It resolves n if it has not been resolved yet.
func (n *DOMNode) RequestMirror(ctx context.Context, into *Connection) (*DOMNode, error) {
	n.mu.RLock()
	resolved := n.objectID != ""
	n.mu.RUnlock()
	if !resolved {
		if _, err := n.Resolve(ctx); err != nil {
			return nil, err
		}
	}
	nodeID, err := n.Request(ctx, into)
	if err != nil {
		return nil, err
	}
	return NewDOMNode(into, nodeID), nil
}

// QuerySelector finds the first descendant matching selector. If the tree
// changed mid-query and CDP reports the root node itself is gone,
// QuerySelector returns (nil, nil) when ignoreRootGone is true, or an
// *ErrRootNoLongerExists otherwise (spec.md §4.6).
func (n *DOMNode) QuerySelector(ctx context.Context, selector string, ignoreRootGone bool) (*DOMNode, error) {
	root, err := n.checkLive()
	if err != nil {
		return nil, err
	}
	id, err := dom.QuerySelector(root, selector).Do(n.conn.Context(ctx))
	if err != nil {
		if isRootGone(err) {
			if ignoreRootGone {
				return nil, nil
			}
			return nil, &ErrRootNoLongerExists{Selector: selector}
		}
		return nil, err
	}
	if id == protocol.EmptyNodeID {
		return nil, nil
	}
	return NewDOMNode(n.conn, id).WithSelector(selector), nil
}

// QuerySelectorAll finds every descendant matching selector, with the same
// root-gone handling as QuerySelector.
func (n *DOMNode) QuerySelectorAll(ctx context.Context, selector string, ignoreRootGone bool) ([]*DOMNode, error) {
	root, err := n.checkLive()
	if err != nil {
		return nil, err
	}
	ids, err := dom.QuerySelectorAll(root, selector).Do(n.conn.Context(ctx))
	if err != nil {
		if isRootGone(err) {
			if ignoreRootGone {
				return nil, nil
			}
			return nil, &ErrRootNoLongerExists{Selector: selector}
		}
		return nil, err
	}
	out := make([]*DOMNode, len(ids))
	for i, id := range ids {
		out[i] = NewDOMNode(n.conn, id).WithSelector(selector)
	}
	return out, nil
}

func isRootGone(err error) bool {
	var known *KnownProtocolError
	return errors.As(err, &known) && known.Kind == "could not find node with given id"
}

// SetOuterHTML replaces the node's outer HTML and invalidates its handle
// (spec.md §4.6 "Mutation methods").
func (n *DOMNode) SetOuterHTML(ctx context.Context, html string) error {
	id, err := n.checkLive()
	if err != nil {
		return err
	}
	if err := dom.SetOuterHTML(id, html).Do(n.conn.Context(ctx)); err != nil {
		return err
	}
	n.invalidate()
	return nil
}

// SetNodeName renames the node's tag, invalidates this handle, and returns
// a fresh handle for the replacement node.
func (n *DOMNode) SetNodeName(ctx context.Context, name string) (*DOMNode, error) {
	id, err := n.checkLive()
	if err != nil {
		return nil, err
	}
	newID, err := dom.SetNodeName(id, name).Do(n.conn.Context(ctx))
	if err != nil {
		return nil, err
	}
	n.invalidate()
	return NewDOMNode(n.conn, newID), nil
}

// MoveTo moves the node to become a child of targetID (optionally before
// insertBeforeID), invalidates this handle, and returns a fresh handle for
// the moved node.
func (n *DOMNode) MoveTo(ctx context.Context, targetID, insertBeforeID protocol.NodeID) (*DOMNode, error) {
	id, err := n.checkLive()
	if err != nil {
		return nil, err
	}
	params := dom.MoveTo(id, targetID)
	if insertBeforeID != protocol.EmptyNodeID {
		params = params.WithInsertBefore(insertBeforeID)
	}
	newID, err := params.Do(n.conn.Context(ctx))
	if err != nil {
		return nil, err
	}
	n.invalidate()
	return NewDOMNode(n.conn, newID), nil
}

// BuildScript evaluates expression against the node's frame's default
// execution context (populated by a prior Describe). It requires the
// owning Connection to be in Runtime-watch mode (spec.md §4.6
// "build_script").
func (n *DOMNode) BuildScript(ctx context.Context, expression string) (*runtime.RemoteObject, error) {
	if !n.conn.isWatchMode() {
		return nil, ErrRuntimeNotWatched
	}
	if _, err := n.checkLive(); err != nil {
		return nil, err
	}
	n.mu.RLock()
	frameID := n.frameID
	n.mu.RUnlock()
	if frameID == protocol.EmptyFrameID {
		return nil, ErrNoDefaultContext
	}
	contextID, ok := n.conn.ExecutionContexts().DefaultForFrame(frameID)
	if !ok {
		return nil, ErrNoDefaultContext
	}

	obj, exc, err := runtime.Evaluate(expression).WithContextID(contextID).Do(n.conn.Context(ctx))
	if err != nil {
		return nil, err
	}
	if exc != nil {
		msg := exc.Text
		if exc.Exception != nil && exc.Exception.Description != "" {
			msg = exc.Exception.Description
		}
		return nil, &EvaluateError{Text: msg, Line: exc.LineNumber, Column: exc.ColumnNumber}
	}
	return obj, nil
}
