// Package dom implements the slice of the CDP DOM domain needed to resolve
// a RemoteObject into a DOM node and back, grounded in chromedp's own
// dom.go wrapper usage of Runtime/DOM interop.
package dom

import (
	"context"

	"github.com/PieceOfGood/aio-dt-go/protocol"
	"github.com/PieceOfGood/aio-dt-go/protocol/runtime"
)

// Well-known method names.
const (
	CommandResolveNode   protocol.MethodType = "DOM.resolveNode"
	CommandDescribeNode  protocol.MethodType = "DOM.describeNode"
	CommandGetDocument   protocol.MethodType = "DOM.getDocument"
	CommandRequestNode   protocol.MethodType = "DOM.requestNode"
	CommandQuerySelector    protocol.MethodType = "DOM.querySelector"
	CommandQuerySelectorAll protocol.MethodType = "DOM.querySelectorAll"
	CommandSetOuterHTML     protocol.MethodType = "DOM.setOuterHTML"
	CommandSetNodeName      protocol.MethodType = "DOM.setNodeName"
	CommandMoveTo           protocol.MethodType = "DOM.moveTo"
	CommandGetBoxModel      protocol.MethodType = "DOM.getBoxModel"
)

// Node mirrors the fields of CDP DOM.Node this client needs.
type Node struct {
	NodeID        protocol.NodeID        `json:"nodeId"`
	BackendNodeID protocol.BackendNodeID `json:"backendNodeId"`
	NodeName      string                 `json:"nodeName"`
	NodeType      int64                  `json:"nodeType"`
	FrameID       protocol.FrameID       `json:"frameId,omitempty"`
	Children      []*Node                `json:"children,omitempty"`
}

// BoxModel is the geometry CDP reports for DOM.getBoxModel, used to locate a
// node on screen before synthesising input events against it.
type BoxModel struct {
	Content []float64 `json:"content"`
	Width   int64     `json:"width"`
	Height  int64     `json:"height"`
}

// GetDocumentReturns is the DOM.getDocument result.
type GetDocumentReturns struct {
	Root Node `json:"root"`
}

// GetDocument fetches the top-level document node.
func GetDocument() interface {
	Do(ctx context.Context) (*Node, error)
} {
	return getDocument{}
}

type getDocument struct{}

func (getDocument) Do(ctx context.Context) (*Node, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return nil, protocol.ErrNoExecutor
	}
	var res GetDocumentReturns
	if err := exec.Execute(ctx, CommandGetDocument, nil, &res); err != nil {
		return nil, err
	}
	return &res.Root, nil
}

// ResolveNodeParams are the parameters for DOM.resolveNode.
type ResolveNodeParams struct {
	NodeID        protocol.NodeID        `json:"nodeId,omitempty"`
	BackendNodeID protocol.BackendNodeID `json:"backendNodeId,omitempty"`
	ObjectGroup   string                 `json:"objectGroup,omitempty"`
}

// ResolveNodeReturns is the DOM.resolveNode result.
type ResolveNodeReturns struct {
	Object runtime.RemoteObject `json:"object"`
}

// ResolveNode resolves nodeID to a Runtime.RemoteObject handle.
func ResolveNode(nodeID protocol.NodeID) *ResolveNodeParams {
	return &ResolveNodeParams{NodeID: nodeID}
}

// Do executes DOM.resolveNode against the Executor bound to ctx.
func (p *ResolveNodeParams) Do(ctx context.Context) (*runtime.RemoteObject, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return nil, protocol.ErrNoExecutor
	}
	var res ResolveNodeReturns
	if err := exec.Execute(ctx, CommandResolveNode, p, &res); err != nil {
		return nil, err
	}
	return &res.Object, nil
}

// RequestNodeParams are the parameters for DOM.requestNode.
type RequestNodeParams struct {
	ObjectID runtime.RemoteObjectID `json:"objectId"`
}

// RequestNodeReturns is the DOM.requestNode result.
type RequestNodeReturns struct {
	NodeID protocol.NodeID `json:"nodeId"`
}

// RequestNode resolves a RemoteObject handle back to a NodeID.
func RequestNode(objectID runtime.RemoteObjectID) *RequestNodeParams {
	return &RequestNodeParams{ObjectID: objectID}
}

// Do executes DOM.requestNode against the Executor bound to ctx.
func (p *RequestNodeParams) Do(ctx context.Context) (protocol.NodeID, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return protocol.EmptyNodeID, protocol.ErrNoExecutor
	}
	var res RequestNodeReturns
	if err := exec.Execute(ctx, CommandRequestNode, p, &res); err != nil {
		return protocol.EmptyNodeID, err
	}
	return res.NodeID, nil
}

// DescribeNodeParams are the parameters for DOM.describeNode.
type DescribeNodeParams struct {
	NodeID        protocol.NodeID        `json:"nodeId,omitempty"`
	BackendNodeID protocol.BackendNodeID `json:"backendNodeId,omitempty"`
	Depth         int64                  `json:"depth,omitempty"`
}

// DescribeNodeReturns is the DOM.describeNode result.
type DescribeNodeReturns struct {
	Node Node `json:"node"`
}

// DescribeNode fetches metadata (including backendNodeId and, for frame
// owners, frameId) for nodeID.
func DescribeNode(nodeID protocol.NodeID) *DescribeNodeParams {
	return &DescribeNodeParams{NodeID: nodeID}
}

// Do executes DOM.describeNode against the Executor bound to ctx.
func (p *DescribeNodeParams) Do(ctx context.Context) (*Node, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return nil, protocol.ErrNoExecutor
	}
	var res DescribeNodeReturns
	if err := exec.Execute(ctx, CommandDescribeNode, p, &res); err != nil {
		return nil, err
	}
	return &res.Node, nil
}

// QuerySelectorParams are the parameters for DOM.querySelector.
type QuerySelectorParams struct {
	NodeID   protocol.NodeID `json:"nodeId"`
	Selector string          `json:"selector"`
}

// QuerySelectorReturns is the DOM.querySelector result.
type QuerySelectorReturns struct {
	NodeID protocol.NodeID `json:"nodeId"`
}

// QuerySelector finds the first descendant of rootID matching selector.
func QuerySelector(rootID protocol.NodeID, selector string) *QuerySelectorParams {
	return &QuerySelectorParams{NodeID: rootID, Selector: selector}
}

// Do executes DOM.querySelector against the Executor bound to ctx.
func (p *QuerySelectorParams) Do(ctx context.Context) (protocol.NodeID, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return protocol.EmptyNodeID, protocol.ErrNoExecutor
	}
	var res QuerySelectorReturns
	if err := exec.Execute(ctx, CommandQuerySelector, p, &res); err != nil {
		return protocol.EmptyNodeID, err
	}
	return res.NodeID, nil
}

// QuerySelectorAllParams are the parameters for DOM.querySelectorAll.
type QuerySelectorAllParams struct {
	NodeID   protocol.NodeID `json:"nodeId"`
	Selector string          `json:"selector"`
}

// QuerySelectorAllReturns is the DOM.querySelectorAll result.
type QuerySelectorAllReturns struct {
	NodeIDs []protocol.NodeID `json:"nodeIds"`
}

// QuerySelectorAll finds every descendant of rootID matching selector.
func QuerySelectorAll(rootID protocol.NodeID, selector string) *QuerySelectorAllParams {
	return &QuerySelectorAllParams{NodeID: rootID, Selector: selector}
}

// Do executes DOM.querySelectorAll against the Executor bound to ctx.
func (p *QuerySelectorAllParams) Do(ctx context.Context) ([]protocol.NodeID, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return nil, protocol.ErrNoExecutor
	}
	var res QuerySelectorAllReturns
	if err := exec.Execute(ctx, CommandQuerySelectorAll, p, &res); err != nil {
		return nil, err
	}
	return res.NodeIDs, nil
}

// SetOuterHTMLParams are the parameters for DOM.setOuterHTML. Applying it
// invalidates nodeId: the caller's DOMNode handle must be discarded after
// a successful call (spec.md §4.6).
type SetOuterHTMLParams struct {
	NodeID    protocol.NodeID `json:"nodeId"`
	OuterHTML string          `json:"outerHTML"`
}

// SetOuterHTML replaces nodeID's outer HTML.
func SetOuterHTML(nodeID protocol.NodeID, html string) *SetOuterHTMLParams {
	return &SetOuterHTMLParams{NodeID: nodeID, OuterHTML: html}
}

// Do executes DOM.setOuterHTML against the Executor bound to ctx.
func (p *SetOuterHTMLParams) Do(ctx context.Context) error {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return protocol.ErrNoExecutor
	}
	return exec.Execute(ctx, CommandSetOuterHTML, p, nil)
}

// SetNodeNameParams are the parameters for DOM.setNodeName, which also
// invalidates nodeId.
type SetNodeNameParams struct {
	NodeID protocol.NodeID `json:"nodeId"`
	Name   string          `json:"name"`
}

// SetNodeNameReturns is the DOM.setNodeName result: the replacement node's id.
type SetNodeNameReturns struct {
	NodeID protocol.NodeID `json:"nodeId"`
}

// SetNodeName renames nodeID's tag to name.
func SetNodeName(nodeID protocol.NodeID, name string) *SetNodeNameParams {
	return &SetNodeNameParams{NodeID: nodeID, Name: name}
}

// Do executes DOM.setNodeName against the Executor bound to ctx.
func (p *SetNodeNameParams) Do(ctx context.Context) (protocol.NodeID, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return protocol.EmptyNodeID, protocol.ErrNoExecutor
	}
	var res SetNodeNameReturns
	if err := exec.Execute(ctx, CommandSetNodeName, p, &res); err != nil {
		return protocol.EmptyNodeID, err
	}
	return res.NodeID, nil
}

// MoveToParams are the parameters for DOM.moveTo, which invalidates nodeId.
type MoveToParams struct {
	NodeID             protocol.NodeID `json:"nodeId"`
	TargetNodeID       protocol.NodeID `json:"targetNodeId"`
	InsertBeforeNodeID protocol.NodeID `json:"insertBeforeNodeId,omitempty"`
}

// MoveToReturns is the DOM.moveTo result: the moved node's new id.
type MoveToReturns struct {
	NodeID protocol.NodeID `json:"nodeId"`
}

// MoveTo moves nodeID to become a child of targetNodeID.
func MoveTo(nodeID, targetNodeID protocol.NodeID) *MoveToParams {
	return &MoveToParams{NodeID: nodeID, TargetNodeID: targetNodeID}
}

// WithInsertBefore inserts the moved node before insertBeforeNodeID rather
// than appending it.
func (p *MoveToParams) WithInsertBefore(insertBeforeNodeID protocol.NodeID) *MoveToParams {
	p.InsertBeforeNodeID = insertBeforeNodeID
	return p
}

// Do executes DOM.moveTo against the Executor bound to ctx.
func (p *MoveToParams) Do(ctx context.Context) (protocol.NodeID, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return protocol.EmptyNodeID, protocol.ErrNoExecutor
	}
	var res MoveToReturns
	if err := exec.Execute(ctx, CommandMoveTo, p, &res); err != nil {
		return protocol.EmptyNodeID, err
	}
	return res.NodeID, nil
}

// GetBoxModelParams are the parameters for DOM.getBoxModel.
type GetBoxModelParams struct {
	NodeID protocol.NodeID `json:"nodeId"`
}

// GetBoxModelReturns is the DOM.getBoxModel result.
type GetBoxModelReturns struct {
	Model BoxModel `json:"model"`
}

// GetBoxModel fetches nodeID's content-box quad, used to compute a click
// point for input synthesis.
func GetBoxModel(nodeID protocol.NodeID) *GetBoxModelParams {
	return &GetBoxModelParams{NodeID: nodeID}
}

// Do executes DOM.getBoxModel against the Executor bound to ctx.
func (p *GetBoxModelParams) Do(ctx context.Context) (*BoxModel, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return nil, protocol.ErrNoExecutor
	}
	var res GetBoxModelReturns
	if err := exec.Execute(ctx, CommandGetBoxModel, p, &res); err != nil {
		return nil, err
	}
	return &res.Model, nil
}
