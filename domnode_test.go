package aiodt

import (
	"context"
	"testing"
	"time"

	"github.com/PieceOfGood/aio-dt-go/protocol"
)

func TestDOMNodeDescribeResolveRequestRoundTrip(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)

	peer.onCommand("DOM.describeNode", func(msg protocol.Message) (interface{}, *protocol.Error) {
		return map[string]interface{}{
			"node": map[string]interface{}{
				"nodeId":        5,
				"backendNodeId": 55,
				"nodeName":      "DIV",
				"nodeType":      1,
				"frameId":       "frame-A",
			},
		}, nil
	})
	peer.onCommand("DOM.resolveNode", func(msg protocol.Message) (interface{}, *protocol.Error) {
		return map[string]interface{}{
			"object": map[string]interface{}{"type": "object", "objectId": "obj-1"},
		}, nil
	})
	peer.onCommand("DOM.requestNode", func(msg protocol.Message) (interface{}, *protocol.Error) {
		return map[string]interface{}{"nodeId": 9}, nil
	})

	n := NewDOMNode(c, protocol.NodeID(5))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := n.Describe(ctx); err != nil {
		t.Fatalf("Describe: %v", err)
	}

	objID, err := n.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if objID != "obj-1" {
		t.Fatalf("unexpected resolved object id: %s", objID)
	}

	nodeID, err := n.Request(ctx, c)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if nodeID != protocol.NodeID(9) {
		t.Fatalf("unexpected requested node id: %v", nodeID)
	}
}

func TestDOMNodeResolveBeforeDescribeFails(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)
	n := NewDOMNode(c, protocol.NodeID(5))

	if _, err := n.Resolve(context.Background()); err != ErrNodeNotDescribed {
		t.Fatalf("expected ErrNodeNotDescribed, got %v", err)
	}
}

func TestDOMNodeRequestBeforeResolveFails(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)
	n := NewDOMNode(c, protocol.NodeID(5))

	if _, err := n.Request(context.Background(), c); err != ErrNodeNotResolved {
		t.Fatalf("expected ErrNodeNotResolved, got %v", err)
	}
}

func TestDOMNodeMutationInvalidatesHandle(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)

	peer.onCommand("DOM.setOuterHTML", func(msg protocol.Message) (interface{}, *protocol.Error) {
		return map[string]interface{}{}, nil
	})

	n := NewDOMNode(c, protocol.NodeID(5))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := n.SetOuterHTML(ctx, "<div></div>"); err != nil {
		t.Fatalf("SetOuterHTML: %v", err)
	}

	if err := n.Describe(ctx); err != ErrNodeInvalidated {
		t.Fatalf("expected ErrNodeInvalidated after mutation, got %v", err)
	}
}

func TestDOMNodeQuerySelectorRootGone(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)

	peer.onCommand("DOM.querySelector", func(msg protocol.Message) (interface{}, *protocol.Error) {
		return nil, &protocol.Error{Code: -32000, Message: "Could not find node with given id"}
	})

	n := NewDOMNode(c, protocol.NodeID(5))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := n.QuerySelector(ctx, ".missing", false); err == nil {
		t.Fatal("expected an error when the root node is gone")
	} else if _, ok := err.(*ErrRootNoLongerExists); !ok {
		t.Fatalf("expected *ErrRootNoLongerExists, got %T: %v", err, err)
	}

	node, err := n.QuerySelector(ctx, ".missing", true)
	if err != nil {
		t.Fatalf("expected ignoreRootGone to suppress the error, got %v", err)
	}
	if node != nil {
		t.Fatal("expected a nil DOMNode when the root is gone and ignoreRootGone is set")
	}
}

func TestDOMNodeQuerySelectorFound(t *testing.T) {
	peer := newFakePeer(t)
	c := activatedConnection(t, peer)

	peer.onCommand("DOM.querySelector", func(msg protocol.Message) (interface{}, *protocol.Error) {
		return map[string]interface{}{"nodeId": 42}, nil
	})

	n := NewDOMNode(c, protocol.NodeID(5))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	found, err := n.QuerySelector(ctx, ".thing", false)
	if err != nil {
		t.Fatalf("QuerySelector: %v", err)
	}
	if found == nil || found.NodeID() != protocol.NodeID(42) {
		t.Fatalf("unexpected result: %+v", found)
	}
}
