package aiodt

import (
	"context"
	"fmt"

	"github.com/PieceOfGood/aio-dt-go/protocol/dom"
	"github.com/PieceOfGood/aio-dt-go/protocol/input"
)

// Click synthesises a left-button press/release pair at (x, y).
func (c *Connection) Click(ctx context.Context, x, y float64) error {
	if err := input.DispatchMouseEvent(input.MousePressed, x, y).
		WithButton(input.ButtonLeft).WithClickCount(1).Do(c.Context(ctx)); err != nil {
		return err
	}
	return input.DispatchMouseEvent(input.MouseReleased, x, y).
		WithButton(input.ButtonLeft).WithClickCount(1).Do(c.Context(ctx))
}

// MoveMouse synthesises a mouse-move event to (x, y), without a button
// press, the hover gesture.
func (c *Connection) MoveMouse(ctx context.Context, x, y float64) error {
	return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(c.Context(ctx))
}

// TypeText inserts text at the page's current focus/caret position,
// bypassing per-key synthesis (Input.insertText).
func (c *Connection) TypeText(ctx context.Context, text string) error {
	return input.InsertText(text).Do(c.Context(ctx))
}

// PressKey synthesises a full rawKeyDown/char/keyUp sequence for one key
// press, key being the CDP "key" name (e.g. "Enter", "a") and code the
// matching physical key code (e.g. "Enter", "KeyA").
func (c *Connection) PressKey(ctx context.Context, key, code string, virtualKeyCode int64) error {
	if err := input.DispatchKeyEvent(input.KeyRawDown).WithKey(key, code, virtualKeyCode).Do(c.Context(ctx)); err != nil {
		return err
	}
	if len(key) == 1 {
		if err := input.DispatchKeyEvent(input.KeyChar).WithKey(key, code, virtualKeyCode).WithText(key).Do(c.Context(ctx)); err != nil {
			return err
		}
	}
	return input.DispatchKeyEvent(input.KeyUp).WithKey(key, code, virtualKeyCode).Do(c.Context(ctx))
}

// boxCenter averages a node's content-box quad (4 corners, x/y pairs) to a
// single click point, the standard way of turning DOM.getBoxModel's
// geometry into input-event coordinates.
func (n *DOMNode) boxCenter(ctx context.Context) (float64, float64, error) {
	id, err := n.checkLive()
	if err != nil {
		return 0, 0, err
	}
	model, err := dom.GetBoxModel(id).Do(n.conn.Context(ctx))
	if err != nil {
		return 0, 0, err
	}
	if len(model.Content) < 8 {
		return 0, 0, fmt.Errorf("aiodt: node has no content box")
	}
	var sumX, sumY float64
	for i := 0; i < 8; i += 2 {
		sumX += model.Content[i]
		sumY += model.Content[i+1]
	}
	return sumX / 4, sumY / 4, nil
}

// Click computes the node's content-box centre via DOM.getBoxModel and
// synthesises a click there.
func (n *DOMNode) Click(ctx context.Context) error {
	x, y, err := n.boxCenter(ctx)
	if err != nil {
		return err
	}
	return n.conn.Click(ctx, x, y)
}

// Hover computes the node's content-box centre and moves the mouse there
// without clicking.
func (n *DOMNode) Hover(ctx context.Context) error {
	x, y, err := n.boxCenter(ctx)
	if err != nil {
		return err
	}
	return n.conn.MoveMouse(ctx, x, y)
}

// Type clicks the node to focus it, then inserts text.
func (n *DOMNode) Type(ctx context.Context, text string) error {
	if err := n.Click(ctx); err != nil {
		return err
	}
	return n.conn.TypeText(ctx, text)
}
