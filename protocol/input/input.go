// Package input implements the CDP Input domain commands needed to
// synthesize mouse and keyboard events.
package input

import (
	"context"

	"github.com/PieceOfGood/aio-dt-go/protocol"
)

// Well-known method names.
const (
	CommandDispatchMouseEvent    protocol.MethodType = "Input.dispatchMouseEvent"
	CommandDispatchKeyEvent      protocol.MethodType = "Input.dispatchKeyEvent"
	CommandInsertText            protocol.MethodType = "Input.insertText"
)

// MouseEventType is the "type" field of Input.dispatchMouseEvent.
type MouseEventType string

// Mouse event types.
const (
	MousePressed  MouseEventType = "mousePressed"
	MouseReleased MouseEventType = "mouseReleased"
	MouseMoved    MouseEventType = "mouseMoved"
)

// MouseButton is the "button" field of Input.dispatchMouseEvent.
type MouseButton string

// Mouse buttons.
const (
	ButtonNone  MouseButton = "none"
	ButtonLeft  MouseButton = "left"
	ButtonRight MouseButton = "right"
)

// DispatchMouseEventParams are the parameters for Input.dispatchMouseEvent.
type DispatchMouseEventParams struct {
	Type       MouseEventType `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Button     MouseButton    `json:"button,omitempty"`
	ClickCount int64          `json:"clickCount,omitempty"`
}

// DispatchMouseEvent builds Input.dispatchMouseEvent parameters for a single
// synthetic mouse event at (x, y).
func DispatchMouseEvent(typ MouseEventType, x, y float64) *DispatchMouseEventParams {
	return &DispatchMouseEventParams{Type: typ, X: x, Y: y}
}

// WithButton sets the mouse button for press/release events.
func (p *DispatchMouseEventParams) WithButton(b MouseButton) *DispatchMouseEventParams {
	p.Button = b
	return p
}

// WithClickCount sets the click count (for double/triple click detection).
func (p *DispatchMouseEventParams) WithClickCount(n int64) *DispatchMouseEventParams {
	p.ClickCount = n
	return p
}

// Do executes Input.dispatchMouseEvent against the Executor bound to ctx.
func (p *DispatchMouseEventParams) Do(ctx context.Context) error {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return protocol.ErrNoExecutor
	}
	return exec.Execute(ctx, CommandDispatchMouseEvent, p, nil)
}

// KeyEventType is the "type" field of Input.dispatchKeyEvent.
type KeyEventType string

// Key event types.
const (
	KeyDown    KeyEventType = "keyDown"
	KeyUp      KeyEventType = "keyUp"
	KeyRawDown KeyEventType = "rawKeyDown"
	KeyChar    KeyEventType = "char"
)

// DispatchKeyEventParams are the parameters for Input.dispatchKeyEvent.
type DispatchKeyEventParams struct {
	Type                  KeyEventType `json:"type"`
	Text                  string       `json:"text,omitempty"`
	UnmodifiedText        string       `json:"unmodifiedText,omitempty"`
	Key                   string       `json:"key,omitempty"`
	Code                  string       `json:"code,omitempty"`
	WindowsVirtualKeyCode int64        `json:"windowsVirtualKeyCode,omitempty"`
	NativeVirtualKeyCode  int64        `json:"nativeVirtualKeyCode,omitempty"`
}

// DispatchKeyEvent builds Input.dispatchKeyEvent parameters.
func DispatchKeyEvent(typ KeyEventType) *DispatchKeyEventParams {
	return &DispatchKeyEventParams{Type: typ}
}

// WithText sets the text produced by a "char" event.
func (p *DispatchKeyEventParams) WithText(text string) *DispatchKeyEventParams {
	p.Text = text
	p.UnmodifiedText = text
	return p
}

// WithKey sets the key name (e.g. "Enter", "a") and its virtual key codes.
func (p *DispatchKeyEventParams) WithKey(key, code string, vkCode int64) *DispatchKeyEventParams {
	p.Key = key
	p.Code = code
	p.WindowsVirtualKeyCode = vkCode
	p.NativeVirtualKeyCode = vkCode
	return p
}

// Do executes Input.dispatchKeyEvent against the Executor bound to ctx.
func (p *DispatchKeyEventParams) Do(ctx context.Context) error {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return protocol.ErrNoExecutor
	}
	return exec.Execute(ctx, CommandDispatchKeyEvent, p, nil)
}

// InsertTextParams are the parameters for Input.insertText.
type InsertTextParams struct {
	Text string `json:"text"`
}

// InsertText inserts text at the current focus/caret position, bypassing
// key-by-key synthesis.
func InsertText(text string) protocol.Action {
	return protocol.ActionFunc(func(ctx context.Context) error {
		exec := protocol.FromContext(ctx)
		if exec == nil {
			return protocol.ErrNoExecutor
		}
		return exec.Execute(ctx, CommandInsertText, &InsertTextParams{Text: text}, nil)
	})
}
