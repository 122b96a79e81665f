// Package page implements the small slice of the CDP Page domain the client
// needs: navigation, lifecycle and frame events, and screenshot capture.
package page

import (
	"context"

	"github.com/PieceOfGood/aio-dt-go/protocol"
)

// Well-known method names.
const (
	CommandEnable            protocol.MethodType = "Page.enable"
	CommandNavigate          protocol.MethodType = "Page.navigate"
	CommandReload            protocol.MethodType = "Page.reload"
	CommandCaptureScreenshot protocol.MethodType = "Page.captureScreenshot"
	CommandStopLoading       protocol.MethodType = "Page.stopLoading"
	CommandSetBypassCSP      protocol.MethodType = "Page.setBypassCSP"

	EventFrameNavigated      protocol.MethodType = "Page.frameNavigated"
	EventFrameStartedLoading protocol.MethodType = "Page.frameStartedLoading"
	EventFrameStoppedLoading protocol.MethodType = "Page.frameStoppedLoading"
)

// Frame describes a CDP Page.Frame.
type Frame struct {
	ID       protocol.FrameID `json:"id"`
	ParentID protocol.FrameID `json:"parentId,omitempty"`
	URL      string           `json:"url"`
	Name     string           `json:"name,omitempty"`
}

// EventFrameNavigatedPayload is the Page.frameNavigated params.
type EventFrameNavigatedPayload struct {
	Frame Frame `json:"frame"`
}

// EventFrameStartedLoadingPayload is the Page.frameStartedLoading params.
type EventFrameStartedLoadingPayload struct {
	FrameID protocol.FrameID `json:"frameId"`
}

// EventFrameStoppedLoadingPayload is the Page.frameStoppedLoading params.
type EventFrameStoppedLoadingPayload struct {
	FrameID protocol.FrameID `json:"frameId"`
}

// Enable enables the Page domain.
func Enable() protocol.Action {
	return protocol.ActionFunc(func(ctx context.Context) error {
		exec := protocol.FromContext(ctx)
		if exec == nil {
			return protocol.ErrNoExecutor
		}
		return exec.Execute(ctx, CommandEnable, nil, nil)
	})
}

// NavigateParams are the parameters for Page.navigate.
type NavigateParams struct {
	URL            string           `json:"url"`
	Referrer       string           `json:"referrer,omitempty"`
	FrameID        protocol.FrameID `json:"frameId,omitempty"`
}

// NavigateReturns is the Page.navigate result.
type NavigateReturns struct {
	FrameID   protocol.FrameID `json:"frameId"`
	ErrorText string           `json:"errorText,omitempty"`
}

// Navigate builds Page.navigate parameters for url.
func Navigate(url string) *NavigateParams {
	return &NavigateParams{URL: url}
}

// Do executes Page.navigate against the Executor bound to ctx.
func (p *NavigateParams) Do(ctx context.Context) (protocol.FrameID, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return protocol.EmptyFrameID, protocol.ErrNoExecutor
	}
	var res NavigateReturns
	if err := exec.Execute(ctx, CommandNavigate, p, &res); err != nil {
		return protocol.EmptyFrameID, err
	}
	if res.ErrorText != "" {
		return res.FrameID, &NavigateError{Text: res.ErrorText, URL: p.URL}
	}
	return res.FrameID, nil
}

// NavigateError reports a navigation that CDP itself rejected (bad scheme,
// blocked by policy, and the like), as opposed to a transport error.
type NavigateError struct {
	Text string
	URL  string
}

func (e *NavigateError) Error() string {
	return "navigate " + e.URL + ": " + e.Text
}

// CaptureScreenshotParams are the parameters for Page.captureScreenshot.
type CaptureScreenshotParams struct {
	Format      string `json:"format,omitempty"`
	Quality     int64  `json:"quality,omitempty"`
	FromSurface bool   `json:"fromSurface,omitempty"`
}

// CaptureScreenshotReturns is the Page.captureScreenshot result.
type CaptureScreenshotReturns struct {
	Data []byte `json:"data"`
}

// CaptureScreenshot builds Page.captureScreenshot parameters.
func CaptureScreenshot() *CaptureScreenshotParams {
	return &CaptureScreenshotParams{Format: "png", FromSurface: true}
}

// WithFormat sets the image format ("png" or "jpeg").
func (p *CaptureScreenshotParams) WithFormat(format string) *CaptureScreenshotParams {
	p.Format = format
	return p
}

// WithQuality sets the JPEG compression quality (0-100), ignored for png.
func (p *CaptureScreenshotParams) WithQuality(q int64) *CaptureScreenshotParams {
	p.Quality = q
	return p
}

// Do executes Page.captureScreenshot against the Executor bound to ctx. The
// returned bytes are already base64-decoded image data, per spec.md §5.4.
func (p *CaptureScreenshotParams) Do(ctx context.Context) ([]byte, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return nil, protocol.ErrNoExecutor
	}
	var res CaptureScreenshotReturns
	if err := exec.Execute(ctx, CommandCaptureScreenshot, p, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ReloadParams are the parameters for Page.reload.
type ReloadParams struct {
	IgnoreCache bool `json:"ignoreCache,omitempty"`
}

// Reload reloads the page.
func Reload() *ReloadParams {
	return &ReloadParams{}
}

// WithIgnoreCache forces a reload that bypasses the browser cache.
func (p *ReloadParams) WithIgnoreCache(v bool) *ReloadParams {
	p.IgnoreCache = v
	return p
}

// Do executes Page.reload against the Executor bound to ctx.
func (p *ReloadParams) Do(ctx context.Context) error {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return protocol.ErrNoExecutor
	}
	return exec.Execute(ctx, CommandReload, p, nil)
}

// StopLoading stops all navigation and pending resource fetches for the page.
func StopLoading() protocol.Action {
	return protocol.ActionFunc(func(ctx context.Context) error {
		exec := protocol.FromContext(ctx)
		if exec == nil {
			return protocol.ErrNoExecutor
		}
		return exec.Execute(ctx, CommandStopLoading, nil, nil)
	})
}
