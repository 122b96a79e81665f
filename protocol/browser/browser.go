// Package browser implements the CDP Browser domain commands needed for
// whole-browser control: version info and graceful shutdown.
package browser

import (
	"context"

	"github.com/PieceOfGood/aio-dt-go/protocol"
)

// Well-known method names.
const (
	CommandGetVersion protocol.MethodType = "Browser.getVersion"
	CommandClose      protocol.MethodType = "Browser.close"
)

// GetVersionReturns is the Browser.getVersion result.
type GetVersionReturns struct {
	Product         string `json:"product"`
	Revision        string `json:"revision"`
	UserAgent       string `json:"userAgent"`
	JsVersion       string `json:"jsVersion"`
	ProtocolVersion string `json:"protocolVersion"`
}

// GetVersion fetches the remote browser's version metadata.
func GetVersion() interface {
	Do(ctx context.Context) (*GetVersionReturns, error)
} {
	return getVersion{}
}

type getVersion struct{}

func (getVersion) Do(ctx context.Context) (*GetVersionReturns, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return nil, protocol.ErrNoExecutor
	}
	var res GetVersionReturns
	if err := exec.Execute(ctx, CommandGetVersion, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Close asks the remote browser process to shut down cleanly.
func Close() protocol.Action {
	return protocol.ActionFunc(func(ctx context.Context) error {
		exec := protocol.FromContext(ctx)
		if exec == nil {
			return protocol.ErrNoExecutor
		}
		return exec.Execute(ctx, CommandClose, nil, nil)
	})
}
