// Package target implements the handful of CDP Target domain commands the
// protocol engine issues directly against a target's own websocket: reading
// back a target's own identity, and asking the browser to close a target by
// id (the one operation the HTTP /json/close endpoint cannot perform on the
// browser's own last remaining page).
package target

import (
	"context"

	"github.com/PieceOfGood/aio-dt-go/protocol"
)

// Well-known method names.
const (
	CommandGetTargetInfo protocol.MethodType = "Target.getTargetInfo"
	CommandCloseTarget    protocol.MethodType = "Target.closeTarget"
)

// ID identifies a CDP target, the same string the HTTP discovery endpoint
// reports as a target descriptor's "id" field (spec.md §3).
type ID string

// Info is the Target.getTargetInfo result's targetInfo object.
type Info struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Attached bool   `json:"attached"`
	OpenerID string `json:"openerId,omitempty"`
}

type getTargetInfoParams struct {
	TargetID ID `json:"targetId,omitempty"`
}

type getTargetInfoReturns struct {
	TargetInfo Info `json:"targetInfo"`
}

// GetTargetInfo builds Target.getTargetInfo parameters for id. An empty id
// asks for the info of the target the connection's own websocket belongs to.
func GetTargetInfo(id ID) interface {
	Do(ctx context.Context) (*Info, error)
} {
	return getTargetInfoParams{TargetID: id}
}

func (p getTargetInfoParams) Do(ctx context.Context) (*Info, error) {
	exec := protocol.FromContext(ctx)
	if exec == nil {
		return nil, protocol.ErrNoExecutor
	}
	var res getTargetInfoReturns
	if err := exec.Execute(ctx, CommandGetTargetInfo, p, &res); err != nil {
		return nil, err
	}
	return &res.TargetInfo, nil
}

type closeTargetParams struct {
	TargetID ID `json:"targetId"`
}

// CloseTarget asks the browser to close the target identified by id.
func CloseTarget(id ID) protocol.Action {
	return protocol.ActionFunc(func(ctx context.Context) error {
		exec := protocol.FromContext(ctx)
		if exec == nil {
			return protocol.ErrNoExecutor
		}
		return exec.Execute(ctx, CommandCloseTarget, closeTargetParams{TargetID: id}, nil)
	})
}
