// Package inspector implements the CDP Inspector domain's two events,
// detached and targetCrashed: the notifications a connection watches to
// notice its remote end disappearing out from under it.
package inspector

import (
	"github.com/PieceOfGood/aio-dt-go/protocol"
)

// Well-known method names.
const (
	EventDetached      protocol.MethodType = "Inspector.detached"
	EventTargetCrashed protocol.MethodType = "Inspector.targetCrashed"
)

// EventDetachedPayload is the Inspector.detached params.
type EventDetachedPayload struct {
	Reason string `json:"reason"`
}

// EventTargetCrashedPayload is the (empty) Inspector.targetCrashed params.
type EventTargetCrashedPayload struct{}
