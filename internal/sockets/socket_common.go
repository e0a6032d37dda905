package sockets

import (
	"fmt"

	"github.com/evanrolfe/trayce_classifier/internal/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// flowSampleSize is how many leading bytes of the triggering event are kept on a Flow
const flowSampleSize = 64

// SocketCommon implements some common functionality and data used by all socket types. On its own it is used for
// protocols which are only tagged: the first data event produces a flow, later ones are counted.
type SocketCommon struct {
	SourceAddr string
	DestAddr   string
	Protocol   string
	PID        uint32
	TID        uint32
	FD         uint32
	BytesSeen  uint64

	// If a flow is observed, then these are called
	flowCallbacks []func(Flow)
	flowSent      bool
	lg            *zap.SugaredLogger
}

func NewSocketCommonFromUnknown(unkownSocket *SocketUnknown, protocol string) SocketCommon {
	socket := SocketCommon{
		SourceAddr: unkownSocket.SourceAddr,
		DestAddr:   unkownSocket.DestAddr,
		Protocol:   protocol,
		PID:        unkownSocket.PID,
		TID:        unkownSocket.TID,
		FD:         unkownSocket.FD,
		lg:         unkownSocket.lg,
	}

	return socket
}

func (socket *SocketCommon) AddFlowCallback(callback func(Flow)) {
	socket.flowCallbacks = append(socket.flowCallbacks, callback)
}

func (socket *SocketCommon) Key() string {
	return fmt.Sprintf("%d-%d", socket.PID, socket.FD)
}

func (socket *SocketCommon) L7Protocol() string {
	return socket.Protocol
}

func (socket *SocketCommon) ProcessDataEvent(event *events.DataEvent) {
	socket.BytesSeen += uint64(event.SegmentLength())
	if socket.flowSent {
		return
	}

	flow := socket.newFlow(event)
	socket.sendFlowBack(*flow)
	socket.flowSent = true
}

func (socket *SocketCommon) newFlow(event *events.DataEvent) *Flow {
	return NewFlow(
		uuid.NewString(),
		socket.SourceAddr,
		socket.DestAddr,
		"tcp",
		socket.Protocol,
		int(socket.PID),
		int(socket.FD),
		append([]byte(nil), event.PayloadTrimmed(flowSampleSize)...),
	)
}

// sendFlowBack calls all the callbacks with this flow
func (socket *SocketCommon) sendFlowBack(flow Flow) {
	flow.SourceAddr = socket.SourceAddr
	flow.DestAddr = socket.DestAddr

	if socket.lg != nil {
		socket.lg.Debugf("Flow %s", flow.String())
	}

	for _, callback := range socket.flowCallbacks {
		callback(flow)
	}
}
