package sockets

import (
	"fmt"

	"github.com/evanrolfe/trayce_classifier/internal/events"
	"go.uber.org/zap"
)

// maxDetectAttempts is the number of data events an unknown socket is classified on before it is given up on
const maxDetectAttempts = 4

type SocketUnknown struct {
	SourceAddr string
	DestAddr   string
	PID        uint32
	TID        uint32
	FD         uint32
	// If a flow is observed, then these are called
	flowCallbacks []func(Flow)
	// This is the previous data processed for this unknown socket, used in DetectProtocol
	prevDataEvent *events.DataEvent
	attempts      int
	lg            *zap.SugaredLogger
}

func NewSocketUnknown(event *events.ConnectEvent, lg *zap.SugaredLogger) SocketUnknown {
	return SocketUnknown{
		SourceAddr: event.SourceAddr(),
		DestAddr:   event.DestAddr(),
		PID:        event.PID,
		TID:        event.TID,
		FD:         event.FD,
		lg:         lg,
	}
}

// NewSocketUnknownFromData is used when data is seen on a socket whose connect was never observed, the addresses
// are left empty.
func NewSocketUnknownFromData(event *events.DataEvent, lg *zap.SugaredLogger) SocketUnknown {
	return SocketUnknown{
		PID: event.PID,
		TID: event.TID,
		FD:  event.FD,
		lg:  lg,
	}
}

func (sk *SocketUnknown) Key() string {
	return fmt.Sprintf("%d-%d", sk.PID, sk.FD)
}

func (sk *SocketUnknown) L7Protocol() string {
	return Unknown
}

func (sk *SocketUnknown) AddFlowCallback(callback func(Flow)) {
	sk.flowCallbacks = append(sk.flowCallbacks, callback)
}

func (sk *SocketUnknown) ProcessDataEvent(event *events.DataEvent) {
}

// Detect runs the protocol dispatch table over the event, it returns Unknown once the socket has used up its
// attempts.
func (sk *SocketUnknown) Detect(event *events.DataEvent) Detection {
	if sk.Exhausted() {
		return Detection{Protocol: Unknown}
	}
	sk.attempts++

	var prevRaw []byte
	if sk.prevDataEvent != nil {
		prevRaw = sk.prevDataEvent.Payload()
	}
	detection := DetectProtocol(event.Payload(), event.SegmentLength(), prevRaw)
	sk.prevDataEvent = event

	return detection
}

func (sk *SocketUnknown) Exhausted() bool {
	return sk.attempts >= maxDetectAttempts
}
