package sockets

import (
	"github.com/evanrolfe/trayce_classifier/internal/events"
)

type SocketI interface {
	Key() string
	L7Protocol() string
	AddFlowCallback(callback func(Flow))
	ProcessDataEvent(event *events.DataEvent)
}
