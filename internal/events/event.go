package events

import (
	"bytes"
	"encoding/binary"
)

const MaxDataSize = 1024 * 4

// Event types, the first 8 bytes (little-endian) of every encoded event
const (
	kConnectEvent = 0
	kDataEvent    = 1
	kCloseEvent   = 2
)

type IEvent interface {
	Key() string
}

// Encoder is implemented by every event that can be written to an event dump
type Encoder interface {
	IEvent
	Encode() []byte
}

func getEventType(payload []byte) int {
	var eventType uint64
	buf := bytes.NewReader(payload)
	if err := binary.Read(buf, binary.LittleEndian, &eventType); err != nil {
		return -1
	}

	return int(eventType)
}
