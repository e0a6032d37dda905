package events

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// CloseEvent is sent by the capture layer when a connection is closed (FIN or RST)
type CloseEvent struct {
	EventType   uint64 `json:"eventType"`
	TimestampNs uint64 `json:"timestampNs"`
	PID         uint32 `json:"pid"`
	TID         uint32 `json:"tid"`
	FD          uint32 `json:"fd"`
}

func NewCloseEvent(pid uint32, fd uint32, timestampNs uint64) CloseEvent {
	return CloseEvent{EventType: kCloseEvent, TimestampNs: timestampNs, PID: pid, TID: pid, FD: fd}
}

func (ce *CloseEvent) Decode(payload []byte) (err error) {
	buf := bytes.NewReader(payload)
	if err = binary.Read(buf, binary.LittleEndian, &ce.EventType); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &ce.TimestampNs); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &ce.PID); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &ce.TID); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &ce.FD); err != nil {
		return
	}

	return nil
}

func (ce *CloseEvent) Encode() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, ce.EventType)
	binary.Write(buf, binary.LittleEndian, ce.TimestampNs)
	binary.Write(buf, binary.LittleEndian, ce.PID)
	binary.Write(buf, binary.LittleEndian, ce.TID)
	binary.Write(buf, binary.LittleEndian, ce.FD)

	return buf.Bytes()
}

func (ce *CloseEvent) Key() string {
	return fmt.Sprintf("%d-%d", ce.PID, ce.FD)
}
