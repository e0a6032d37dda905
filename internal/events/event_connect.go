package events

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
)

const (
	kConnect = 0
	kAccept  = 1
)

// ConnectEvent is sent by the capture layer when a connection is opened, hosts are stored in their 16 byte form
// so that IPv4 and IPv6 share one layout.
type ConnectEvent struct {
	EventType   uint64   `json:"eventType"`
	Type        uint64   `json:"type"`
	TimestampNs uint64   `json:"timestampNs"`
	PID         uint32   `json:"pid"`
	TID         uint32   `json:"tid"`
	FD          uint32   `json:"fd"`
	SourceHost  [16]byte `json:"source_host"`
	DestHost    [16]byte `json:"dest_host"`
	SourcePort  uint16   `json:"source_port"`
	DestPort    uint16   `json:"dest_port"`
}

func NewConnectEvent(pid uint32, fd uint32, timestampNs uint64, src net.IP, srcPort uint16, dst net.IP, dstPort uint16) ConnectEvent {
	ce := ConnectEvent{
		EventType:   kConnectEvent,
		Type:        kConnect,
		TimestampNs: timestampNs,
		PID:         pid,
		TID:         pid,
		FD:          fd,
		SourcePort:  srcPort,
		DestPort:    dstPort,
	}
	copy(ce.SourceHost[:], src.To16())
	copy(ce.DestHost[:], dst.To16())

	return ce
}

func (ce *ConnectEvent) Decode(payload []byte) (err error) {
	buf := bytes.NewReader(payload)
	if err = binary.Read(buf, binary.LittleEndian, &ce.EventType); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &ce.Type); err != nil {
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
	if err = binary.Read(buf, binary.LittleEndian, &ce.SourceHost); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &ce.DestHost); err != nil {
		return
	}
	// Ports are kept in network byte order, the same as they are on the wire
	if err = binary.Read(buf, binary.BigEndian, &ce.SourcePort); err != nil {
		return
	}
	if err = binary.Read(buf, binary.BigEndian, &ce.DestPort); err != nil {
		return
	}

	return nil
}

func (ce *ConnectEvent) Encode() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, ce.EventType)
	binary.Write(buf, binary.LittleEndian, ce.Type)
	binary.Write(buf, binary.LittleEndian, ce.TimestampNs)
	binary.Write(buf, binary.LittleEndian, ce.PID)
	binary.Write(buf, binary.LittleEndian, ce.TID)
	binary.Write(buf, binary.LittleEndian, ce.FD)
	binary.Write(buf, binary.LittleEndian, ce.SourceHost)
	binary.Write(buf, binary.LittleEndian, ce.DestHost)
	binary.Write(buf, binary.BigEndian, ce.SourcePort)
	binary.Write(buf, binary.BigEndian, ce.DestPort)

	return buf.Bytes()
}

func (ce *ConnectEvent) Key() string {
	return fmt.Sprintf("%d-%d", ce.PID, ce.FD)
}

func (ce *ConnectEvent) TypeStr() string {
	switch ce.Type {
	case kConnect:
		return "connect"
	case kAccept:
		return "accept"
	default:
		return ""
	}
}

func (ce *ConnectEvent) SourceAddr() string {
	return net.JoinHostPort(net.IP(ce.SourceHost[:]).String(), strconv.Itoa(int(ce.SourcePort)))
}

func (ce *ConnectEvent) DestAddr() string {
	return net.JoinHostPort(net.IP(ce.DestHost[:]).String(), strconv.Itoa(int(ce.DestPort)))
}
