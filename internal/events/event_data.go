package events

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/evanrolfe/trayce_classifier/internal/utils"
	"github.com/go-faster/errors"
)

const (
	kRead       = 2
	kWrite      = 3
	kRecvfrom   = 4
	kSendto     = 5
	kPacketIn   = 8
	kPacketOut  = 9
	TypeEgress  = "egress"
	TypeIngress = "ingress"
)

var ErrDataLen = errors.New("data length out of range")

// DataEvent is sent by the capture layer when data is sent or received over a connection. Data holds the first DataLen
// bytes of a segment which was SegmentLen bytes long on the wire, the two differ when the capture was truncated.
type DataEvent struct {
	EventType  uint64            `json:"eventType"`
	DataType   uint64            `json:"dataType"`
	Timestamp  uint64            `json:"timestamp"`
	PID        uint32            `json:"pid"`
	TID        uint32            `json:"tid"`
	Comm       [16]byte          `json:"Comm"`
	FD         uint32            `json:"fd"`
	SegmentLen uint32            `json:"segmentLen"`
	DataLen    int32             `json:"dataLen"`
	Data       [MaxDataSize]byte `json:"data"`
}

// NewPacketDataEvent builds a DataEvent for a captured packet, egress is true when the packet was sent by the side
// which opened the connection. Data beyond MaxDataSize is dropped, segmentLen is kept as is.
func NewPacketDataEvent(pid uint32, fd uint32, timestamp uint64, comm string, egress bool, data []byte, segmentLen uint32) DataEvent {
	de := DataEvent{
		EventType:  kDataEvent,
		DataType:   kPacketIn,
		Timestamp:  timestamp,
		PID:        pid,
		TID:        pid,
		FD:         fd,
		SegmentLen: segmentLen,
	}
	if egress {
		de.DataType = kPacketOut
	}
	copy(de.Comm[:], comm)
	de.DataLen = int32(copy(de.Data[:], data))

	return de
}

func (se *DataEvent) Decode(payload []byte) (err error) {
	buf := bytes.NewReader(payload)
	if err = binary.Read(buf, binary.LittleEndian, &se.EventType); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &se.DataType); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &se.Timestamp); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &se.PID); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &se.TID); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &se.Comm); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &se.FD); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &se.SegmentLen); err != nil {
		return
	}
	if err = binary.Read(buf, binary.LittleEndian, &se.DataLen); err != nil {
		return
	}
	if se.DataLen < 0 || se.DataLen > MaxDataSize {
		return errors.Wrapf(ErrDataLen, "dataLen %d", se.DataLen)
	}
	if _, err = io.ReadFull(buf, se.Data[:se.DataLen]); err != nil {
		return
	}

	return nil
}

// Encode writes the event in the layout read by Decode, only the first DataLen bytes of Data are written.
func (se *DataEvent) Encode() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, se.EventType)
	binary.Write(buf, binary.LittleEndian, se.DataType)
	binary.Write(buf, binary.LittleEndian, se.Timestamp)
	binary.Write(buf, binary.LittleEndian, se.PID)
	binary.Write(buf, binary.LittleEndian, se.TID)
	binary.Write(buf, binary.LittleEndian, se.Comm)
	binary.Write(buf, binary.LittleEndian, se.FD)
	binary.Write(buf, binary.LittleEndian, se.SegmentLen)
	binary.Write(buf, binary.LittleEndian, se.DataLen)
	buf.Write(se.Payload())

	return buf.Bytes()
}

func (se *DataEvent) GetUUID() string {
	return fmt.Sprintf("%d_%d_%s_%d_%d", se.PID, se.TID, utils.CToGoString(se.Comm[:]), se.FD, se.DataType)
}

func (se *DataEvent) Payload() []byte {
	if se.DataLen < 0 || se.DataLen > MaxDataSize {
		return nil
	}
	return se.Data[:se.DataLen]
}

func (se *DataEvent) PayloadTrimmed(n int) []byte {
	payload := se.Payload()

	if len(payload) > n {
		return payload[0:n]
	} else {
		return payload
	}
}

func (se *DataEvent) PayloadLen() int {
	return len(se.Payload())
}

// SegmentLength is the length of the enclosing segment, never less than the captured payload.
func (se *DataEvent) SegmentLength() int {
	if int(se.SegmentLen) < se.PayloadLen() {
		return se.PayloadLen()
	}
	return int(se.SegmentLen)
}

func (se *DataEvent) Truncated() bool {
	return se.SegmentLength() > se.PayloadLen()
}

func (se *DataEvent) Type() string {
	switch se.DataType {
	case kRead, kRecvfrom, kPacketIn:
		return TypeIngress
	case kWrite, kSendto, kPacketOut:
		return TypeEgress
	default:
		return ""
	}
}

func (se *DataEvent) Source() string {
	switch se.DataType {
	case kRead:
		return "kprobe/read"
	case kWrite:
		return "kprobe/write"
	case kRecvfrom:
		return "kprobe/recvfrom"
	case kSendto:
		return "kprobe/sendto"
	case kPacketIn, kPacketOut:
		return "pcap"
	default:
		return "unknown"
	}
}

func (se *DataEvent) Key() string {
	return fmt.Sprintf("%d-%d", se.PID, se.FD)
}

// IsBlank returns true if the event's payload contains only zero bytes
func (se *DataEvent) IsBlank() bool {
	for _, b := range se.Payload() {
		if b != 0x00 {
			return false
		}
	}
	return true
}
