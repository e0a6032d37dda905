package sockets

import (
	"github.com/evanrolfe/trayce_classifier/internal/events"
	"github.com/evanrolfe/trayce_classifier/internal/tls"
)

// SocketTLS is a socket whose first bytes were classified as TLS. Each data event is classified again so that the
// move from the handshake to application data can be reported, a phase never goes backwards.
type SocketTLS struct {
	SocketCommon
	Phase   tls.Classification
	Version tls.Version
	// Number of data events per classification, NotTLS counts events whose start was not a record header
	// (continuations of a record spanning several segments)
	Records map[tls.Classification]int
}

func NewSocketTLSFromUnknown(unkownSocket *SocketUnknown) SocketTLS {
	return SocketTLS{
		SocketCommon: NewSocketCommonFromUnknown(unkownSocket, TLS),
		Phase:        tls.NotTLS,
		Records:      map[tls.Classification]int{},
	}
}

func (socket *SocketTLS) ProcessDataEvent(event *events.DataEvent) {
	socket.BytesSeen += uint64(event.SegmentLength())

	verdict := tls.ClassifyBytes(event.Payload(), event.SegmentLength())
	socket.Records[verdict]++

	if !socket.advance(verdict) {
		return
	}
	socket.Version = negotiatedVersion(event.Payload(), verdict)

	flow := socket.newFlow(event)
	flow.TLSPhase = verdict.String()
	flow.TLSVersion = socket.Version.String()
	socket.sendFlowBack(*flow)
}

// advance moves the socket to verdict if it is later than the current phase
func (socket *SocketTLS) advance(verdict tls.Classification) bool {
	switch {
	case verdict == tls.Handshake && socket.Phase == tls.NotTLS:
	case verdict == tls.ApplicationData && socket.Phase != tls.ApplicationData:
	default:
		return false
	}

	socket.Phase = verdict
	return true
}

// negotiatedVersion is the hello version for handshakes and the record version otherwise
func negotiatedVersion(payload []byte, verdict tls.Classification) tls.Version {
	record, ok := tls.ReadRecordHeader(payload)
	if !ok {
		return 0
	}
	if verdict != tls.Handshake {
		return record.Version
	}

	hello, ok := tls.ReadHelloHeader(payload[tls.RecordHeaderLen:])
	if !ok {
		return record.Version
	}
	return hello.Version
}
