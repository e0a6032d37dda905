package sockets

import (
	"fmt"
)

// Flow is reported once a protocol has been detected on a socket, and for TLS sockets again when the connection
// moves on from the handshake to application data.
type Flow struct {
	UUID       string
	SourceAddr string
	DestAddr   string
	L4Protocol string
	L7Protocol string
	TLSPhase   string
	TLSVersion string
	Pid        int
	Fd         int
	// Request holds the leading bytes which triggered this flow
	Request []byte
}

func NewFlow(uuid string, sourceAddr string, destAddr string, l4protocol string, l7protocol string, pid int, fd int, request []byte) *Flow {
	m := &Flow{
		UUID:       uuid,
		SourceAddr: sourceAddr,
		DestAddr:   destAddr,
		L4Protocol: l4protocol,
		L7Protocol: l7protocol,
		Pid:        pid,
		Fd:         fd,
		Request:    request,
	}
	return m
}

func (flow *Flow) Clone() Flow {
	m := *flow
	m.Request = append([]byte(nil), flow.Request...)
	return m
}

func (flow *Flow) Complete() bool {
	return flow.L4Protocol != "" && flow.L7Protocol != "" && flow.DestAddr != ""
}

func (flow *Flow) String() string {
	s := fmt.Sprintf("%s %s->%s %s/%s", flow.UUID, flow.SourceAddr, flow.DestAddr, flow.L4Protocol, flow.L7Protocol)
	if flow.TLSPhase != "" {
		s += fmt.Sprintf(" phase=%s version=%s", flow.TLSPhase, flow.TLSVersion)
	}
	return s
}
