package api

import (
	"encoding/hex"

	"github.com/evanrolfe/trayce_classifier/internal/sockets"
)

// Flow is the shape in which flows leave the classifier
type Flow struct {
	Uuid       string `json:"uuid"`
	SourceAddr string `json:"source_addr"`
	DestAddr   string `json:"dest_addr"`
	L4Protocol string `json:"l4_protocol"`
	L7Protocol string `json:"l7_protocol"`
	TLSPhase   string `json:"tls_phase,omitempty"`
	TLSVersion string `json:"tls_version,omitempty"`
	Pid        int    `json:"pid"`
	Fd         int    `json:"fd"`
	// Request is hex encoded as it is mostly binary for TLS
	Request string `json:"request,omitempty"`
}

func convertToAPIFlow(socketFlow sockets.Flow) *Flow {
	apiFlow := Flow{
		Uuid:       socketFlow.UUID,
		SourceAddr: socketFlow.SourceAddr,
		DestAddr:   socketFlow.DestAddr,
		L4Protocol: socketFlow.L4Protocol,
		L7Protocol: socketFlow.L7Protocol,
		TLSPhase:   socketFlow.TLSPhase,
		TLSVersion: socketFlow.TLSVersion,
		Pid:        socketFlow.Pid,
		Fd:         socketFlow.Fd,
	}

	if len(socketFlow.Request) > 0 {
		apiFlow.Request = hex.EncodeToString(socketFlow.Request)
	}

	return &apiFlow
}
