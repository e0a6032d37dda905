package sockets

import (
	"bytes"
	"encoding/binary"
	"net/http"
	"slices"

	"github.com/evanrolfe/trayce_classifier/internal/tls"
	"golang.org/x/net/http2"
)

// See: https://github.com/pixie-io/pixie/blob/main/src/stirling/source_connectors/socket_tracer/bcc_bpf/protocol_inference.h

const (
	TLS     = "tls"
	HTTP    = "http"
	HTTP2   = "http2"
	PSQL    = "psql"
	MySQL   = "mysql"
	Unknown = "unknown"
)

// MySQL command bytes which start a client request
const (
	TypeMysqlQuery        = 0x03 // COM_QUERY
	TypeMysqlPrepareQuery = 0x16 // COM_STMT_PREPARE
	TypeMysqlExecute      = 0x17 // COM_STMT_EXECUTE
	TypeMysqlClose        = 0x19 // COM_STMT_CLOSE
)

var (
	httpMethods = [][]byte{
		[]byte(http.MethodConnect),
		[]byte(http.MethodDelete),
		[]byte(http.MethodGet),
		[]byte(http.MethodHead),
		[]byte(http.MethodOptions),
		[]byte(http.MethodPatch),
		[]byte(http.MethodPost),
		[]byte(http.MethodPut),
		[]byte(http.MethodTrace),
	}
	httpResponsePrefix = []byte("HTTP/1.")
	http2MagicString   = []byte(http2.ClientPreface)
	psqlMessageTypes   = []byte{'Q', 'P', 'B', 'X'}
)

// Detection is the result of running the dispatch table over the first bytes of a socket
type Detection struct {
	Protocol string
	// TLS is only set when Protocol is TLS
	TLS tls.Classification
}

// DetectProtocol runs each protocol check in turn over raw, which was captured from a segment of segmentLen bytes.
// prevRaw is the previous payload seen on the same socket, it is only used for MySQL headers sent on their own.
func DetectProtocol(raw []byte, segmentLen int, prevRaw []byte) Detection {
	// TLS
	if verdict := tls.ClassifyBytes(raw, segmentLen); verdict.IsTLS() {
		return Detection{Protocol: TLS, TLS: verdict}
	}

	// HTTP2
	if bytes.HasPrefix(raw, http2MagicString) {
		return Detection{Protocol: HTTP2}
	}

	// HTTP1.1
	if isHTTPMessage(raw) {
		return Detection{Protocol: HTTP}
	}

	// Postgres
	if isPSQLMessage(raw) {
		return Detection{Protocol: PSQL}
	}

	// Mysql
	if isMySQLMessage(raw, prevRaw) {
		return Detection{Protocol: MySQL}
	}

	return Detection{Protocol: Unknown}
}

func isHTTPMessage(raw []byte) bool {
	if bytes.HasPrefix(raw, httpResponsePrefix) {
		return true
	}
	for _, method := range httpMethods {
		if bytes.HasPrefix(raw, method) {
			return true
		}
	}
	return false
}

// isPSQLMessage parses the bytes as if they were a postgres message, it assume the first byte is the message type and
// the next four bytes are the message length. It then looks at the last byte of the payload and if that is 0x00
// (Null terminator) then its assumed to be postgres.
// NOTE: There is a small chance this could give a false positive.
func isPSQLMessage(raw []byte) bool {
	if len(raw) < 5 || !slices.Contains(psqlMessageTypes, raw[0]) {
		return false
	}

	// The length includes itself but not the message type
	length := int64(int32(binary.BigEndian.Uint32(raw[1:5])))
	payloadSize := length - 4
	if payloadSize <= 0 || payloadSize > int64(len(raw)-5) {
		return false
	}

	return raw[5+payloadSize-1] == 0x00
}

func isMySQLMessage(raw []byte, prevRaw []byte) bool {
	// The header packet was sent separately from the payload
	if len(prevRaw) == 4 && len(raw) > 0 {
		// The first 3 bytes represent the payload length in little-endian order.
		headerLen := int(prevRaw[0]) | int(prevRaw[1])<<8 | int(prevRaw[2])<<16
		if len(raw) == headerLen && isDesiredMySQLMessage(raw[0]) {
			return true
		}
	}

	// The header packet was sent with the payload in a single message
	if len(raw) > 4 {
		headerLen := int(raw[0]) | int(raw[1])<<8 | int(raw[2])<<16
		if len(raw) == headerLen+4 && isDesiredMySQLMessage(raw[4]) {
			return true
		}
	}

	return false
}

func isDesiredMySQLMessage(msgType byte) bool {
	desiredTypes := []byte{
		TypeMysqlQuery,
		TypeMysqlPrepareQuery,
		TypeMysqlExecute,
		TypeMysqlClose,
	}

	return slices.Contains(desiredTypes, msgType)
}
