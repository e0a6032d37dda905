package tls

import (
	"golang.org/x/crypto/cryptobyte"
)

// See: https://www.rfc-editor.org/rfc/rfc5246#section-6.2 (Record Layer)

const (
	RecordHeaderLen = 5
	HelloHeaderLen  = 6
)

// RecordHeader is a decoded copy of the 5 byte record layer header:
//
//	content_type(1) | version(2, big-endian) | length(2, big-endian)
type RecordHeader struct {
	ContentType uint8
	Version     Version
	Length      uint16
}

// HelloHeader is a decoded copy of the first 6 bytes of a Client/Server Hello handshake message:
//
//	handshake_type(1) | length(3, big-endian) | version(2, big-endian)
type HelloHeader struct {
	HandshakeType uint8
	Length        uint32
	Version       Version
}

// ReadRecordHeader decodes a RecordHeader from the start of b. The bytes of b are only read, every
// field is converted to host order into the returned value.
func ReadRecordHeader(b []byte) (RecordHeader, bool) {
	var hdr RecordHeader
	var version uint16

	s := cryptobyte.String(b)
	if !s.ReadUint8(&hdr.ContentType) || !s.ReadUint16(&version) || !s.ReadUint16(&hdr.Length) {
		return RecordHeader{}, false
	}
	hdr.Version = Version(version)

	return hdr, true
}

// ReadHelloHeader decodes a HelloHeader from the start of b.
func ReadHelloHeader(b []byte) (HelloHeader, bool) {
	var hdr HelloHeader
	var version uint16

	s := cryptobyte.String(b)
	if !s.ReadUint8(&hdr.HandshakeType) || !s.ReadUint24(&hdr.Length) || !s.ReadUint16(&version) {
		return HelloHeader{}, false
	}
	hdr.Version = Version(version)

	return hdr, true
}

// view limits buf to the bytes the caller declared as available. A bufLen larger than the slice
// itself is never trusted.
func view(buf []byte, bufLen uint32) []byte {
	if uint64(bufLen) < uint64(len(buf)) {
		return buf[:bufLen]
	}
	return buf
}
