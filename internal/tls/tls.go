// Package tls decides whether the leading bytes of a captured stream carry TLS (or SSL) without
// decrypting or parsing the session. It only ever looks at the record header and, for handshake
// records, at the header of the Client/Server Hello that follows it.
package tls

import "math"

// Record layer content types
const (
	ContentTypeHandshake       uint8 = 0x16
	ContentTypeApplicationData uint8 = 0x17
)

// Handshake message types
const (
	HandshakeTypeClientHello uint8 = 0x01
	HandshakeTypeServerHello uint8 = 0x02
)

// MaxPayloadLength is the largest fragment a single record may carry (2^14).
const MaxPayloadLength = 1 << 14

// Classification is the verdict returned by Classify.
type Classification uint8

const (
	NotTLS Classification = iota
	Handshake
	ApplicationData
)

func (c Classification) String() string {
	switch c {
	case Handshake:
		return "handshake"
	case ApplicationData:
		return "application_data"
	default:
		return "not_tls"
	}
}

// IsTLS returns true for both positive verdicts.
func (c Classification) IsTLS() bool {
	return c == Handshake || c == ApplicationData
}

// Classify inspects the first bufLen bytes of buf, which were captured from a network segment of
// segmentLen bytes, and returns whether they start a TLS handshake, an application data record or
// neither. buf is never written to and nothing is allocated.
//
// A record header is accepted when its version is a known SSL/TLS version and:
//   - content type is Handshake, followed by a Client or Server Hello whose version is known and not
//     lower than the record version
//   - content type is Application Data, the declared payload is at most 2^14 bytes and
//     header + payload fits inside the segment
func Classify(buf []byte, bufLen uint32, segmentLen uint32) Classification {
	b := view(buf, bufLen)

	// Both header shapes must be readable before anything is interpreted. This rejects application
	// data records shorter than a hello header, which is an accepted false negative.
	if len(b) < RecordHeaderLen+HelloHeaderLen {
		return NotTLS
	}

	record, ok := ReadRecordHeader(b)
	if !ok || !record.Version.Valid() {
		return NotTLS
	}

	switch record.ContentType {
	case ContentTypeHandshake:
		return classifyHandshake(b, record)
	case ContentTypeApplicationData:
		return classifyApplicationData(record, segmentLen)
	}

	return NotTLS
}

// ClassifyBytes is Classify for callers holding a plain slice and an int segment length.
func ClassifyBytes(buf []byte, segmentLen int) Classification {
	return Classify(buf, clampUint32(len(buf)), clampUint32(segmentLen))
}

func classifyHandshake(b []byte, record RecordHeader) Classification {
	if len(b) < RecordHeaderLen+HelloHeaderLen {
		return NotTLS
	}

	hello, ok := ReadHelloHeader(b[RecordHeaderLen:])
	if !ok {
		return NotTLS
	}

	switch hello.HandshakeType {
	case HandshakeTypeClientHello, HandshakeTypeServerHello:
	default:
		return NotTLS
	}

	// The hello carries the offered/negotiated version which is never below the record framing version.
	if !hello.Version.Valid() || hello.Version < record.Version {
		return NotTLS
	}

	return Handshake
}

func classifyApplicationData(record RecordHeader, segmentLen uint32) Classification {
	if record.Length > MaxPayloadLength {
		return NotTLS
	}

	// The payload is usually not inside the inspected prefix, so it is checked against the segment.
	if uint64(RecordHeaderLen)+uint64(record.Length) > uint64(segmentLen) {
		return NotTLS
	}

	return ApplicationData
}

func clampUint32(n int) uint32 {
	if n <= 0 {
		return 0
	}
	if uint64(n) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}
