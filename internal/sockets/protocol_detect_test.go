package sockets_test

import (
	"github.com/evanrolfe/trayce_classifier/internal/sockets"
	"github.com/evanrolfe/trayce_classifier/internal/tls"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/net/http2"
)

const (
	httpRequest = `00000000  47 45 54 20 2f 20 48 54  54 50 2f 31 2e 31 0d 0a  |GET / HTTP/1.1..|
00000010  48 6f 73 74 3a 20 6c 6f  63 61 6c 68 6f 73 74 3a  |Host: localhost:|
00000020  34 31 32 32 0d 0a 0d 0a                           |4122....|`

	httpResponse = `00000000  48 54 54 50 2f 31 2e 31  20 32 30 30 20 4f 4b 0d  |HTTP/1.1 200 OK.|
00000010  0a 43 6f 6e 74 65 6e 74  2d 4c 65 6e 67 74 68 3a  |.Content-Length:|`

	tlsClientHello = `00000000  16 03 01 02 00 01 00 01  fc 03 03 5b 3e 1f 7a 9c  |...........[>.z.|
00000010  d2 41 0b 6e 88 13 55 a0  c7 39 1e 44 f0 2b 7d 61  |.A.n..U..9.D.+}a|`

	tlsAppData = `00000000  17 03 03 00 2e 9a 41 c4  5e 02 77 d1 8b 3f 61 21  |......A.^.w..?a!|`
)

var (
	psqlQuery        = append([]byte{'Q', 0x00, 0x00, 0x00, 0x0e}, []byte("SELECT 1;\x00")...)
	mysqlQuery       = append([]byte{0x09, 0x00, 0x00, 0x00, 0x03}, []byte("SELECT 1")...)
	mysqlHeader      = []byte{0x09, 0x00, 0x00, 0x00}
	mysqlQueryNoHead = append([]byte{0x03}, []byte("SELECT 1")...)
)

var _ = Describe("DetectProtocol", func() {
	DescribeTable("first bytes of a socket",
		func(raw []byte, segmentLen int, prevRaw []byte, protocol string, verdict tls.Classification) {
			detection := sockets.DetectProtocol(raw, segmentLen, prevRaw)
			Expect(detection.Protocol).To(Equal(protocol))
			Expect(detection.TLS).To(Equal(verdict))
		},
		Entry("TLS ClientHello", hexDumpToBytes(tlsClientHello), 517, nil, sockets.TLS, tls.Handshake),
		Entry("TLS application data from a truncated capture", hexDumpToBytes(tlsAppData), 51, nil, sockets.TLS, tls.ApplicationData),
		Entry("TLS application data longer than the segment", hexDumpToBytes(tlsAppData), 16, nil, sockets.Unknown, tls.NotTLS),
		Entry("HTTP request", hexDumpToBytes(httpRequest), 40, nil, sockets.HTTP, tls.NotTLS),
		Entry("HTTP response", hexDumpToBytes(httpResponse), 32, nil, sockets.HTTP, tls.NotTLS),
		Entry("HTTP2 preface", []byte(http2.ClientPreface), 24, nil, sockets.HTTP2, tls.NotTLS),
		Entry("Postgres query", psqlQuery, len(psqlQuery), nil, sockets.PSQL, tls.NotTLS),
		Entry("MySQL query", mysqlQuery, len(mysqlQuery), nil, sockets.MySQL, tls.NotTLS),
		Entry("MySQL query after its header", mysqlQueryNoHead, len(mysqlQueryNoHead), mysqlHeader, sockets.MySQL, tls.NotTLS),
		Entry("SSH banner", []byte("SSH-2.0-OpenSSH_9.6\r\n"), 21, nil, sockets.Unknown, tls.NotTLS),
		Entry("empty", []byte{}, 0, nil, sockets.Unknown, tls.NotTLS),
		Entry("single Postgres type byte", []byte{'Q'}, 1, nil, sockets.Unknown, tls.NotTLS),
		Entry("Postgres message without payload", []byte{'Q', 0x00, 0x00, 0x00, 0x04}, 5, nil, sockets.Unknown, tls.NotTLS),
		Entry("Postgres message with negative length", []byte{'Q', 0xff, 0xff, 0xff, 0xff, 0x00}, 6, nil, sockets.Unknown, tls.NotTLS),
	)
})
