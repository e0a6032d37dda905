package sockets_test

import (
	"context"
	"net"

	"github.com/evanrolfe/trayce_classifier/internal/events"
	"github.com/evanrolfe/trayce_classifier/internal/sockets"
	"github.com/evanrolfe/trayce_classifier/internal/tls"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const (
	pid = 0
	fd  = 5
)

func connectEvent() events.ConnectEvent {
	return events.NewConnectEvent(pid, fd, 0, net.ParseIP("172.17.0.3"), 47830, net.ParseIP("172.17.0.4"), 443)
}

func dataEvent(raw []byte, segmentLen int) events.DataEvent {
	return events.NewPacketDataEvent(pid, fd, 0, "pcap", true, raw, uint32(segmentLen))
}

var _ = Describe("SocketMap", func() {
	var socketsMap *sockets.SocketMap
	var flows []sockets.Flow

	BeforeEach(func() {
		flows = []sockets.Flow{}
		socketsMap = sockets.NewSocketMap(context.Background())
		socketsMap.AddFlowCallback(func(flow sockets.Flow) {
			flows = append(flows, flow)
		})
	})

	Context("Receiving a Connect, Data (ClientHello), Data (application data) and Close event", func() {
		BeforeEach(func() {
			socketsMap.ProcessConnectEvent(connectEvent())
			socketsMap.ProcessDataEvent(dataEvent(hexDumpToBytes(tlsClientHello), 517))
			socketsMap.ProcessDataEvent(dataEvent(hexDumpToBytes(tlsAppData), 51))
			socketsMap.ProcessDataEvent(dataEvent(hexDumpToBytes(tlsAppData), 51))
		})

		It("returns a flow per TLS phase", func() {
			Expect(flows).To(HaveLen(2))

			Expect(flows[0].UUID).NotTo(BeEmpty())
			Expect(flows[0].SourceAddr).To(Equal("172.17.0.3:47830"))
			Expect(flows[0].DestAddr).To(Equal("172.17.0.4:443"))
			Expect(flows[0].L4Protocol).To(Equal("tcp"))
			Expect(flows[0].L7Protocol).To(Equal(sockets.TLS))
			Expect(flows[0].TLSPhase).To(Equal("handshake"))
			Expect(flows[0].TLSVersion).To(Equal("TLS 1.2"))
			Expect(flows[0].Request).To(Equal(hexDumpToBytes(tlsClientHello)))
			Expect(flows[0].Complete()).To(BeTrue())

			Expect(flows[1].TLSPhase).To(Equal("application_data"))
			Expect(flows[1].TLSVersion).To(Equal("TLS 1.2"))
			Expect(flows[1].UUID).NotTo(Equal(flows[0].UUID))
		})

		It("counts the records of the socket", func() {
			socket, ok := socketsMap.Get("0-5")
			Expect(ok).To(BeTrue())

			tlsSocket, ok := socket.(*sockets.SocketTLS)
			Expect(ok).To(BeTrue())
			Expect(tlsSocket.Phase).To(Equal(tls.ApplicationData))
			Expect(tlsSocket.Records[tls.Handshake]).To(Equal(1))
			Expect(tlsSocket.Records[tls.ApplicationData]).To(Equal(2))
			Expect(tlsSocket.BytesSeen).To(Equal(uint64(517 + 51 + 51)))
		})

		It("deletes the socket on close", func() {
			Expect(socketsMap.Len()).To(Equal(1))
			socketsMap.ProcessCloseEvent(events.NewCloseEvent(pid, fd, 0))
			Expect(socketsMap.Len()).To(Equal(0))
		})
	})

	Context("Receiving application data before a handshake", func() {
		It("never moves back to the handshake phase", func() {
			socketsMap.ProcessConnectEvent(connectEvent())
			socketsMap.ProcessDataEvent(dataEvent(hexDumpToBytes(tlsAppData), 51))
			socketsMap.ProcessDataEvent(dataEvent(hexDumpToBytes(tlsClientHello), 517))

			Expect(flows).To(HaveLen(1))
			Expect(flows[0].TLSPhase).To(Equal("application_data"))
		})
	})

	Context("Receiving a Data event without a Connect", func() {
		It("returns a flow without addresses", func() {
			socketsMap.ProcessDataEvent(dataEvent(hexDumpToBytes(httpRequest), 40))
			socketsMap.ProcessDataEvent(dataEvent(hexDumpToBytes(httpRequest), 40))

			Expect(flows).To(HaveLen(1))
			Expect(flows[0].L7Protocol).To(Equal(sockets.HTTP))
			Expect(flows[0].TLSPhase).To(BeEmpty())
			Expect(flows[0].DestAddr).To(BeEmpty())
			Expect(flows[0].Complete()).To(BeFalse())
		})
	})

	Context("Receiving a MySQL header and payload as separate Data events", func() {
		It("detects MySQL on the second event", func() {
			socketsMap.ProcessConnectEvent(connectEvent())
			socketsMap.ProcessDataEvent(dataEvent(mysqlHeader, 4))
			Expect(flows).To(BeEmpty())

			socketsMap.ProcessDataEvent(dataEvent(mysqlQueryNoHead, len(mysqlQueryNoHead)))
			Expect(flows).To(HaveLen(1))
			Expect(flows[0].L7Protocol).To(Equal(sockets.MySQL))
		})
	})

	Context("Receiving Data events which match no protocol", func() {
		It("gives up classifying the socket", func() {
			socketsMap.ProcessConnectEvent(connectEvent())
			for i := 0; i < 4; i++ {
				socketsMap.ProcessDataEvent(dataEvent([]byte("SSH-2.0-OpenSSH_9.6\r\n"), 21))
			}
			socketsMap.ProcessDataEvent(dataEvent(hexDumpToBytes(tlsClientHello), 517))

			Expect(flows).To(BeEmpty())
			socket, ok := socketsMap.Get("0-5")
			Expect(ok).To(BeTrue())
			Expect(socket.L7Protocol()).To(Equal(sockets.Unknown))
		})
	})

	Context("Receiving a Connect for a socket which is already tracked", func() {
		It("keeps the existing socket", func() {
			socketsMap.ProcessConnectEvent(connectEvent())
			socketsMap.ProcessDataEvent(dataEvent(hexDumpToBytes(tlsClientHello), 517))
			socketsMap.ProcessConnectEvent(connectEvent())

			socket, ok := socketsMap.Get("0-5")
			Expect(ok).To(BeTrue())
			Expect(socket.L7Protocol()).To(Equal(sockets.TLS))
		})
	})

	Context("Receiving a flow with several callbacks registered", func() {
		It("gives each callback its own request bytes", func() {
			var other []sockets.Flow
			socketsMap.AddFlowCallback(func(flow sockets.Flow) {
				flow.Request[0] = 0x00
				other = append(other, flow)
			})

			socketsMap.ProcessConnectEvent(connectEvent())
			socketsMap.ProcessDataEvent(dataEvent(hexDumpToBytes(tlsClientHello), 517))

			Expect(flows).To(HaveLen(1))
			Expect(other).To(HaveLen(1))
			Expect(other[0].Request[0]).To(Equal(byte(0x00)))
			Expect(flows[0].Request[0]).To(Equal(byte(0x16)))
		})
	})
})
