package internal_test

import (
	"bytes"
	"context"
	"net"

	"github.com/evanrolfe/trayce_classifier/internal"
	"github.com/evanrolfe/trayce_classifier/internal/events"
	"github.com/evanrolfe/trayce_classifier/internal/sockets"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var (
	clientHello = append([]byte{0x16, 0x03, 0x01, 0x00, 0x2a, 0x01, 0x00, 0x00, 0x26, 0x03, 0x03}, bytes.Repeat([]byte{0x01}, 36)...)
	appData     = append([]byte{0x17, 0x03, 0x03, 0x00, 0x10}, bytes.Repeat([]byte{0x7f}, 16)...)
	httpRequest = []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
)

func eventDump(evs ...events.Encoder) *bytes.Buffer {
	dump := new(bytes.Buffer)
	writer := events.NewWriter(dump)
	for _, ev := range evs {
		Expect(writer.Write(ev)).To(Succeed())
	}
	return dump
}

// replaySource sends the same events every time it is started
type replaySource struct {
	events []events.IEvent
}

func (src *replaySource) Start(ctx context.Context, outputChan chan<- events.IEvent) error {
	for _, ev := range src.events {
		select {
		case outputChan <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func runListener(listener *internal.Listener) []sockets.Flow {
	flowsChan := make(chan sockets.Flow, 100)
	Expect(listener.Start(context.Background(), flowsChan)).To(Succeed())
	close(flowsChan)

	flows := []sockets.Flow{}
	for flow := range flowsChan {
		flows = append(flows, flow)
	}
	return flows
}

var _ = Describe("Listener", func() {
	src, dst := net.ParseIP("10.1.0.5"), net.ParseIP("10.1.0.9")

	tlsConnect := events.NewConnectEvent(1, 3, 0, src, 50000, dst, 443)
	tlsHello := events.NewPacketDataEvent(1, 3, 1, "curl", true, clientHello, uint32(len(clientHello)))
	tlsData := events.NewPacketDataEvent(1, 3, 2, "curl", false, appData, uint32(len(appData)))
	tlsClose := events.NewCloseEvent(1, 3, 3)

	httpConnect := events.NewConnectEvent(1, 4, 0, src, 50001, dst, 80)
	httpData := events.NewPacketDataEvent(1, 4, 1, "curl", true, httpRequest, uint32(len(httpRequest)))

	Context("Replaying an event dump", Ordered, func() {
		var listener *internal.Listener
		var flows []sockets.Flow

		BeforeAll(func() {
			dump := eventDump(&tlsConnect, &httpConnect, &tlsHello, &httpData, &tlsData, &tlsClose)
			listener = internal.NewListener(context.Background(), events.NewStream(context.Background(), dump))
			flows = runListener(listener)
		})

		It("returns the TLS flows", func() {
			Expect(flows).To(HaveLen(3))

			Expect(flows[0].L7Protocol).To(Equal(sockets.TLS))
			Expect(flows[0].TLSPhase).To(Equal("handshake"))
			Expect(flows[0].SourceAddr).To(Equal("10.1.0.5:50000"))
			Expect(flows[0].DestAddr).To(Equal("10.1.0.9:443"))

			Expect(flows[2].L7Protocol).To(Equal(sockets.TLS))
			Expect(flows[2].TLSPhase).To(Equal("application_data"))
			Expect(flows[2].TLSVersion).To(Equal("TLS 1.2"))
		})

		It("returns the HTTP flow", func() {
			Expect(flows[1].L7Protocol).To(Equal(sockets.HTTP))
			Expect(flows[1].TLSPhase).To(BeEmpty())
			Expect(flows[1].DestAddr).To(Equal("10.1.0.9:80"))
		})

		It("removes closed sockets", func() {
			Expect(listener.Sockets().Len()).To(Equal(1))
		})
	})

	Context("Recording events", func() {
		It("writes a dump which replays to the same flows", func() {
			recorded := new(bytes.Buffer)

			listener := internal.NewListener(context.Background(), events.NewStream(context.Background(), eventDump(&tlsConnect, &tlsHello, &tlsData)))
			listener.Record(events.NewWriter(recorded))
			flows := runListener(listener)
			Expect(flows).To(HaveLen(2))

			replay := internal.NewListener(context.Background(), events.NewStream(context.Background(), recorded))
			replayed := runListener(replay)
			Expect(replayed).To(HaveLen(2))
			for i := range flows {
				Expect(replayed[i].TLSPhase).To(Equal(flows[i].TLSPhase))
				Expect(replayed[i].Request).To(Equal(flows[i].Request))
			}
		})
	})

	Context("Reading a corrupt event dump", func() {
		It("returns an error", func() {
			dump := eventDump(&tlsConnect)
			dump.Write([]byte{0xff, 0xff, 0xff, 0xff})

			listener := internal.NewListener(context.Background(), events.NewStream(context.Background(), dump))
			err := listener.Start(context.Background(), make(chan sockets.Flow, 10))
			Expect(err).To(HaveOccurred())
		})
	})

	Context("Starting the listener twice", func() {
		It("sends each flow once per run", func() {
			source := &replaySource{events: []events.IEvent{&tlsConnect, &tlsHello, &tlsClose}}
			listener := internal.NewListener(context.Background(), source)

			first := runListener(listener)
			Expect(first).To(HaveLen(1))

			second := runListener(listener)
			Expect(second).To(HaveLen(1))
			Expect(second[0].UUID).NotTo(Equal(first[0].UUID))
		})
	})
})
