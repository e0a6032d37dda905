package capture

import (
	"context"
	"io"
	"net"
	"slices"
	"strconv"

	"github.com/evanrolfe/trayce_classifier/internal/events"
	"github.com/evanrolfe/trayce_classifier/internal/logger"
	"github.com/go-faster/errors"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"go.uber.org/zap"
)

const comm = "pcap"

// Stats counts what the reader did with the packets in a capture
type Stats struct {
	Packets     int
	Segments    int
	Truncated   int
	Connections int
	Skipped     int
}

type conn struct {
	fd     uint32
	client string
	// isn is the sequence number of the client's SYN, only set when synSeen
	isn       uint32
	synSeen   bool
	clientFin bool
	serverFin bool
}

// Reader turns the TCP packets of a capture file into the events produced by the capture layer: a ConnectEvent per
// connection, a DataEvent per segment carrying payload and a CloseEvent once both sides sent FIN or one sent RST.
// Each TCP connection is given its own FD, the PID is always 0.
type Reader struct {
	source packetSource
	first  gopacket.LayerType
	ports  []uint16

	eth     layers.Ethernet
	sll     layers.LinuxSLL
	dot1q   layers.Dot1Q
	ip4     layers.IPv4
	ip6     layers.IPv6
	ip6ext  layers.IPv6ExtensionSkipper
	tcp     layers.TCP
	payload gopacket.Payload
	parsers map[gopacket.LayerType]*gopacket.DecodingLayerParser
	decoded []gopacket.LayerType

	conns  map[string]*conn
	nextFD uint32
	stats  Stats
	lg     *zap.SugaredLogger
}

// NewReader opens a pcap or pcapng capture from r. If ports is not empty only connections with one of those ports on
// either side are reported.
func NewReader(ctx context.Context, r io.Reader, ports []uint16) (*Reader, error) {
	source, err := openSource(r)
	if err != nil {
		return nil, err
	}

	first, err := firstLayer(source.LinkType())
	if err != nil {
		return nil, err
	}

	reader := &Reader{
		source: source,
		first:  first,
		ports:  ports,
		conns:  make(map[string]*conn),
		lg:     logger.FromContext(ctx).Named("capture"),
	}

	reader.parsers = make(map[gopacket.LayerType]*gopacket.DecodingLayerParser)
	for _, layerType := range []gopacket.LayerType{layers.LayerTypeEthernet, layers.LayerTypeLinuxSLL, layers.LayerTypeIPv4, layers.LayerTypeIPv6} {
		parser := gopacket.NewDecodingLayerParser(layerType,
			&reader.eth, &reader.sll, &reader.dot1q, &reader.ip4, &reader.ip6, &reader.ip6ext, &reader.tcp, &reader.payload)
		parser.IgnoreUnsupported = true
		reader.parsers[layerType] = parser
	}

	return reader, nil
}

// Start reads the capture until it ends or ctx is cancelled, sending events to outputChan.
func (reader *Reader) Start(ctx context.Context, outputChan chan<- events.IEvent) error {
	lg := reader.lg

	for {
		data, ci, err := reader.source.ReadPacketData()
		if errors.Is(err, io.EOF) {
			lg.Debugf("End of capture: %+v", reader.stats)
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read packet %d", reader.stats.Packets+1)
		}
		reader.stats.Packets++

		for _, event := range reader.handlePacket(data, ci) {
			select {
			case outputChan <- event:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (reader *Reader) Stats() Stats {
	return reader.stats
}

func (reader *Reader) handlePacket(data []byte, ci gopacket.CaptureInfo) []events.IEvent {
	parser := reader.parserFor(data)
	if parser == nil {
		reader.stats.Skipped++
		return nil
	}

	if err := parser.DecodeLayers(data, &reader.decoded); err != nil {
		reader.lg.Debugf("Packet %d: %v", reader.stats.Packets, err)
		reader.stats.Skipped++
		return nil
	}

	var src, dst net.IP
	var ipHeader []byte
	var total int
	haveIP, haveTCP := false, false
	for _, layerType := range reader.decoded {
		switch layerType {
		case layers.LayerTypeIPv4:
			src, dst = reader.ip4.SrcIP, reader.ip4.DstIP
			total = int(reader.ip4.Length)
			ipHeader = reader.ip4.Contents
			haveIP = true
		case layers.LayerTypeIPv6:
			src, dst = reader.ip6.SrcIP, reader.ip6.DstIP
			// The IPv6 payload length excludes the fixed header only
			total = 40 + int(reader.ip6.Length)
			ipHeader = reader.ip6.Contents
			haveIP = true
		case layers.LayerTypeTCP:
			haveTCP = true
		}
	}
	if !haveIP || !haveTCP {
		reader.stats.Skipped++
		return nil
	}

	tcp := &reader.tcp
	if !reader.wanted(uint16(tcp.SrcPort), uint16(tcp.DstPort)) {
		reader.stats.Skipped++
		return nil
	}

	// The IP length fields describe the packet as it was sent, the captured payload may be shorter. Everything
	// before the TCP payload (IP header, extension headers, TCP header and options) is subtracted.
	segmentLen := 0
	if len(tcp.Payload) > 0 {
		segmentLen = max(total-payloadOffset(ipHeader, tcp.Payload), len(tcp.Payload))
	}

	return reader.handleSegment(src, dst, tcp, segmentLen, uint64(ci.Timestamp.UnixNano()))
}

func (reader *Reader) handleSegment(src net.IP, dst net.IP, tcp *layers.TCP, segmentLen int, ts uint64) []events.IEvent {
	srcAddr := net.JoinHostPort(src.String(), strconv.Itoa(int(tcp.SrcPort)))
	dstAddr := net.JoinHostPort(dst.String(), strconv.Itoa(int(tcp.DstPort)))
	key := connKey(srcAddr, dstAddr)

	out := []events.IEvent{}

	syn := tcp.SYN && !tcp.ACK

	c, exists := reader.conns[key]
	if syn && exists {
		if c.synSeen && c.isn == tcp.Seq {
			// Retransmitted SYN
			return out
		}
		// A new connection reusing the 4-tuple of one that was never closed
		out = append(out, reader.closeConn(key, c, ts))
		exists = false
	}
	if !exists {
		if !tcp.SYN && len(tcp.Payload) == 0 {
			// Nothing to classify on a connection whose start was not captured
			return out
		}
		c = reader.openConn(key, srcAddr)
		if syn {
			c.isn = tcp.Seq
			c.synSeen = true
		}
		connect := events.NewConnectEvent(0, c.fd, ts, src, uint16(tcp.SrcPort), dst, uint16(tcp.DstPort))
		out = append(out, &connect)
	}

	if len(tcp.Payload) > 0 {
		data := events.NewPacketDataEvent(0, c.fd, ts, comm, srcAddr == c.client, tcp.Payload, uint32(segmentLen))
		out = append(out, &data)
		reader.stats.Segments++
		if data.Truncated() {
			reader.stats.Truncated++
		}
	}

	if tcp.FIN {
		if srcAddr == c.client {
			c.clientFin = true
		} else {
			c.serverFin = true
		}
	}
	if tcp.RST || (c.clientFin && c.serverFin) {
		out = append(out, reader.closeConn(key, c, ts))
	}

	return out
}

func (reader *Reader) openConn(key string, client string) *conn {
	reader.nextFD++
	c := &conn{fd: reader.nextFD, client: client}
	reader.conns[key] = c
	reader.stats.Connections++

	return c
}

func (reader *Reader) closeConn(key string, c *conn, ts uint64) events.IEvent {
	delete(reader.conns, key)
	closeEv := events.NewCloseEvent(0, c.fd, ts)

	return &closeEv
}

func (reader *Reader) parserFor(data []byte) *gopacket.DecodingLayerParser {
	first := reader.first
	if first == gopacket.LayerTypeZero {
		if len(data) == 0 {
			return nil
		}
		switch data[0] >> 4 {
		case 4:
			first = layers.LayerTypeIPv4
		case 6:
			first = layers.LayerTypeIPv6
		default:
			return nil
		}
	}

	return reader.parsers[first]
}

func (reader *Reader) wanted(srcPort uint16, dstPort uint16) bool {
	if len(reader.ports) == 0 {
		return true
	}
	return slices.Contains(reader.ports, srcPort) || slices.Contains(reader.ports, dstPort)
}

// payloadOffset is the distance from the start of the IP header to the TCP payload. The decoders only reslice the
// packet buffer, so both slices end at the same place in it and the difference of their capacities is the offset.
func payloadOffset(ipHeader []byte, payload []byte) int {
	return cap(ipHeader) - cap(payload)
}

// connKey is the same for both directions of a connection
func connKey(a string, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
