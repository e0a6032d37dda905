package capture

import (
	"bufio"
	"bytes"
	"io"

	"github.com/go-faster/errors"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// packetSource is satisfied by both the pcap and pcapng readers of pcapgo
type packetSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// openSource returns a reader for either a classic pcap file or a pcapng file, based on the magic at the start of r.
func openSource(r io.Reader) (packetSource, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return nil, errors.Wrap(err, "read capture file header")
	}

	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, errors.Wrap(err, "open pcapng")
		}
		return ng, nil
	}

	pcap, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, errors.Wrap(err, "open pcap")
	}
	return pcap, nil
}

// firstLayer maps a link type to the layer the decoder starts from
func firstLayer(linkType layers.LinkType) (gopacket.LayerType, error) {
	switch linkType {
	case layers.LinkTypeEthernet:
		return layers.LayerTypeEthernet, nil
	case layers.LinkTypeLinuxSLL:
		return layers.LayerTypeLinuxSLL, nil
	case layers.LinkTypeIPv4:
		return layers.LayerTypeIPv4, nil
	case layers.LinkTypeIPv6:
		return layers.LayerTypeIPv6, nil
	case layers.LinkTypeRaw:
		// Raw captures carry either IP version, decided per packet
		return gopacket.LayerTypeZero, nil
	}

	return gopacket.LayerTypeZero, errors.Errorf("unsupported link type %s", linkType)
}
