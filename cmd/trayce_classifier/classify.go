package main

import (
	"fmt"

	"github.com/evanrolfe/trayce_classifier/internal/logger"
	"github.com/evanrolfe/trayce_classifier/internal/tls"
	"github.com/evanrolfe/trayce_classifier/internal/utils"
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type classifyCmd struct {
	BufLen     int
	SegmentLen int
}

func (c *classifyCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&c.SegmentLen, "segment-len", "s", -1, "length of the enclosing TCP segment (default: length of the bytes given)")
	fs.IntVarP(&c.BufLen, "buf-len", "b", -1, "number of valid bytes (default: length of the bytes given)")
}

func (c *classifyCmd) Run(cmd *cobra.Command, args []string) error {
	lg := logger.FromContext(cmd.Context()).Named("classify")

	buf, err := utils.ParseHex(args[0])
	if err != nil {
		return errors.Wrap(err, "parse bytes")
	}

	bufLen, segmentLen := c.BufLen, c.SegmentLen
	if bufLen < 0 {
		bufLen = len(buf)
	}
	if segmentLen < 0 {
		segmentLen = len(buf)
	}

	if record, ok := tls.ReadRecordHeader(buf); ok {
		lg.Debugf("Record header: content_type=0x%02x version=%s length=%d", record.ContentType, record.Version, record.Length)
		if hello, ok := tls.ReadHelloHeader(buf[min(len(buf), tls.RecordHeaderLen):]); ok && record.ContentType == tls.ContentTypeHandshake {
			lg.Debugf("Hello header: handshake_type=0x%02x length=%d version=%s", hello.HandshakeType, hello.Length, hello.Version)
		}
	}

	verdict := tls.Classify(buf, uint32(bufLen), uint32(segmentLen))
	fmt.Fprintln(cmd.OutOrStdout(), verdict)

	return nil
}
