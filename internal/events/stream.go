package events

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/evanrolfe/trayce_classifier/internal/logger"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// maxRecordSize bounds a single record in an event dump, the largest event is a DataEvent with a full payload.
const maxRecordSize = 1024 + MaxDataSize

var ErrRecordSize = errors.New("event record too large")

// Stream reads an event dump: a sequence of records, each a little-endian uint32 length followed by an encoded event.
type Stream struct {
	r  io.Reader
	lg *zap.SugaredLogger
}

func NewStream(ctx context.Context, r io.Reader) *Stream {
	return &Stream{
		r:  r,
		lg: logger.FromContext(ctx).Named("stream"),
	}
}

// Start decodes events until the reader is exhausted or ctx is cancelled, sending each one to outputChan.
func (stream *Stream) Start(ctx context.Context, outputChan chan<- IEvent) error {
	lg := stream.lg
	count := 0

	for {
		payload, err := stream.readRecord()
		if errors.Is(err, io.EOF) {
			lg.Debugf("End of event dump after %d events", count)
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read record %d", count)
		}
		count++

		event, err := decodeEvent(payload)
		if err != nil {
			return errors.Wrapf(err, "decode record %d", count)
		}
		if event == nil {
			lg.Warnf("Unknown event type %d in record %d, skipping", getEventType(payload), count)
			continue
		}
		if de, ok := event.(*DataEvent); ok && de.IsBlank() {
			lg.Debugf("DataEvent %s received %d bytes [ALL BLANK, DROPPING]", de.Key(), de.DataLen)
			continue
		}

		select {
		case outputChan <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (stream *Stream) readRecord() ([]byte, error) {
	var size uint32
	if err := binary.Read(stream.r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > maxRecordSize {
		return nil, errors.Wrapf(ErrRecordSize, "%d bytes", size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(stream.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return payload, nil
}

func decodeEvent(payload []byte) (IEvent, error) {
	switch getEventType(payload) {
	case kConnectEvent:
		event := ConnectEvent{}
		if err := event.Decode(payload); err != nil {
			return nil, errors.Wrap(err, "connect event")
		}
		return &event, nil
	case kDataEvent:
		event := DataEvent{}
		if err := event.Decode(payload); err != nil {
			return nil, errors.Wrap(err, "data event")
		}
		return &event, nil
	case kCloseEvent:
		event := CloseEvent{}
		if err := event.Decode(payload); err != nil {
			return nil, errors.Wrap(err, "close event")
		}
		return &event, nil
	}

	return nil, nil
}

// Writer produces event dumps readable by Stream. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Write(event Encoder) error {
	payload := event.Encode()

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := binary.Write(w.w, binary.LittleEndian, uint32(len(payload))); err != nil {
		return errors.Wrap(err, "write record length")
	}
	if _, err := w.w.Write(payload); err != nil {
		return errors.Wrap(err, "write record")
	}

	return nil
}
