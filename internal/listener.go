package internal

import (
	"context"

	"github.com/evanrolfe/trayce_classifier/internal/events"
	"github.com/evanrolfe/trayce_classifier/internal/logger"
	"github.com/evanrolfe/trayce_classifier/internal/sockets"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// EventSource produces capture events, it is implemented by capture.Reader and events.Stream
type EventSource interface {
	Start(ctx context.Context, outputChan chan<- events.IEvent) error
}

type Listener struct {
	eventSource EventSource
	sockets     *sockets.SocketMap
	recorder    *events.Writer
	lg          *zap.SugaredLogger

	// set by Start, read by the flow callback
	outputChan chan<- sockets.Flow
	done       <-chan struct{}
}

func NewListener(ctx context.Context, eventSource EventSource) *Listener {
	listener := &Listener{
		eventSource: eventSource,
		sockets:     sockets.NewSocketMap(ctx),
		lg:          logger.FromContext(ctx).Named("listener"),
	}
	listener.sockets.AddFlowCallback(listener.sendFlow)

	return listener
}

// Record writes every event the listener receives to recorder, so that it can be replayed later
func (listener *Listener) Record(recorder *events.Writer) {
	listener.recorder = recorder
}

func (listener *Listener) Sockets() *sockets.SocketMap {
	return listener.sockets
}

// Start feeds events from the event source to the socket map and sends the resulting flows to outputChan. It returns
// once the event source is exhausted. Start may be called again once it has returned, sockets are kept between runs.
func (listener *Listener) Start(ctx context.Context, outputChan chan<- sockets.Flow) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	listener.outputChan = outputChan
	listener.done = ctx.Done()

	eventsChan := make(chan events.IEvent, 1000)
	errChan := make(chan error, 1)
	go func() {
		errChan <- listener.eventSource.Start(ctx, eventsChan)
		close(eventsChan)
	}()

	for event := range eventsChan {
		if err := listener.record(event); err != nil {
			return err
		}

		switch ev := event.(type) {
		case *events.ConnectEvent:
			listener.sockets.ProcessConnectEvent(*ev)
		case *events.DataEvent:
			listener.sockets.ProcessDataEvent(*ev)
		case *events.CloseEvent:
			listener.sockets.ProcessCloseEvent(*ev)
		default:
			listener.lg.Warnf("Unexpected event %T for %s", event, event.Key())
		}
	}

	if err := <-errChan; err != nil {
		return errors.Wrap(err, "event source")
	}
	listener.lg.Debugf("Event source done, %d sockets open", listener.sockets.Len())

	return nil
}

func (listener *Listener) sendFlow(flow sockets.Flow) {
	select {
	case listener.outputChan <- flow:
	case <-listener.done:
	}
}

func (listener *Listener) record(event events.IEvent) error {
	if listener.recorder == nil {
		return nil
	}
	encoder, ok := event.(events.Encoder)
	if !ok {
		return nil
	}
	if err := listener.recorder.Write(encoder); err != nil {
		return errors.Wrapf(err, "record event %s", event.Key())
	}
	return nil
}
