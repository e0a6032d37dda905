package sockets

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/evanrolfe/trayce_classifier/internal/events"
	"github.com/evanrolfe/trayce_classifier/internal/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SocketMap tracks sockets which have been observed by the capture layer. Unknown sockets are classified on their
// first data events, once a protocol is detected the socket is replaced by one for that protocol and never
// classified from scratch again.
type SocketMap struct {
	mu            sync.Mutex
	sockets       map[string]SocketI
	flowCallbacks []func(Flow)
	lg            *zap.SugaredLogger
}

func NewSocketMap(ctx context.Context) *SocketMap {
	m := SocketMap{
		sockets: make(map[string]SocketI),
		lg:      logger.FromContext(ctx).Named("sockets"),
	}
	return &m
}

func (m *SocketMap) AddFlowCallback(callback func(Flow)) {
	m.flowCallbacks = append(m.flowCallbacks, callback)
}

func (m *SocketMap) ProcessConnectEvent(event events.ConnectEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.getSocket(event.Key()); exists {
		m.lg.Debugf("Connect - found socket for: %s", event.Key())
		return
	}

	m.lg.Debugf("Connect - creating socket for: %s %s->%s", event.Key(), event.SourceAddr(), event.DestAddr())
	socket := NewSocketUnknown(&event, m.lg)
	m.setSocket(&socket)
}

func (m *SocketMap) ProcessDataEvent(event events.DataEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lg.Desugar().Core().Enabled(zapcore.DebugLevel) {
		m.lg.Debugf("DataEvent %s received %d bytes (segment %d), source: %s\n%s",
			event.Key(), event.DataLen, event.SegmentLength(), event.Source(), hex.Dump(event.PayloadTrimmed(64)))
	}

	socket := m.getOrCreateSocket(event)

	// If the socket is unknown, try to detect the protocol, if there is no detection then drop the event
	// but if detected then convert it to the protocol socket
	unknownSocket, isUnknown := socket.(*SocketUnknown)
	if isUnknown {
		if unknownSocket.Exhausted() {
			return
		}

		detection := unknownSocket.Detect(&event)
		m.lg.Debugf("Socket %s detected protocol: %s", event.Key(), detection.Protocol)

		switch detection.Protocol {
		case Unknown:
			if unknownSocket.Exhausted() {
				m.lg.Debugf("Socket %s no protocol after %d events, giving up", event.Key(), maxDetectAttempts)
			}
			return
		case TLS:
			newSocket := NewSocketTLSFromUnknown(unknownSocket)
			m.setSocket(&newSocket)
			socket = &newSocket
		default:
			newSocket := NewSocketCommonFromUnknown(unknownSocket, detection.Protocol)
			m.setSocket(&newSocket)
			socket = &newSocket
		}
	}

	socket.ProcessDataEvent(&event)
}

func (m *SocketMap) ProcessCloseEvent(event events.CloseEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.getSocket(event.Key()); exists {
		m.lg.Debugf("CloseEvent - deleting socket for: %s", event.Key())
		delete(m.sockets, event.Key())
	}
}

// Get returns the socket tracked under key
func (m *SocketMap) Get(key string) (SocketI, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.getSocket(key)
}

func (m *SocketMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sockets)
}

func (m *SocketMap) getSocket(key string) (SocketI, bool) {
	socket, exists := m.sockets[key]
	return socket, exists
}

// getOrCreateSocket returns the socket for the event, if the connect was never seen (i.e. the capture started
// mid-connection) a socket without addresses is created because thats better than nothing.
func (m *SocketMap) getOrCreateSocket(event events.DataEvent) SocketI {
	if socket, exists := m.getSocket(event.Key()); exists {
		return socket
	}

	m.lg.Debugf("Data - creating socket without connect for: %s", event.Key())
	socket := NewSocketUnknownFromData(&event, m.lg)
	m.setSocket(&socket)

	return &socket
}

func (m *SocketMap) setSocket(socket SocketI) {
	// Each callback gets its own copy of the request bytes
	socket.AddFlowCallback(func(flow Flow) {
		for _, callback := range m.flowCallbacks {
			callback(flow.Clone())
		}
	})

	m.sockets[socket.Key()] = socket
}
