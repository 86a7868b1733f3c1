// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tessera-engine/tessera/lib/netutil"
)

// EventKind says what happened to a connection.
type EventKind uint8

const (
	EventConnect EventKind = iota + 1
	EventMessage
	EventDisconnect
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventMessage:
		return "message"
	case EventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is inbound traffic for the server loop.
type Event struct {
	Kind   EventKind
	Number Number

	// Addr is the remote address; set on every event.
	Addr netip.Addr

	// Frame is set for EventMessage.
	Frame Frame
}

// Defaults for HubConfig fields left zero.
const (
	DefaultEventBuffer  = 256
	DefaultReadLimit    = 64 << 10
	DefaultWriteTimeout = 5 * time.Second
)

// HubConfig wires a WebSocketHub.
type HubConfig struct {
	// Outbox receives each accepted connection as a Peer.
	Outbox *Outbox

	// EventBuffer sizes the inbound event channel.
	EventBuffer int

	// ReadLimit caps the size of one inbound message.
	ReadLimit int64

	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// WebSocketHub accepts client connections over websocket.
type WebSocketHub struct {
	outbox       *Outbox
	upgrader     websocket.Upgrader
	events       chan Event
	readLimit    int64
	writeTimeout time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	next   Number
	done   chan struct{}
	closed bool
}

// NewWebSocketHub returns a hub. Mount it as an http.Handler.
func NewWebSocketHub(config HubConfig) *WebSocketHub {
	buffer := config.EventBuffer
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	readLimit := config.ReadLimit
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}
	writeTimeout := config.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHub{
		outbox: config.Outbox,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are game binaries, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		events:       make(chan Event, buffer),
		readLimit:    readLimit,
		writeTimeout: writeTimeout,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Events returns the inbound event stream. The server loop drains it
// once per tick.
func (h *WebSocketHub) Events() <-chan Event {
	return h.events
}

// Close stops delivering events. Reader goroutines blocked on a full
// event channel give up and close their connections.
func (h *WebSocketHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
}

// ServeHTTP upgrades the request and runs the connection's reader
// until it disconnects.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	addr := remoteAddr(r.RemoteAddr)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.readLimit)

	h.mu.Lock()
	number := h.next
	h.next++
	h.mu.Unlock()

	peer := &websocketPeer{conn: conn, writeTimeout: h.writeTimeout}
	h.outbox.Attach(number, peer)
	defer h.outbox.Detach(number)

	logger := h.logger.With("client", int(number), "remote", addr.String())
	logger.Info("client connected")
	if !h.emit(Event{Kind: EventConnect, Number: number, Addr: addr}) {
		return
	}
	// The disconnect event is emitted after Detach so the loop never
	// writes to a connection it has been told is gone.
	defer func() {
		h.outbox.Detach(number)
		h.emit(Event{Kind: EventDisconnect, Number: number, Addr: addr})
	}()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!netutil.IsExpectedCloseError(err) && !peer.isClosed() {
				logger.Warn("client read failed", "error", err)
			} else {
				logger.Info("client disconnected")
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			logger.Debug("ignoring non-binary message")
			continue
		}
		frame, err := DecodeFrame(payload)
		if err != nil {
			logger.Warn("discarding malformed frame", "error", err)
			continue
		}
		if !h.emit(Event{Kind: EventMessage, Number: number, Addr: addr, Frame: frame}) {
			return
		}
	}
}

func (h *WebSocketHub) emit(event Event) bool {
	select {
	case h.events <- event:
		return true
	case <-h.done:
		return false
	}
}

func remoteAddr(hostport string) netip.Addr {
	addrPort, err := netip.ParseAddrPort(hostport)
	if err != nil {
		return netip.Addr{}
	}
	return addrPort.Addr().Unmap()
}

type websocketPeer struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (p *websocketPeer) WriteFrame(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPeerClosed
	}
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close sends a policy-violation close frame carrying reason and then
// closes the connection, which ends the reader loop.
func (p *websocketPeer) Close(reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	deadline := time.Now().Add(p.writeTimeout)
	writeErr := p.conn.WriteControl(websocket.CloseMessage, message, deadline)
	closeErr := p.conn.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

func (p *websocketPeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
