package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// TransportState is the lifecycle state of an open transport.
type TransportState int32

const (
	StateConnecting TransportState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s TransportState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	}
	return "closed"
}

// Transport is a live stream connection.
type Transport interface {
	State() TransportState
	// Close requests a graceful close.
	Close() error
	// Terminate tears the connection down immediately.
	Terminate() error
}

// Callbacks receive transport events. They run on the transport's reader
// goroutine and must not block for long.
type Callbacks struct {
	OnMessage   func(msg []byte)
	OnHeartbeat func()
	OnClose     func(err error)
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, s Stream, cb Callbacks) (Transport, error)
}

const (
	HandshakeTimeout = 10 * time.Second
	WriteTimeout     = 10 * time.Second
)

// WebSocketDialer dials exchange streams with gorilla/websocket.
type WebSocketDialer struct {
	Endpoints Endpoints
	dialer    websocket.Dialer
}

// NewWebSocketDialer creates a dialer for the given endpoints.
func NewWebSocketDialer(ep Endpoints) *WebSocketDialer {
	return &WebSocketDialer{
		Endpoints: ep,
		dialer:    websocket.Dialer{HandshakeTimeout: HandshakeTimeout},
	}
}

// Dial connects, answers server pings, sends the stream's subscription
// and starts reading.
func (d *WebSocketDialer) Dial(ctx context.Context, s Stream, cb Callbacks) (Transport, error) {
	u, err := url.Parse(s.URL(d.Endpoints))
	if err != nil {
		return nil, fmt.Errorf("invalid stream URL for %s: %w", s, err)
	}

	conn, _, err := d.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s, err)
	}

	t := &wsTransport{conn: conn, cb: cb}
	t.state.Store(int32(StateOpen))

	conn.SetPingHandler(func(data string) error {
		if cb.OnHeartbeat != nil {
			cb.OnHeartbeat()
		}
		err := t.writeControl(websocket.PongMessage, []byte(data))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	if sub := s.Subscription(); sub != nil {
		t.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		err := conn.WriteMessage(websocket.TextMessage, sub)
		t.writeMu.Unlock()
		if err != nil {
			_ = t.Terminate()
			return nil, fmt.Errorf("subscribe %s: %w", s, err)
		}
	}

	go t.readLoop()
	return t, nil
}

type wsTransport struct {
	conn    *websocket.Conn
	cb      Callbacks
	state   atomic.Int32
	writeMu sync.Mutex
	once    sync.Once
}

func (t *wsTransport) State() TransportState {
	return TransportState(t.state.Load())
}

func (t *wsTransport) writeControl(kind int, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteControl(kind, data, time.Now().Add(WriteTimeout))
}

func (t *wsTransport) readLoop() {
	for {
		_, msg, err := t.conn.ReadMessage()
		if err != nil {
			t.finish(err)
			return
		}
		if t.cb.OnMessage != nil {
			t.cb.OnMessage(msg)
		}
	}
}

// finish marks the transport closed and releases the socket once.
func (t *wsTransport) finish(err error) {
	t.once.Do(func() {
		t.state.Store(int32(StateClosed))
		_ = t.conn.Close()
		if t.cb.OnClose != nil {
			t.cb.OnClose(err)
		}
	})
}

// Close sends a close frame. The transport reaches StateClosed when the
// peer answers and the reader exits.
func (t *wsTransport) Close() error {
	if !t.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return t.writeControl(websocket.CloseMessage, msg)
}

func (t *wsTransport) Terminate() error {
	t.finish(nil)
	return nil
}
