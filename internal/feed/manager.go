package feed

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultHealthCheckInterval = 10 * time.Second
	DefaultStartDelay          = 20 * time.Second
	// DefaultMaxUnhealthy is how many consecutive non-open checks a
	// connection survives before it is replaced.
	DefaultMaxUnhealthy = 3
)

// ConnectionState is the health of one stream's connection.
type ConnectionState string

const (
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
	Degraded     ConnectionState = "degraded"
	Stale        ConnectionState = "stale"
	Disconnected ConnectionState = "disconnected"
)

// MessageHandler consumes stream payloads.
type MessageHandler interface {
	Handle(ctx context.Context, s Stream, msg []byte)
}

// CheckHook runs after every health check, e.g. a store probe.
type CheckHook struct {
	Name string
	Run  func(ctx context.Context) error
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Streams             []Stream
	HealthCheckInterval time.Duration
	StartDelay          time.Duration
	MaxUnhealthy        int
	Hooks               []CheckHook
}

// ConnectionStatus is a snapshot of one stream's connection record.
type ConnectionStatus struct {
	Stream        Stream
	State         ConnectionState
	LastHeartbeat time.Time
	Unhealthy     int
}

type connection struct {
	stream        Stream
	transport     Transport
	state         ConnectionState
	lastHeartbeat time.Time
	unhealthy     int
}

// Manager keeps one connection per stream alive, replacing connections
// that go silent or stay unhealthy.
type Manager struct {
	dialer  Dialer
	handler MessageHandler
	cfg     ManagerConfig
	logger  *logrus.Logger
	now     func() time.Time

	mu      sync.Mutex
	conns   map[Stream]*connection
	dialing map[Stream]bool
	wg      sync.WaitGroup
}

// NewManager creates a connection manager.
func NewManager(dialer Dialer, handler MessageHandler, cfg ManagerConfig, logger *logrus.Logger) *Manager {
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if cfg.StartDelay < 0 {
		cfg.StartDelay = 0
	}
	if cfg.MaxUnhealthy <= 0 {
		cfg.MaxUnhealthy = DefaultMaxUnhealthy
	}
	return &Manager{
		dialer:  dialer,
		handler: handler,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		conns:   make(map[Stream]*connection),
		dialing: make(map[Stream]bool),
	}
}

// Run opens every stream, then checks health on the configured interval
// after the start delay. It closes all connections when ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.WithField("streams", len(m.cfg.Streams)).Info("Starting feed manager")
	for _, s := range m.cfg.Streams {
		m.open(ctx, s)
	}

	defer m.shutdown()

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(m.cfg.StartDelay):
	}

	ticker := time.NewTicker(m.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		m.CheckHealth(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// open dials s in the background unless a dial is already in flight.
func (m *Manager) open(ctx context.Context, s Stream) {
	m.mu.Lock()
	if m.dialing[s] {
		m.mu.Unlock()
		return
	}
	m.dialing[s] = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		c := &connection{stream: s, state: Connecting}
		log := m.logger.WithField("stream", s.String())
		cb := Callbacks{
			OnMessage:   func(msg []byte) { m.handler.Handle(ctx, s, msg) },
			OnHeartbeat: func() { m.heartbeat(c) },
			OnClose: func(err error) {
				if err != nil {
					log.WithError(err).Warn("Stream closed")
				}
			},
		}

		t, err := m.dialer.Dial(ctx, s, cb)
		if err != nil {
			m.mu.Lock()
			delete(m.dialing, s)
			m.mu.Unlock()
			log.WithError(err).Error("Failed to open stream")
			return
		}

		var stale Transport
		m.mu.Lock()
		delete(m.dialing, s)
		if ctx.Err() != nil {
			stale = t
		} else {
			c.transport = t
			c.state = Connected
			c.lastHeartbeat = m.now()
			if old := m.conns[s]; old != nil {
				stale = old.transport
			}
			m.conns[s] = c
		}
		m.mu.Unlock()

		if stale != nil {
			closeTransport(stale)
		}
		if c.transport != nil {
			log.Info("Stream connected")
		}
	}()
}

func (m *Manager) heartbeat(c *connection) {
	m.mu.Lock()
	c.lastHeartbeat = m.now()
	m.mu.Unlock()
}

// CheckHealth replaces stale connections, counts non-open ones and reopens
// missing ones, then runs the check hooks.
func (m *Manager) CheckHealth(ctx context.Context) {
	now := m.now()

	var (
		reopen  []Stream
		retired []Transport
	)

	m.mu.Lock()
	for _, s := range m.cfg.Streams {
		if m.dialing[s] {
			continue
		}
		log := m.logger.WithField("stream", s.String())

		c := m.conns[s]
		if c == nil {
			reopen = append(reopen, s)
			continue
		}

		if silent := now.Sub(c.lastHeartbeat); silent > s.Timeout() {
			log.WithField("silent", silent.String()).Warn("Stream stale, reconnecting")
			c.state = Stale
			retired = append(retired, c.transport)
			delete(m.conns, s)
			reopen = append(reopen, s)
			continue
		}

		if st := c.transport.State(); st != StateOpen {
			c.unhealthy++
			log.WithFields(logrus.Fields{"state": st.String(), "count": c.unhealthy}).Warn("Stream not open")
			if c.unhealthy > m.cfg.MaxUnhealthy {
				log.Warn("Stream unhealthy too long, reconnecting")
				c.state = Degraded
				retired = append(retired, c.transport)
				delete(m.conns, s)
				reopen = append(reopen, s)
			}
			continue
		}

		c.unhealthy = 0
		c.state = Connected
	}
	m.mu.Unlock()

	for _, t := range retired {
		closeTransport(t)
	}
	for _, s := range reopen {
		m.open(ctx, s)
	}

	for _, h := range m.cfg.Hooks {
		if err := h.Run(ctx); err != nil {
			m.logger.WithError(err).WithField("hook", h.Name).Error("Health check hook failed")
		}
	}
}

// Status returns the current connection records, one per configured stream.
func (m *Manager) Status() []ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ConnectionStatus, 0, len(m.cfg.Streams))
	for _, s := range m.cfg.Streams {
		st := ConnectionStatus{Stream: s, State: Disconnected}
		if m.dialing[s] {
			st.State = Connecting
		}
		if c := m.conns[s]; c != nil {
			st.State = c.state
			st.LastHeartbeat = c.lastHeartbeat
			st.Unhealthy = c.unhealthy
		}
		out = append(out, st)
	}
	return out
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	var open []Transport
	for s, c := range m.conns {
		open = append(open, c.transport)
		delete(m.conns, s)
	}
	m.mu.Unlock()

	for _, t := range open {
		closeTransport(t)
	}
	m.wg.Wait()
	m.logger.Info("Feed manager stopped")
}

// closeTransport asks for a graceful close, yields once, and terminates
// the transport if it has not finished closing.
func closeTransport(t Transport) {
	_ = t.Close()
	runtime.Gosched()
	if st := t.State(); st == StateOpen || st == StateClosing {
		_ = t.Terminate()
	}
}
