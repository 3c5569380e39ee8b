package storage

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMaxProbeFailures is how many consecutive failed pings are tolerated
// before the client is re-initialised.
const DefaultMaxProbeFailures = 3

// DefaultProbeInterval is used by Run when no interval is given.
const DefaultProbeInterval = 10 * time.Second

// Reconnector is implemented by stores whose client can be rebuilt.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// Prober checks store liveness and rebuilds the client after repeated failures.
type Prober struct {
	store       Storage
	maxFailures int
	logger      *logrus.Logger

	mu       sync.Mutex
	failures int
}

// NewProber creates a prober; maxFailures <= 0 uses DefaultMaxProbeFailures.
func NewProber(store Storage, maxFailures int, logger *logrus.Logger) *Prober {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxProbeFailures
	}
	return &Prober{store: store, maxFailures: maxFailures, logger: logger}
}

// Probe pings the store. Once more than maxFailures pings in a row have
// failed, every further failure triggers a reconnect until a ping succeeds.
func (p *Prober) Probe(ctx context.Context) error {
	err := p.store.Ping(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err == nil {
		if p.failures > 0 {
			p.logger.Info("Store ping recovered")
		}
		p.failures = 0
		return nil
	}

	p.failures++
	p.logger.WithError(err).Warnf("Store ping failed (%d/%d)", p.failures, p.maxFailures)

	if p.failures > p.maxFailures {
		rc, ok := p.store.(Reconnector)
		if !ok {
			return err
		}
		p.logger.Warn("Re-initialising store client")
		if rerr := rc.Reconnect(ctx); rerr != nil {
			p.logger.WithError(rerr).Error("Store reconnect failed")
		}
	}
	return err
}

// Failures returns the current consecutive failure count.
func (p *Prober) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// Run probes the store every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = p.Probe(ctx)
		}
	}
}
