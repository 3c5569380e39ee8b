package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pingStore fails pings while down is set and counts reconnects.
type pingStore struct {
	Storage
	down       bool
	reconnects int
}

func (p *pingStore) Ping(context.Context) error {
	if p.down {
		return errors.New("connection refused")
	}
	return nil
}

func (p *pingStore) Reconnect(context.Context) error {
	p.reconnects++
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestProberReconnectsAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	s := &pingStore{down: true}
	p := NewProber(s, 3, quietLogger())

	for i := 0; i < 3; i++ {
		assert.Error(t, p.Probe(ctx))
	}
	assert.Equal(t, 0, s.reconnects, "no reconnect while within the threshold")

	assert.Error(t, p.Probe(ctx))
	assert.Equal(t, 1, s.reconnects)

	s.down = false
	assert.NoError(t, p.Probe(ctx))
	assert.Equal(t, 0, p.Failures())
}

func TestProberDefaults(t *testing.T) {
	p := NewProber(&pingStore{}, 0, quietLogger())
	assert.Equal(t, DefaultMaxProbeFailures, p.maxFailures)
}

// countingPing counts pings and always fails them.
type countingPing struct {
	Storage
	mu         sync.Mutex
	pings      int
	reconnects int
}

func (c *countingPing) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return errors.New("connection refused")
}

func (c *countingPing) Reconnect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnects++
	return nil
}

func (c *countingPing) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings, c.reconnects
}

func TestProberRunProbesPeriodically(t *testing.T) {
	s := &countingPing{}
	p := NewProber(s, 2, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool {
		_, reconnects := s.counts()
		return reconnects >= 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("prober did not stop")
	}

	pings, _ := s.counts()
	assert.GreaterOrEqual(t, pings, 3)
}
