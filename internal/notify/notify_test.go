package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navid-fn/margincore/internal/storage"
	"github.com/navid-fn/margincore/internal/storage/storagetest"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// publishLog wraps a store and remembers every publish.
type publishLog struct {
	storage.Storage
	mu        sync.Mutex
	published []string
	fail      bool
}

func (p *publishLog) Publish(_ context.Context, channel, payload string) error {
	if p.fail {
		return errors.New("store down")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, channel+" "+payload)
	return nil
}

type memJournal struct {
	events []Event
	err    error
}

func (m *memJournal) Record(_ context.Context, ev Event) error {
	m.events = append(m.events, ev)
	return m.err
}

func (m *memJournal) Close() {}

func TestPublisherNotify(t *testing.T) {
	s, _ := storagetest.New(t)
	store := &publishLog{Storage: s}
	journal := &memJournal{}
	p := NewPublisher(store, journal, quietLogger())

	err := p.Notify(context.Background(), Event{Topic: ContractFill, Symbol: "btcusdt", IDs: []string{"A"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"contract:limit {}"}, store.published)
	require.Len(t, journal.events, 1)
	assert.NotEqual(t, uuid.Nil, journal.events[0].ID)
	assert.False(t, journal.events[0].At.IsZero())
	assert.Equal(t, []string{"A"}, journal.events[0].IDs)
}

func TestPublisherJournalFailureIsNotFatal(t *testing.T) {
	s, _ := storagetest.New(t)
	p := NewPublisher(&publishLog{Storage: s}, &memJournal{err: errors.New("broker down")}, quietLogger())

	assert.NoError(t, p.Notify(context.Background(), Event{Topic: CrossLiquidation}))
}

func TestPublisherStoreFailure(t *testing.T) {
	s, _ := storagetest.New(t)
	journal := &memJournal{}
	p := NewPublisher(&publishLog{Storage: s, fail: true}, journal, quietLogger())

	assert.Error(t, p.Notify(context.Background(), Event{Topic: CrossLiquidation}))
	assert.Empty(t, journal.events)
}

func TestReconcilerSweep(t *testing.T) {
	ctx := context.Background()
	s, _ := storagetest.New(t)
	store := &publishLog{Storage: s}
	r := NewReconciler(store, NewPublisher(store, nil, quietLogger()), quietLogger())

	require.NoError(t, r.Sweep(ctx))
	assert.Empty(t, store.published, "nothing pending, nothing republished")

	_, err := s.SAdd(ctx, storage.StopMarketPendingKey, "7")
	require.NoError(t, err)
	require.NoError(t, s.ZAdd(ctx, storage.FilledOrdersKey, 99, "A"))

	require.NoError(t, r.Sweep(ctx))
	assert.ElementsMatch(t, []string{"order:stop:market {}", "contract:limit {}"}, store.published)

	// every sweep republishes while the work is still pending
	require.NoError(t, r.Sweep(ctx))
	assert.Len(t, store.published, 4)
}
