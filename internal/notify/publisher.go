package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/margincore/internal/storage"
)

// emptyPayload is what subscribers receive. Ids are never published because
// delivery is not guaranteed; consumers read the pending collection instead.
const emptyPayload = "{}"

// Notifier announces pending work.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Journal records the full event somewhere durable.
type Journal interface {
	Record(ctx context.Context, ev Event) error
	Close()
}

// Publisher sends notifications over the store's pub/sub and, when a
// journal is configured, records them there too.
type Publisher struct {
	store   storage.Storage
	journal Journal
	logger  *logrus.Logger
	now     func() time.Time
}

// NewPublisher creates a publisher. journal may be nil.
func NewPublisher(store storage.Storage, journal Journal, logger *logrus.Logger) *Publisher {
	return &Publisher{store: store, journal: journal, logger: logger, now: time.Now}
}

// Notify publishes ev. Journal failures are logged and never returned.
func (p *Publisher) Notify(ctx context.Context, ev Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.At.IsZero() {
		ev.At = p.now()
	}

	if err := p.store.Publish(ctx, string(ev.Topic), emptyPayload); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Topic, err)
	}

	if p.journal != nil {
		if err := p.journal.Record(ctx, ev); err != nil {
			p.logger.WithError(err).WithField("topic", ev.Topic).Warn("Failed to journal event")
		}
	}
	return nil
}
