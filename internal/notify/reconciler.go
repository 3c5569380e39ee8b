package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/margincore/internal/storage"
)

// pending is a durable collection whose non-empty state means its
// notification is still owed.
type pending struct {
	topic  Topic
	sorted bool
}

var pendingCollections = []pending{
	{topic: StopMarketPending},
	{topic: IsolatedLiquidation},
	{topic: CrossLiquidation},
	{topic: ContractFill, sorted: true},
}

// Reconciler republishes notifications for work that is still pending so a
// subscriber that missed the original publish eventually hears about it.
type Reconciler struct {
	store    storage.Storage
	notifier Notifier
	logger   *logrus.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(store storage.Storage, notifier Notifier, logger *logrus.Logger) *Reconciler {
	return &Reconciler{store: store, notifier: notifier, logger: logger}
}

// Sweep checks every pending collection and republishes the non-empty ones.
// It keeps going after a failure and returns all errors joined.
func (r *Reconciler) Sweep(ctx context.Context) error {
	var errs []error

	for _, p := range pendingCollections {
		var (
			n   int64
			err error
		)
		if p.sorted {
			n, err = r.store.ZCard(ctx, string(p.topic))
		} else {
			n, err = r.store.SCard(ctx, string(p.topic))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("count %s: %w", p.topic, err))
			continue
		}
		if n == 0 {
			continue
		}

		r.logger.WithFields(logrus.Fields{"topic": p.topic, "pending": n}).Debug("Republishing pending work")
		if err := r.notifier.Notify(ctx, Event{Topic: p.topic, Replay: true}); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
