// Package dispatcher drains per-symbol trade queues and forwards the
// extremes of each drained batch to the matching engine.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/margincore/internal/storage"
)

// DefaultInterval is the pause between drain cycles.
const DefaultInterval = time.Second

// PriceHandler consumes price events for a symbol.
type PriceHandler interface {
	OnTrade(ctx context.Context, symbol string, price float64) error
}

// Dispatcher owns the trade queue of one symbol.
type Dispatcher struct {
	store    storage.Storage
	handler  PriceHandler
	symbol   string
	interval time.Duration
	logger   *logrus.Logger
}

// New creates a dispatcher for symbol.
func New(store storage.Storage, handler PriceHandler, symbol string, interval time.Duration, logger *logrus.Logger) *Dispatcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Dispatcher{
		store:    store,
		handler:  handler,
		symbol:   symbol,
		interval: interval,
		logger:   logger,
	}
}

// Run drains the queue every interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	log := d.logger.WithField("symbol", d.symbol)
	log.Info("Dispatcher started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Dispatcher stopped")
			return nil
		case <-ticker.C:
			if err := d.Cycle(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("Dispatch cycle failed")
			}
		}
	}
}

// Cycle pops every queued price and emits the batch high, then the batch
// low when it differs. Unparseable entries are dropped.
func (d *Dispatcher) Cycle(ctx context.Context) error {
	high, low, n, drainErr := d.drain(ctx)
	if n == 0 {
		return drainErr
	}

	errs := []error{drainErr}
	if err := d.handler.OnTrade(ctx, d.symbol, high); err != nil {
		errs = append(errs, fmt.Errorf("apply high %v: %w", high, err))
	}
	if low != high {
		if err := d.handler.OnTrade(ctx, d.symbol, low); err != nil {
			errs = append(errs, fmt.Errorf("apply low %v: %w", low, err))
		}
	}
	return errors.Join(errs...)
}

// drain pops until the queue is empty. Prices popped before a store error
// are still returned.
func (d *Dispatcher) drain(ctx context.Context) (high, low float64, n int, err error) {
	key := storage.TradeQueueKey(d.symbol)
	for {
		raw, ok, err := d.store.LPop(ctx, key)
		if err != nil {
			return high, low, n, fmt.Errorf("pop %s: %w", key, err)
		}
		if !ok {
			return high, low, n, nil
		}

		price, perr := strconv.ParseFloat(raw, 64)
		if perr != nil || price <= 0 {
			d.logger.WithFields(logrus.Fields{"symbol": d.symbol, "raw": raw}).Warn("Dropping unparseable trade price")
			continue
		}

		if n == 0 || price > high {
			high = price
		}
		if n == 0 || price < low {
			low = price
		}
		n++
	}
}
