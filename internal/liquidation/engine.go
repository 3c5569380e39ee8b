// Package liquidation detects and executes isolated and cross-margin
// liquidations as prices move.
package liquidation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/navid-fn/margincore/internal/models"
	"github.com/navid-fn/margincore/internal/notify"
	"github.com/navid-fn/margincore/internal/storage"
)

// DefaultCrossInterval is the minimum spacing between cross-margin passes
// for one symbol.
const DefaultCrossInterval = 3 * time.Second

// Config holds liquidation settings.
type Config struct {
	// Symbols are all tracked symbols. Cross checks union risk candidates
	// and read observed prices across every one of them.
	Symbols []string

	// QuoteAsset is the funding currency, e.g. "usdt".
	QuoteAsset string

	// CrossInterval throttles cross-margin passes per symbol.
	CrossInterval time.Duration
}

// Result lists what a Check liquidated.
type Result struct {
	// Isolated holds removed isolated position ids.
	Isolated []string
	// Cross holds user ids whose cross positions were cleared.
	Cross []string
	// CrossChecked is false when the cross pass was throttled.
	CrossChecked bool
}

// Engine evaluates liquidations for price events.
type Engine struct {
	store    storage.Storage
	notifier notify.Notifier
	logger   *logrus.Logger
	cfg      Config
	now      func() time.Time

	mu        sync.Mutex
	throttles map[string]*rate.Limiter
}

// NewEngine creates a liquidation engine.
func NewEngine(store storage.Storage, notifier notify.Notifier, cfg Config, logger *logrus.Logger) *Engine {
	if cfg.CrossInterval <= 0 {
		cfg.CrossInterval = DefaultCrossInterval
	}
	return &Engine{
		store:     store,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		throttles: make(map[string]*rate.Limiter),
	}
}

// Check runs isolated liquidation for the exposed direction, then a cross
// pass unless one already ran for symbol within the throttle window.
func (e *Engine) Check(ctx context.Context, symbol string, price float64, move models.Movement) error {
	_, err := e.Evaluate(ctx, symbol, price, move)
	return err
}

// Evaluate is Check returning what was liquidated.
func (e *Engine) Evaluate(ctx context.Context, symbol string, price float64, move models.Movement) (Result, error) {
	var (
		res  Result
		errs []error
	)

	isolated, err := e.liquidateIsolated(ctx, symbol, price, move)
	res.Isolated = isolated
	if err != nil {
		errs = append(errs, err)
	}

	if err == nil && e.allowCross(symbol) {
		res.CrossChecked = true
		cross, err := e.liquidateCross(ctx, symbol, price)
		res.Cross = cross
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(res.Isolated) > 0 {
		ev := notify.Event{Topic: notify.IsolatedLiquidation, Symbol: symbol, Price: price, IDs: res.Isolated}
		if err := e.notifier.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(res.Cross) > 0 {
		ev := notify.Event{Topic: notify.CrossLiquidation, Symbol: symbol, Price: price, IDs: res.Cross}
		if err := e.notifier.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}

	return res, errors.Join(errs...)
}

func (e *Engine) allowCross(symbol string) bool {
	e.mu.Lock()
	lim, ok := e.throttles[symbol]
	if !ok {
		lim = rate.NewLimiter(rate.Every(e.cfg.CrossInterval), 1)
		e.throttles[symbol] = lim
	}
	e.mu.Unlock()

	return lim.AllowN(e.now(), 1)
}

// liquidateIsolated removes every isolated position of the exposed
// direction whose liquidation price the move has crossed.
func (e *Engine) liquidateIsolated(ctx context.Context, symbol string, price float64, move models.Movement) ([]string, error) {
	key := storage.IsolatedBookKey(move.ExposedDirection(), symbol)

	r := storage.AtMost(price)
	if move == models.Down {
		r = storage.AtLeast(price)
	}

	ids, err := e.store.ZRangeByScore(ctx, key, r)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", key, err)
	}

	var removed []string
	for _, id := range ids {
		n, err := e.store.ZRem(ctx, key, id)
		if err != nil {
			return removed, fmt.Errorf("remove isolated position %s: %w", id, err)
		}
		if n == 0 {
			continue
		}
		if _, err := e.store.SAdd(ctx, storage.IsolatedPendingKey, id); err != nil {
			return removed, fmt.Errorf("mark isolated position %s: %w", id, err)
		}
		removed = append(removed, id)
	}

	if len(removed) > 0 {
		e.logger.WithFields(logrus.Fields{"symbol": symbol, "price": price, "positions": removed}).Info("Isolated positions liquidated")
	}
	return removed, nil
}
