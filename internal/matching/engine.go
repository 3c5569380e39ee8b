// Package matching fills resting limit orders and triggers stop orders as
// the traded price of a symbol moves.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/margincore/internal/models"
	"github.com/navid-fn/margincore/internal/notify"
	"github.com/navid-fn/margincore/internal/storage"
)

// Liquidator is run after matching for every applied price move.
type Liquidator interface {
	Check(ctx context.Context, symbol string, price float64, move models.Movement) error
}

// Result lists what one applied price move claimed.
type Result struct {
	// Filled holds limit order ids moved to the filled set.
	Filled []string
	// Triggered holds the stop orders this move concluded.
	Triggered []models.StopOrder
	// MarketPending holds triggered stop-market order ids.
	MarketPending []string
}

// Engine applies price moves to the order books. Each symbol is expected to
// be driven by a single lane; concurrent calls for one symbol are serialized.
type Engine struct {
	store      storage.Storage
	liquidator Liquidator
	notifier   notify.Notifier
	logger     *logrus.Logger
	now        func() time.Time

	mu     sync.Mutex
	prices map[string]*lastPrice
}

type lastPrice struct {
	mu     sync.Mutex
	value  float64
	known  bool
	loaded bool
}

// NewEngine creates a matching engine. liquidator may be nil.
func NewEngine(store storage.Storage, liquidator Liquidator, notifier notify.Notifier, logger *logrus.Logger) *Engine {
	return &Engine{
		store:      store,
		liquidator: liquidator,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
		prices:     make(map[string]*lastPrice),
	}
}

func (e *Engine) record(symbol string) *lastPrice {
	e.mu.Lock()
	defer e.mu.Unlock()
	lp, ok := e.prices[symbol]
	if !ok {
		lp = &lastPrice{}
		e.prices[symbol] = lp
	}
	return lp
}

// LastPrice returns the last price this engine observed for symbol.
func (e *Engine) LastPrice(symbol string) (float64, bool) {
	lp := e.record(symbol)
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.value, lp.known
}

// OnTrade handles one price event. A price equal to the last observed one
// is ignored. The first price ever seen for a symbol only sets the baseline.
// The new price is persisted before matching so liquidation reads it.
func (e *Engine) OnTrade(ctx context.Context, symbol string, price float64) error {
	lp := e.record(symbol)
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if !lp.loaded {
		if err := e.loadLastPrice(ctx, symbol, lp); err != nil {
			return err
		}
	}

	if lp.known && lp.value == price {
		return nil
	}

	prev, hadPrev := lp.value, lp.known
	lp.value, lp.known = price, true

	if err := e.store.Set(ctx, storage.LastPriceKey(symbol), storage.FormatPrice(price)); err != nil {
		e.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to persist last price")
	}

	if !hadPrev {
		e.logger.WithFields(logrus.Fields{"symbol": symbol, "price": price}).Info("Baseline price set")
		return nil
	}

	_, err := e.Apply(ctx, symbol, price, models.Classify(prev, price))
	return err
}

func (e *Engine) loadLastPrice(ctx context.Context, symbol string, lp *lastPrice) error {
	raw, ok, err := e.store.Get(ctx, storage.LastPriceKey(symbol))
	if err != nil {
		return fmt.Errorf("load last price of %s: %w", symbol, err)
	}
	lp.loaded = true
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.logger.WithFields(logrus.Fields{"symbol": symbol, "raw": raw}).Error("Ignoring corrupt stored last price")
		return nil
	}
	lp.value, lp.known = v, true
	return nil
}

// Apply matches limit and stop orders against price for the given movement,
// then runs liquidation. Notifications are sent for everything claimed,
// even when a later step fails.
func (e *Engine) Apply(ctx context.Context, symbol string, price float64, move models.Movement) (res Result, err error) {
	log := e.logger.WithFields(logrus.Fields{"symbol": symbol, "price": price, "move": move.String()})

	defer func() {
		if nerr := e.announce(ctx, symbol, price, res); nerr != nil {
			err = errors.Join(err, nerr)
		}
	}()

	res.Filled, err = e.fillLimits(ctx, symbol, price, move)
	if err != nil {
		return res, err
	}

	res.Triggered, res.MarketPending, err = e.triggerStops(ctx, symbol, price, move)
	if err != nil {
		return res, err
	}

	if len(res.Filled) > 0 || len(res.Triggered) > 0 {
		log.WithFields(logrus.Fields{"filled": len(res.Filled), "triggered": len(res.Triggered)}).Info("Orders matched")
	}

	if e.liquidator != nil {
		if err = e.liquidator.Check(ctx, symbol, price, move); err != nil {
			return res, fmt.Errorf("liquidation: %w", err)
		}
	}
	return res, nil
}

// crossedRange is the score range of resting entries a move reaches.
func crossedRange(price float64, move models.Movement) storage.ScoreRange {
	if move == models.Down {
		return storage.AtLeast(price)
	}
	return storage.AtMost(price)
}

func (e *Engine) fillLimits(ctx context.Context, symbol string, price float64, move models.Movement) ([]string, error) {
	key := storage.LimitBookKey(move.BookSide(), symbol)
	ids, err := e.store.ZRangeByScore(ctx, key, crossedRange(price, move))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", key, err)
	}

	var filled []string
	for _, id := range ids {
		n, err := e.store.ZRem(ctx, key, id)
		if err != nil {
			return filled, fmt.Errorf("remove limit order %s: %w", id, err)
		}
		if n == 0 {
			continue
		}
		if err := e.store.ZAdd(ctx, storage.FilledOrdersKey, price, id); err != nil {
			e.logger.WithError(err).WithField("order", id).Error("Limit order removed but not recorded as filled")
			return filled, fmt.Errorf("record fill of %s: %w", id, err)
		}
		filled = append(filled, id)
	}
	return filled, nil
}

func (e *Engine) triggerStops(ctx context.Context, symbol string, price float64, move models.Movement) ([]models.StopOrder, []string, error) {
	key := storage.StopBookKey(move.BookSide(), symbol)
	raws, err := e.store.ZRangeByScore(ctx, key, crossedRange(price, move))
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", key, err)
	}

	var (
		triggered []models.StopOrder
		market    []string
	)
	for _, raw := range raws {
		order, err := models.ParseStopOrder(raw)
		if err != nil {
			e.logger.WithError(err).WithField("symbol", symbol).Error("Skipping corrupt stop order")
			continue
		}

		n, err := e.store.ZRem(ctx, key, raw)
		if err != nil {
			return triggered, market, fmt.Errorf("remove stop order %s: %w", order.OrderID, err)
		}
		if n == 0 {
			continue
		}
		triggered = append(triggered, order)

		if err := e.store.ZAdd(ctx, storage.StopConcludedKey, float64(e.now().UnixMilli()), order.OrderID); err != nil {
			return triggered, market, fmt.Errorf("conclude stop order %s: %w", order.OrderID, err)
		}

		switch order.Kind {
		case models.KindLimit:
			dest := storage.LimitBookKey(order.DestinationSide(), symbol)
			if err := e.store.ZAdd(ctx, dest, order.TriggerPrice, order.OrderID); err != nil {
				return triggered, market, fmt.Errorf("rest stop-limit order %s: %w", order.OrderID, err)
			}
		case models.KindMarket:
			if _, err := e.store.SAdd(ctx, storage.StopMarketPendingKey, order.OrderID); err != nil {
				return triggered, market, fmt.Errorf("queue stop-market order %s: %w", order.OrderID, err)
			}
			market = append(market, order.OrderID)
		}
	}
	return triggered, market, nil
}

func (e *Engine) announce(ctx context.Context, symbol string, price float64, res Result) error {
	var errs []error
	send := func(topic notify.Topic, ids []string) {
		if len(ids) == 0 {
			return
		}
		ev := notify.Event{Topic: topic, Symbol: symbol, Price: price, IDs: ids}
		if err := e.notifier.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}

	send(notify.ContractFill, res.Filled)

	stops := make([]string, len(res.Triggered))
	for i, o := range res.Triggered {
		stops[i] = o.OrderID
	}
	send(notify.StopConcluded, stops)
	send(notify.StopMarketPending, res.MarketPending)

	return errors.Join(errs...)
}
