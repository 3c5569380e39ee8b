package liquidation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/margincore/internal/models"
	"github.com/navid-fn/margincore/internal/storage"
)

// liquidateCross rebuilds symbol's risk candidates, then re-evaluates every
// candidate of every tracked symbol. A move in one symbol can tip a user
// whose risk flag was raised by another.
func (e *Engine) liquidateCross(ctx context.Context, symbol string, price float64) ([]string, error) {
	if err := e.rebuildCandidates(ctx, symbol, price); err != nil {
		return nil, err
	}

	symbols := e.trackedWith(symbol)
	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = storage.RiskCandidatesKey(s)
	}
	users, err := e.store.SUnion(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("union risk candidates: %w", err)
	}

	if err := e.pruneMarginCache(ctx, users); err != nil {
		return nil, err
	}

	prices, err := e.observedPrices(ctx, symbols)
	if err != nil {
		return nil, err
	}

	var liquidated []string
	for _, user := range users {
		ok, err := e.evaluateUser(ctx, user, prices)
		if err != nil {
			return liquidated, err
		}
		if ok {
			liquidated = append(liquidated, user)
		}
	}
	return liquidated, nil
}

// rebuildCandidates replaces symbol's candidate set with the users whose
// long threshold is at or above price or whose short threshold is at or below it.
func (e *Engine) rebuildCandidates(ctx context.Context, symbol string, price float64) error {
	longs, err := e.store.ZRangeByScore(ctx, storage.CrossThresholdKey(models.Long, symbol), storage.AtLeast(price))
	if err != nil {
		return fmt.Errorf("scan long thresholds: %w", err)
	}
	shorts, err := e.store.ZRangeByScore(ctx, storage.CrossThresholdKey(models.Short, symbol), storage.AtMost(price))
	if err != nil {
		return fmt.Errorf("scan short thresholds: %w", err)
	}

	key := storage.RiskCandidatesKey(symbol)
	if _, err := e.store.Del(ctx, key); err != nil {
		return fmt.Errorf("clear %s: %w", key, err)
	}
	if _, err := e.store.SAdd(ctx, key, append(longs, shorts...)...); err != nil {
		return fmt.Errorf("fill %s: %w", key, err)
	}
	return nil
}

// pruneMarginCache drops cached deficits of users no longer at risk anywhere.
func (e *Engine) pruneMarginCache(ctx context.Context, users []string) error {
	atRisk := make(map[string]struct{}, len(users))
	for _, u := range users {
		atRisk[u] = struct{}{}
	}

	cached, err := e.store.ZMembers(ctx, storage.CrossMarginCacheKey)
	if err != nil {
		return fmt.Errorf("read margin cache: %w", err)
	}
	for _, u := range cached {
		if _, ok := atRisk[u]; ok {
			continue
		}
		if _, err := e.store.ZRem(ctx, storage.CrossMarginCacheKey, u); err != nil {
			return fmt.Errorf("prune margin cache %s: %w", u, err)
		}
	}
	return nil
}

// observedPrices reads the last observed price of each symbol once per pass.
// Symbols without a usable price are left out.
func (e *Engine) observedPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		raw, ok, err := e.store.Get(ctx, storage.LastPriceKey(s))
		if err != nil {
			return nil, fmt.Errorf("read last price %s: %w", s, err)
		}
		if !ok {
			continue
		}
		p, err := decimal.NewFromString(raw)
		if err != nil {
			e.logger.WithFields(logrus.Fields{"symbol": s, "raw": raw}).Error("Corrupt last price")
			continue
		}
		prices[s] = p
	}
	return prices, nil
}

// evaluateUser refreshes the user's cached deficit and liquidates every
// cross position when margin plus available balance is negative.
// Users with undecodable data are skipped, never liquidated.
func (e *Engine) evaluateUser(ctx context.Context, user string, prices map[string]decimal.Decimal) (bool, error) {
	log := e.logger.WithField("user", user)
	listKey := storage.CrossPositionsKey(user)

	raws, err := e.store.LRange(ctx, listKey)
	if err != nil {
		return false, fmt.Errorf("read cross positions of %s: %w", user, err)
	}

	margin := decimal.Zero
	for _, raw := range raws {
		p, err := models.ParseCrossPosition(raw)
		if err != nil {
			log.WithField("raw", raw).WithError(err).Error("Skipping user with corrupt cross position")
			return false, nil
		}
		price, ok := prices[p.Symbol()]
		if !ok {
			log.WithField("symbol", p.Symbol()).Warn("Skipping user, no observed price for position symbol")
			return false, nil
		}
		h, err := p.Headroom(price, e.cfg.QuoteAsset)
		if err != nil {
			log.WithField("raw", raw).WithError(err).Error("Skipping user with corrupt cross position")
			return false, nil
		}
		margin = margin.Add(h)
	}

	deficit := decimal.Min(margin, decimal.Zero)
	if err := e.store.ZAdd(ctx, storage.CrossMarginCacheKey, deficit.InexactFloat64(), user); err != nil {
		return false, fmt.Errorf("cache margin of %s: %w", user, err)
	}

	balance := decimal.Zero
	raw, ok, err := e.store.Get(ctx, storage.AvailableBalanceKey(user))
	if err != nil {
		return false, fmt.Errorf("read balance of %s: %w", user, err)
	}
	if ok && raw != "" {
		balance, err = decimal.NewFromString(raw)
		if err != nil {
			log.WithField("raw", raw).Error("Skipping user with corrupt available balance")
			return false, nil
		}
	}

	if !margin.Add(balance).IsNegative() {
		return false, nil
	}

	n, err := e.store.Del(ctx, listKey)
	if err != nil {
		return false, fmt.Errorf("clear cross positions of %s: %w", user, err)
	}
	if n == 0 {
		// Already cleared by another pass.
		return false, nil
	}
	if _, err := e.store.SAdd(ctx, storage.CrossPendingKey, user); err != nil {
		return false, fmt.Errorf("mark cross liquidation of %s: %w", user, err)
	}

	log.WithFields(logrus.Fields{"margin": margin.String(), "balance": balance.String()}).Warn("Cross positions liquidated")
	return true, nil
}

// trackedWith returns the tracked symbols, adding symbol if it is missing.
func (e *Engine) trackedWith(symbol string) []string {
	for _, s := range e.cfg.Symbols {
		if s == symbol {
			return e.cfg.Symbols
		}
	}
	return append(append([]string(nil), e.cfg.Symbols...), symbol)
}
