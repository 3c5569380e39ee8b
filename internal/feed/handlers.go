package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/margincore/internal/models"
	"github.com/navid-fn/margincore/internal/storage"
)

// Sweeper republishes outstanding work, see notify.Reconciler.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// HandlerConfig configures Handlers.
type HandlerConfig struct {
	// Symbols are every tracked symbol, trade and ticker-only.
	Symbols []string
	// QuoteAsset splits market names, "btcusdt" becomes "BTC/USDT".
	QuoteAsset string
}

// Handlers writes stream payloads into the store.
type Handlers struct {
	store   storage.Storage
	sweeper Sweeper
	quote   string
	tracked map[string]struct{}
	logger  *logrus.Logger

	mu        sync.Mutex
	lastTrade map[string]string
}

// NewHandlers creates the stream handlers. sweeper may be nil.
func NewHandlers(store storage.Storage, sweeper Sweeper, cfg HandlerConfig, logger *logrus.Logger) *Handlers {
	tracked := make(map[string]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		tracked[strings.ToLower(s)] = struct{}{}
	}
	return &Handlers{
		store:     store,
		sweeper:   sweeper,
		quote:     strings.ToLower(cfg.QuoteAsset),
		tracked:   tracked,
		logger:    logger,
		lastTrade: make(map[string]string),
	}
}

// Handle dispatches msg by stream kind. Failures are logged with the raw
// payload and never stop the stream.
func (h *Handlers) Handle(ctx context.Context, s Stream, msg []byte) {
	var err error
	switch s.Kind {
	case KindTicker:
		err = h.handleTicker(ctx, msg)
	case KindFunding:
		err = h.handleFunding(ctx, msg)
	case KindTrade:
		err = h.handleTrade(ctx, s.Symbol, msg)
	case KindDepth:
		err = h.handleDepth(ctx, s.Symbol, msg)
	}
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"stream": s.String(),
			"raw":    string(msg),
		}).Error("Failed to handle stream message")
	}
}

type tickerMessage struct {
	Symbol      string `json:"s"`
	Open        string `json:"o"`
	Close       string `json:"c"`
	Percent     string `json:"P"`
	High        string `json:"h"`
	Low         string `json:"l"`
	BaseVolume  string `json:"v"`
	QuoteVolume string `json:"q"`
}

type tradeMessage struct {
	Symbol string `json:"s"`
	Price  string `json:"p"`
}

type depthMessage struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

type fundingMessage struct {
	Stream string           `json:"stream"`
	Data   []map[string]any `json:"data"`
}

func (h *Handlers) isTracked(symbol string) bool {
	_, ok := h.tracked[strings.ToLower(symbol)]
	return ok
}

// marketName renders "btcusdt" as "BTC/USDT".
func (h *Handlers) marketName(symbol string) string {
	sym := strings.ToLower(symbol)
	if i := strings.LastIndex(sym, h.quote); h.quote != "" && i > 0 {
		sym = sym[:i] + "/" + sym[i:]
	}
	return strings.ToUpper(sym)
}

// handleTicker stores a snapshot per tracked symbol and publishes them all.
func (h *Handlers) handleTicker(ctx context.Context, msg []byte) error {
	var tickers []tickerMessage
	if err := sonic.Unmarshal(msg, &tickers); err != nil {
		return fmt.Errorf("decode ticker: %w", err)
	}

	var snapshots []models.TickerSnapshot
	for _, t := range tickers {
		if !h.isTracked(t.Symbol) {
			continue
		}
		snap := models.TickerSnapshot{
			Market:      h.marketName(t.Symbol),
			Open:        t.Open,
			Price:       t.Close,
			Percent:     t.Percent,
			High:        t.High,
			Low:         t.Low,
			BaseVolume:  t.BaseVolume,
			QuoteVolume: t.QuoteVolume,
		}
		fields := map[string]string{
			"market":      snap.Market,
			"open":        snap.Open,
			"price":       snap.Price,
			"percent":     snap.Percent,
			"height":      snap.High,
			"low":         snap.Low,
			"baseVolume":  snap.BaseVolume,
			"quoteVolume": snap.QuoteVolume,
		}
		if err := h.store.HSet(ctx, storage.TickerKey(strings.ToLower(t.Symbol)), fields); err != nil {
			return fmt.Errorf("store ticker %s: %w", t.Symbol, err)
		}
		snapshots = append(snapshots, snap)
	}

	if len(snapshots) == 0 {
		return nil
	}
	payload, err := sonic.MarshalString(snapshots)
	if err != nil {
		return fmt.Errorf("encode tickers: %w", err)
	}
	return h.store.Publish(ctx, storage.TickerChannel, payload)
}

// handleFunding keeps the tracked entries of a mark price update.
// Subscription acknowledgements carry no data and are ignored.
func (h *Handlers) handleFunding(ctx context.Context, msg []byte) error {
	var m fundingMessage
	if err := sonic.Unmarshal(msg, &m); err != nil {
		return fmt.Errorf("decode funding: %w", err)
	}
	if m.Data == nil {
		return nil
	}

	kept := make([]map[string]any, 0, len(m.Data))
	for _, entry := range m.Data {
		if sym, _ := entry["s"].(string); h.isTracked(sym) {
			kept = append(kept, entry)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	payload, err := sonic.MarshalString(kept)
	if err != nil {
		return fmt.Errorf("encode funding: %w", err)
	}
	if err := h.store.Set(ctx, storage.FundingKey, payload); err != nil {
		return fmt.Errorf("store funding: %w", err)
	}
	return h.store.Publish(ctx, storage.FundingChannel, payload)
}

// handleTrade queues the print for the symbol's dispatcher. A price equal
// to the previous print queued for the symbol is skipped. Each symbol has a
// single trade reader, so the lock only guards the map.
func (h *Handlers) handleTrade(ctx context.Context, symbol string, msg []byte) error {
	var t tradeMessage
	if err := sonic.Unmarshal(msg, &t); err != nil {
		return fmt.Errorf("decode trade: %w", err)
	}
	price, err := strconv.ParseFloat(t.Price, 64)
	if err != nil || price <= 0 {
		return fmt.Errorf("bad trade price %q", t.Price)
	}
	value := storage.FormatPrice(price)

	h.mu.Lock()
	prev := h.lastTrade[symbol]
	h.mu.Unlock()
	if prev == value {
		return nil
	}

	if err := h.store.RPush(ctx, storage.TradeQueueKey(symbol), value); err != nil {
		return fmt.Errorf("queue trade: %w", err)
	}

	h.mu.Lock()
	h.lastTrade[symbol] = value
	h.mu.Unlock()
	return nil
}

// handleDepth stores the order book snapshot, then republishes any
// outstanding work.
func (h *Handlers) handleDepth(ctx context.Context, symbol string, msg []byte) error {
	var d depthMessage
	if err := sonic.Unmarshal(msg, &d); err != nil {
		return fmt.Errorf("decode depth: %w", err)
	}

	payload, err := sonic.MarshalString(models.OrderBookSnapshot{
		Pair: strings.ToLower(symbol),
		Bids: d.Bids,
		Asks: d.Asks,
	})
	if err != nil {
		return fmt.Errorf("encode depth: %w", err)
	}
	if err := h.store.Set(ctx, storage.OrderBookKey(symbol), payload); err != nil {
		return fmt.Errorf("store depth: %w", err)
	}

	if h.sweeper == nil {
		return nil
	}
	if err := h.sweeper.Sweep(ctx); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return nil
}
