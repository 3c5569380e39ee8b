package storage

import (
	"fmt"

	"github.com/navid-fn/margincore/internal/models"
)

// Global collections and pub/sub channels. Each pending collection shares
// its name with the channel that announces it.
const (
	FilledOrdersKey      = "contract:limit"
	StopConcludedKey     = "order:stop:conclude"
	StopMarketPendingKey = "order:stop:market"
	IsolatedPendingKey   = "liquidation:isolated:list"
	CrossPendingKey      = "liquidation:cross:list"
	CrossMarginCacheKey  = "positions:margin:cross:pl"
	FundingKey           = "funding"
	TickerChannel        = "ticker:"
	FundingChannel       = "funding"
)

// LimitBookKey is the resting limit book for one side of a symbol.
func LimitBookKey(side models.Side, symbol string) string {
	return fmt.Sprintf("order:limit:%s:%s", side, symbol)
}

// StopBookKey is the resting stop book for one side of a symbol.
func StopBookKey(side models.Side, symbol string) string {
	return fmt.Sprintf("order:stop:%s:%s", side, symbol)
}

// IsolatedBookKey holds isolated positions scored by liquidation price.
func IsolatedBookKey(dir models.Direction, symbol string) string {
	return fmt.Sprintf("liquidation:isolated:%s:%s", dir, symbol)
}

// CrossThresholdKey holds users whose cross position in symbol is near
// liquidation, scored by threshold price. Maintained by order admission.
func CrossThresholdKey(dir models.Direction, symbol string) string {
	return fmt.Sprintf("liquidation:cross:%s:%s", dir, symbol)
}

// RiskCandidatesKey is the per-symbol set of users flagged for a cross check.
func RiskCandidatesKey(symbol string) string {
	return "liquidation:user:list:" + symbol
}

// CrossPositionsKey is a user's list of cross positions.
func CrossPositionsKey(userID string) string {
	return "position_cross_list:" + userID
}

// AvailableBalanceKey is a user's available balance, written by the account service.
func AvailableBalanceKey(userID string) string {
	return "available_balance:" + userID
}

// TradeQueueKey is the raw trade price queue for a symbol.
func TradeQueueKey(symbol string) string {
	return "trade:" + symbol + ":queue"
}

// LastPriceKey is the last observed price for a symbol.
func LastPriceKey(symbol string) string {
	return "trade:" + symbol
}

// TickerKey is the ticker hash for a symbol.
func TickerKey(symbol string) string {
	return "ticker:" + symbol
}

// OrderBookKey is the top-of-book snapshot for a symbol.
func OrderBookKey(symbol string) string {
	return "orderbook:" + symbol
}
