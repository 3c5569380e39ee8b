package models

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

// CrossPosition is one entry of a user's cross-margin position list.
// Records are written by the order admission service; numeric fields may
// arrive as JSON strings or numbers.
type CrossPosition struct {
	IsLong           string          `json:"is_long"` // "Y" or "N"
	Base             string          `json:"base"`
	Counter          string          `json:"counter"`
	Quantity         decimal.Decimal `json:"quantity"`
	EntrancePrice    decimal.Decimal `json:"entrance_price"`
	LiquidationPrice decimal.Decimal `json:"liquidation_price"`
}

// ParseCrossPosition decodes a stored cross position.
func ParseCrossPosition(raw string) (CrossPosition, error) {
	var p CrossPosition
	if err := sonic.UnmarshalString(raw, &p); err != nil {
		return CrossPosition{}, fmt.Errorf("%w: cross position %q: %v", ErrCorruptRecord, raw, err)
	}
	if p.Base == "" || p.Counter == "" {
		return CrossPosition{}, fmt.Errorf("%w: cross position %q: missing asset", ErrCorruptRecord, raw)
	}
	return p, nil
}

// Long reports whether this is a long position.
func (p CrossPosition) Long() bool {
	return p.IsLong == "Y"
}

// Symbol is the traded pair, e.g. counter "BTC" and base "USDT" give "btcusdt".
func (p CrossPosition) Symbol() string {
	return strings.ToLower(p.Counter) + strings.ToLower(p.Base)
}

// Headroom is the signed distance to liquidation scaled by exposure.
// Negative headroom means the position is past its liquidation price.
// Positions whose base asset is the quote currency hold their quantity in
// quote units and are converted with the entry price.
func (p CrossPosition) Headroom(price decimal.Decimal, quoteAsset string) (decimal.Decimal, error) {
	qty := p.Quantity
	if strings.EqualFold(p.Base, quoteAsset) {
		if p.EntrancePrice.IsZero() {
			return decimal.Zero, fmt.Errorf("%w: cross position with zero entrance price", ErrCorruptRecord)
		}
		qty = p.Quantity.Div(p.EntrancePrice)
	}

	if p.Long() {
		return price.Sub(p.LiquidationPrice).Mul(qty), nil
	}
	return p.LiquidationPrice.Sub(price).Mul(qty), nil
}
