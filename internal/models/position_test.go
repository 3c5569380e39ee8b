package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCrossPosition(t *testing.T) {
	p, err := ParseCrossPosition(`{"is_long":"Y","base":"USDT","counter":"BTC","quantity":"1000","entrance_price":100,"liquidation_price":"80"}`)
	require.NoError(t, err)

	assert.True(t, p.Long())
	assert.Equal(t, "btcusdt", p.Symbol())
	assert.True(t, p.EntrancePrice.Equal(decimal.NewFromInt(100)))
}

func TestParseCrossPositionCorrupt(t *testing.T) {
	for _, raw := range []string{`not json`, `{"is_long":"Y","quantity":"1"}`} {
		_, err := ParseCrossPosition(raw)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCorruptRecord))
	}
}

func TestHeadroom(t *testing.T) {
	tests := []struct {
		name     string
		position CrossPosition
		price    int64
		expected string
	}{
		{
			name:     "long quote based",
			position: CrossPosition{IsLong: "Y", Base: "USDT", Counter: "BTC", Quantity: decimal.NewFromInt(1000), EntrancePrice: decimal.NewFromInt(100), LiquidationPrice: decimal.NewFromInt(80)},
			price:    90,
			expected: "100", // (90-80) * 1000/100
		},
		{
			name:     "long under water",
			position: CrossPosition{IsLong: "Y", Base: "USDT", Counter: "BTC", Quantity: decimal.NewFromInt(1000), EntrancePrice: decimal.NewFromInt(100), LiquidationPrice: decimal.NewFromInt(80)},
			price:    70,
			expected: "-100",
		},
		{
			name:     "short coin based",
			position: CrossPosition{IsLong: "N", Base: "BTC", Counter: "ETH", Quantity: decimal.NewFromInt(2), EntrancePrice: decimal.NewFromInt(10), LiquidationPrice: decimal.NewFromInt(12)},
			price:    11,
			expected: "2", // (12-11) * 2
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := tt.position.Headroom(decimal.NewFromInt(tt.price), "usdt")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, h.String())
		})
	}
}

func TestHeadroomZeroEntrance(t *testing.T) {
	p := CrossPosition{IsLong: "Y", Base: "USDT", Counter: "BTC", Quantity: decimal.NewFromInt(1)}
	_, err := p.Headroom(decimal.NewFromInt(1), "usdt")
	assert.True(t, errors.Is(err, ErrCorruptRecord))
}
