package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStopOrder(t *testing.T) {
	so, err := ParseStopOrder("42:50.5:long:open:limit")
	require.NoError(t, err)

	assert.Equal(t, StopOrder{OrderID: "42", TriggerPrice: 50.5, Long: true, Open: true, Kind: KindLimit}, so)
	assert.Equal(t, "42:50.5:long:open:limit", so.String())
}

func TestParseStopOrderCorrupt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"too few parts", "42:50:long:open"},
		{"too many parts", "42:50:long:open:limit:x"},
		{"missing id", ":50:long:open:limit"},
		{"bad price", "42:abc:long:open:limit"},
		{"bad direction", "42:50:up:open:limit"},
		{"bad open flag", "42:50:long:maybe:limit"},
		{"bad kind", "42:50:long:open:iceberg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStopOrder(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorruptRecord))
		})
	}
}

func TestDestinationSide(t *testing.T) {
	tests := []struct {
		long, open bool
		expected   Side
	}{
		{true, true, Bid},
		{false, false, Bid},
		{true, false, Ask},
		{false, true, Ask},
	}

	for _, tt := range tests {
		so := StopOrder{OrderID: "1", TriggerPrice: 50, Long: tt.long, Open: tt.open, Kind: KindLimit}
		t.Run(so.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, so.DestinationSide())
		})
	}
}

func TestMovement(t *testing.T) {
	assert.Equal(t, Down, Classify(100, 99))
	assert.Equal(t, Up, Classify(100, 101))
	assert.Equal(t, Bid, Down.BookSide())
	assert.Equal(t, Ask, Up.BookSide())
	assert.Equal(t, Long, Down.ExposedDirection())
	assert.Equal(t, Short, Up.ExposedDirection())
	assert.Equal(t, "down", Down.String())
}
