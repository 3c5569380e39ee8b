// Package notify publishes fire-and-forget notifications about pending work
// and republishes them while that work is still outstanding.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/navid-fn/margincore/internal/storage"
)

// Topic is a pub/sub channel. Every topic is named after the durable
// collection that holds its pending work.
type Topic string

const (
	ContractFill        Topic = storage.FilledOrdersKey
	StopConcluded       Topic = storage.StopConcludedKey
	StopMarketPending   Topic = storage.StopMarketPendingKey
	IsolatedLiquidation Topic = storage.IsolatedPendingKey
	CrossLiquidation    Topic = storage.CrossPendingKey
)

// Event describes one notification. Only Topic reaches pub/sub subscribers;
// the remaining fields are kept for the journal.
type Event struct {
	ID     uuid.UUID `json:"id"`
	Topic  Topic     `json:"topic"`
	Symbol string    `json:"symbol,omitempty"`
	Price  float64   `json:"price,omitempty"`
	IDs    []string  `json:"ids,omitempty"`
	// Replay is set when the event was re-sent by a reconciliation sweep.
	Replay bool      `json:"replay,omitempty"`
	At     time.Time `json:"at"`
}
