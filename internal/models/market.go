// Package models defines the domain models shared by the matching,
// liquidation and feed packages.
package models

import "errors"

// ErrCorruptRecord marks a stored record that could not be decoded.
// The raw value is always included in the wrapping error.
var ErrCorruptRecord = errors.New("corrupt record")

// Side is one half of a symbol's book.
type Side string

const (
	Bid Side = "bid"
	Ask Side = "ask"
)

// Direction is the direction of a leveraged position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Movement classifies a price change against the last observed price.
type Movement int

const (
	Up Movement = iota
	Down
)

func (m Movement) String() string {
	if m == Down {
		return "down"
	}
	return "up"
}

// Classify returns Down when price fell below last, Up otherwise.
func Classify(last, price float64) Movement {
	if price < last {
		return Down
	}
	return Up
}

// BookSide is the side swept by this movement: a falling price reaches
// resting bids, a rising price reaches resting asks.
func (m Movement) BookSide() Side {
	if m == Down {
		return Bid
	}
	return Ask
}

// ExposedDirection is the position direction that loses on this movement.
func (m Movement) ExposedDirection() Direction {
	if m == Down {
		return Long
	}
	return Short
}
