package models

import (
	"fmt"
	"strconv"
	"strings"
)

// OrderKind is what a stop order becomes once triggered.
type OrderKind string

const (
	KindLimit  OrderKind = "limit"
	KindMarket OrderKind = "market"
)

// StopOrder is a resting stop entry. In the store it is a sorted-set member
// of the form "id:price:long|short:open|close:limit|market", scored by its
// trigger price.
type StopOrder struct {
	OrderID      string
	TriggerPrice float64
	Long         bool
	Open         bool
	Kind         OrderKind
}

// ParseStopOrder decodes a stored stop entry.
func ParseStopOrder(raw string) (StopOrder, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 5 || parts[0] == "" {
		return StopOrder{}, fmt.Errorf("%w: stop order %q", ErrCorruptRecord, raw)
	}

	price, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return StopOrder{}, fmt.Errorf("%w: stop order %q: bad price", ErrCorruptRecord, raw)
	}

	var so StopOrder
	so.OrderID = parts[0]
	so.TriggerPrice = price

	switch parts[2] {
	case string(Long):
		so.Long = true
	case string(Short):
	default:
		return StopOrder{}, fmt.Errorf("%w: stop order %q: bad direction", ErrCorruptRecord, raw)
	}

	switch parts[3] {
	case "open":
		so.Open = true
	case "close":
	default:
		return StopOrder{}, fmt.Errorf("%w: stop order %q: bad open/close flag", ErrCorruptRecord, raw)
	}

	switch OrderKind(parts[4]) {
	case KindLimit, KindMarket:
		so.Kind = OrderKind(parts[4])
	default:
		return StopOrder{}, fmt.Errorf("%w: stop order %q: bad kind", ErrCorruptRecord, raw)
	}

	return so, nil
}

// String formats the entry in its stored form.
func (s StopOrder) String() string {
	dir := Short
	if s.Long {
		dir = Long
	}
	oc := "close"
	if s.Open {
		oc = "open"
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s",
		s.OrderID, strconv.FormatFloat(s.TriggerPrice, 'f', -1, 64), dir, oc, s.Kind)
}

// DestinationSide is the limit book a triggered limit stop rests in.
// Long-open and short-close orders buy, so they rest on the bid side.
func (s StopOrder) DestinationSide() Side {
	if (s.Long && s.Open) || (!s.Long && !s.Open) {
		return Bid
	}
	return Ask
}
