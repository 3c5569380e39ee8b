// Package feed keeps the exchange market-data streams connected and writes
// what they deliver into the shared store.
package feed

import (
	"fmt"
	"strings"
	"time"
)

// StreamKind identifies the payload a stream carries.
type StreamKind string

const (
	KindTicker  StreamKind = "ticker"
	KindFunding StreamKind = "funding"
	KindTrade   StreamKind = "trade"
	KindDepth   StreamKind = "depth"
)

const (
	// StreamTimeout is how long a stream may go without a heartbeat.
	StreamTimeout = 5 * time.Minute
	// FundingTimeout applies to the futures funding stream.
	FundingTimeout = 8 * time.Minute
)

// Stream is one exchange subscription. Symbol is empty for the market-wide
// ticker and funding streams.
type Stream struct {
	Kind   StreamKind
	Symbol string
}

func (s Stream) String() string {
	if s.Symbol == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.Symbol
}

// Timeout is the maximum heartbeat silence before the stream is stale.
func (s Stream) Timeout() time.Duration {
	if s.Kind == KindFunding {
		return FundingTimeout
	}
	return StreamTimeout
}

// Endpoints are the exchange base URLs.
type Endpoints struct {
	// Spot serves raw single streams, e.g. wss://stream.binance.com:9443/ws.
	Spot string
	// Futures serves combined streams, e.g. wss://fstream.binance.com/stream.
	Futures string
}

// URL returns the address to dial for s.
func (s Stream) URL(ep Endpoints) string {
	spot := strings.TrimRight(ep.Spot, "/")
	switch s.Kind {
	case KindTicker:
		return spot + "/!ticker@arr"
	case KindTrade:
		return fmt.Sprintf("%s/%s@trade", spot, s.Symbol)
	case KindDepth:
		return fmt.Sprintf("%s/%s@depth20@1000ms", spot, s.Symbol)
	case KindFunding:
		return ep.Futures
	}
	return ""
}

// Subscription is the message sent right after the stream opens, or nil
// when the URL already selects the data.
func (s Stream) Subscription() []byte {
	if s.Kind == KindFunding {
		return []byte(`{"method":"SUBSCRIBE","params":["!markPrice@arr"],"id":1}`)
	}
	return nil
}

// Streams lists every stream to keep open: the shared ticker and funding
// streams, then a trade and a depth stream per trade symbol.
func Streams(symbols []string) []Stream {
	out := []Stream{{Kind: KindTicker}, {Kind: KindFunding}}
	for _, sym := range symbols {
		out = append(out, Stream{Kind: KindTrade, Symbol: sym}, Stream{Kind: KindDepth, Symbol: sym})
	}
	return out
}
