package models

// OrderBookSnapshot is the top-of-book snapshot stored per symbol.
type OrderBookSnapshot struct {
	// Pair is the lower-case symbol, e.g. "btcusdt".
	Pair string `json:"pair"`

	// Bids and Asks are [price, quantity] string pairs as delivered by the
	// exchange, best first.
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// TickerSnapshot is the per-symbol 24h ticker published to subscribers.
type TickerSnapshot struct {
	// Market is the display name, e.g. "BTC/USDT".
	Market      string `json:"market"`
	Open        string `json:"open"`
	Price       string `json:"price"`
	Percent     string `json:"percent"`
	High        string `json:"height"`
	Low         string `json:"low"`
	BaseVolume  string `json:"baseVolume"`
	QuoteVolume string `json:"quoteVolume"`
}
