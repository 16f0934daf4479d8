package sandbox

// Signal is the three-valued trading decision a strategy can emit.
type Signal string

const (
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
	SignalHold Signal = "hold"
)

// Valid reports whether s is one of the three recognized signals.
func (s Signal) Valid() bool {
	return s == SignalBuy || s == SignalSell || s == SignalHold
}

// Candle is a single OHLCV bar. JSON tags double as the property names
// visible to strategy scripts.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Position is the caller's current net holding, with derived P&L.
type Position struct {
	Asset        string  `json:"asset"`
	Quantity     float64 `json:"quantity"`
	EntryPrice   float64 `json:"entryPrice"`
	CurrentPrice float64 `json:"currentPrice"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnlPercent"`
}

// Context is the per-run input handed to the strategy entry point.
// It is built fresh for every invocation and never mutated afterwards.
type Context struct {
	Candles      []Candle       `json:"candles"`
	CurrentPrice float64        `json:"currentPrice"`
	Position     *Position      `json:"position"`
	Parameters   map[string]any `json:"parameters"`
}

// Result is the normalized outcome of one evaluation. Signal is always one
// of buy/sell/hold regardless of what the sandboxed code returned.
type Result struct {
	Signal     Signal             `json:"signal"`
	Amount     float64            `json:"amount,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
	StopLoss   float64            `json:"stopLoss,omitempty"`
	TakeProfit float64            `json:"takeProfit,omitempty"`
}
