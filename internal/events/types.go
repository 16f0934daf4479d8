package events

// Event enumerates high-level topics inside the service.
type Event string

const (
	EventPriceTick     Event = "price_tick"
	EventEvaluation    Event = "evaluation"
	EventSignal        Event = "strategy_signal"
	EventTradeExecuted Event = "trade_executed"
	EventStrategyLog   Event = "strategy_log"
)

// EvaluationEvent is published after every strategy run.
type EvaluationEvent struct {
	StrategyID string  `json:"strategy_id"`
	Symbol     string  `json:"symbol"`
	Signal     string  `json:"signal"`
	Amount     float64 `json:"amount,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	DurationMs int64   `json:"duration_ms"`
}

// LogEvent mirrors a queued execution-log entry for live subscribers.
type LogEvent struct {
	StrategyID string `json:"strategy_id"`
	Level      string `json:"level"`
	Message    string `json:"message"`
}

// TradeEvent is published when a signal was turned into a ledger trade.
type TradeEvent struct {
	StrategyID  string  `json:"strategy_id"`
	PortfolioID string  `json:"portfolio_id"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	Total       float64 `json:"total"`
}
