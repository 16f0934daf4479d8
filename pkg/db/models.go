package db

import "time"

// Strategy status values persisted in the strategies table.
const (
	StrategyActive  = "active"
	StrategyPaused  = "paused"
	StrategyStopped = "stopped"
	StrategyError   = "error"
)

// User represents an application user.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Portfolio is a paper-trading account owned by a user.
type Portfolio struct {
	ID        string
	UserID    string
	Name      string
	Cash      float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Strategy is a stored strategy script plus its run configuration.
type Strategy struct {
	ID           string
	UserID       string
	Name         string
	Symbol       string
	Interval     string
	Source       string
	Parameters   string // JSON object, opaque to the engine
	PortfolioID  string
	Status       string
	LastRunAt    *time.Time
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Trade is one completed ledger entry for a portfolio.
type Trade struct {
	ID          string
	PortfolioID string
	StrategyID  string
	Symbol      string
	Side        string // "buy" or "sell"
	Quantity    float64
	Price       float64
	Total       float64
	CreatedAt   time.Time
}

// ExecutionLog is one persisted evaluation event.
type ExecutionLog struct {
	ID         int64
	StrategyID string
	Level      string // info, signal, trade, error
	Message    string
	Data       string // JSON payload
	CreatedAt  time.Time
}
