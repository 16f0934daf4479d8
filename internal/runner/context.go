package runner

import (
	"context"
	"encoding/json"
	"errors"

	"stratbox/internal/portfolio"
	"stratbox/internal/sandbox"
	"stratbox/pkg/db"
)

// ErrNoMarketData means the candle source returned nothing; the run is
// reported as a hold without ever invoking the sandbox.
var ErrNoMarketData = errors.New("no market data available")

// CandleSource supplies recent candles oldest-first. May return empty.
type CandleSource interface {
	RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]sandbox.Candle, error)
}

// TradeLedger supplies completed trades ascending by time.
type TradeLedger interface {
	CompletedTrades(ctx context.Context, portfolioID, symbol string) ([]db.Trade, error)
}

// ContextBuilder assembles the per-run execution context from collaborator
// state. The built context is never shared or reused across invocations.
type ContextBuilder struct {
	candles CandleSource
	ledger  TradeLedger
	limit   int
}

func NewContextBuilder(candles CandleSource, ledger TradeLedger, limit int) *ContextBuilder {
	if limit <= 0 {
		limit = 100
	}
	return &ContextBuilder{candles: candles, ledger: ledger, limit: limit}
}

// Build fetches candles, derives the current price, replays the linked
// portfolio's ledger into an open position, and passes strategy parameters
// through untouched.
func (b *ContextBuilder) Build(ctx context.Context, strat db.Strategy) (sandbox.Context, error) {
	candles, err := b.candles.RecentCandles(ctx, strat.Symbol, strat.Interval, b.limit)
	if err != nil {
		return sandbox.Context{}, err
	}
	if len(candles) == 0 {
		return sandbox.Context{}, ErrNoMarketData
	}

	ec := sandbox.Context{
		Candles:      candles,
		CurrentPrice: candles[len(candles)-1].Close,
		Parameters:   parseParameters(strat.Parameters),
	}

	if strat.PortfolioID != "" && b.ledger != nil {
		trades, err := b.ledger.CompletedTrades(ctx, strat.PortfolioID, strat.Symbol)
		if err != nil {
			return sandbox.Context{}, err
		}
		ec.Position = portfolio.Replay(trades, strat.Symbol, ec.CurrentPrice)
	}

	return ec, nil
}

func parseParameters(raw string) map[string]any {
	params := map[string]any{}
	if raw == "" {
		return params
	}
	// Bad JSON degrades to empty parameters rather than failing the run.
	_ = json.Unmarshal([]byte(raw), &params)
	return params
}
