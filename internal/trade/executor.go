// Package trade turns buy/sell signals into paper trades against a
// portfolio's cash balance and trade ledger. There is no exchange
// connectivity; fills are immediate at the evaluated price.
package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stratbox/internal/portfolio"
	"stratbox/internal/sandbox"
	"stratbox/pkg/db"
)

var (
	ErrNoPrice          = errors.New("no price for trade")
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrNothingToSell    = errors.New("no open position to sell")
)

// Executor records paper trades. DefaultFraction is the share of portfolio
// cash a buy spends when the strategy did not name an amount.
type Executor struct {
	db              *db.Database
	log             zerolog.Logger
	DefaultFraction float64
}

func NewExecutor(database *db.Database, log zerolog.Logger) *Executor {
	return &Executor{db: database, log: log, DefaultFraction: 0.1}
}

// Execute fills the signal against the linked portfolio and returns the
// recorded trade. A hold signal is a programming error at this layer.
func (e *Executor) Execute(ctx context.Context, strat db.Strategy, res sandbox.Result, price float64) (*db.Trade, error) {
	if price <= 0 {
		return nil, ErrNoPrice
	}

	pf, err := e.db.GetPortfolio(ctx, strat.PortfolioID)
	if err != nil {
		return nil, fmt.Errorf("load portfolio: %w", err)
	}

	switch res.Signal {
	case sandbox.SignalBuy:
		return e.buy(ctx, strat, pf, res.Amount, price)
	case sandbox.SignalSell:
		return e.sell(ctx, strat, pf, res.Amount, price)
	default:
		return nil, fmt.Errorf("unexpected signal %q", res.Signal)
	}
}

func (e *Executor) buy(ctx context.Context, strat db.Strategy, pf *db.Portfolio, amount, price float64) (*db.Trade, error) {
	qty := amount
	if qty <= 0 {
		// No amount from the strategy: spend the default cash fraction.
		qty = pf.Cash * e.DefaultFraction / price
	}
	// Clamp to available cash.
	if cost := qty * price; cost > pf.Cash {
		qty = pf.Cash / price
	}
	if qty <= 0 {
		return nil, ErrInsufficientCash
	}

	t := e.newTrade(strat, "buy", qty, price)
	if err := e.db.InsertTrade(ctx, t); err != nil {
		return nil, fmt.Errorf("record trade: %w", err)
	}
	if err := e.db.UpdatePortfolioCash(ctx, pf.ID, pf.Cash-t.Total); err != nil {
		return nil, fmt.Errorf("update cash: %w", err)
	}

	e.log.Info().Str("portfolio", pf.ID).Str("symbol", strat.Symbol).
		Float64("qty", qty).Float64("price", price).Msg("paper buy")
	return &t, nil
}

func (e *Executor) sell(ctx context.Context, strat db.Strategy, pf *db.Portfolio, amount, price float64) (*db.Trade, error) {
	trades, err := e.db.CompletedTrades(ctx, pf.ID, strat.Symbol)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	open := portfolio.OpenQuantity(trades)
	if open <= 0 {
		return nil, ErrNothingToSell
	}

	qty := amount
	if qty <= 0 || qty > open {
		qty = open
	}

	t := e.newTrade(strat, "sell", qty, price)
	if err := e.db.InsertTrade(ctx, t); err != nil {
		return nil, fmt.Errorf("record trade: %w", err)
	}
	if err := e.db.UpdatePortfolioCash(ctx, pf.ID, pf.Cash+t.Total); err != nil {
		return nil, fmt.Errorf("update cash: %w", err)
	}

	e.log.Info().Str("portfolio", pf.ID).Str("symbol", strat.Symbol).
		Float64("qty", qty).Float64("price", price).Msg("paper sell")
	return &t, nil
}

func (e *Executor) newTrade(strat db.Strategy, side string, qty, price float64) db.Trade {
	return db.Trade{
		ID:          uuid.NewString(),
		PortfolioID: strat.PortfolioID,
		StrategyID:  strat.ID,
		Symbol:      strat.Symbol,
		Side:        side,
		Quantity:    qty,
		Price:       price,
		Total:       qty * price,
		CreatedAt:   time.Now().UTC(),
	}
}
