// Package portfolio derives open positions from the completed trade ledger.
package portfolio

import (
	"stratbox/internal/sandbox"
	"stratbox/pkg/db"
)

// Replay folds the completed trade ledger (ascending by time) into the net
// open position for asset, priced at currentPrice. A flat or net-short
// ledger yields nil: the engine only models long positions.
func Replay(trades []db.Trade, asset string, currentPrice float64) *sandbox.Position {
	var qty, cost float64
	for _, t := range trades {
		switch t.Side {
		case "buy":
			qty += t.Quantity
			cost += t.Total
		case "sell":
			qty -= t.Quantity
			cost -= t.Total
		}
	}
	if qty <= 0 {
		return nil
	}

	entry := cost / qty
	pos := &sandbox.Position{
		Asset:        asset,
		Quantity:     qty,
		EntryPrice:   entry,
		CurrentPrice: currentPrice,
		PnL:          (currentPrice - entry) * qty,
	}
	if entry != 0 {
		pos.PnLPercent = (currentPrice - entry) / entry * 100
	}
	return pos
}

// OpenQuantity is the net quantity the ledger currently holds, floored at 0.
func OpenQuantity(trades []db.Trade) float64 {
	var qty float64
	for _, t := range trades {
		switch t.Side {
		case "buy":
			qty += t.Quantity
		case "sell":
			qty -= t.Quantity
		}
	}
	if qty < 0 {
		return 0
	}
	return qty
}
