package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratbox/pkg/db"
)

func buy(qty, price float64) db.Trade {
	return db.Trade{Side: "buy", Quantity: qty, Price: price, Total: qty * price}
}

func sell(qty, price float64) db.Trade {
	return db.Trade{Side: "sell", Quantity: qty, Price: price, Total: qty * price}
}

func TestReplayAveragesEntryPrice(t *testing.T) {
	trades := []db.Trade{buy(1, 100), buy(1, 200)}

	pos := Replay(trades, "BTCUSDT", 180)
	require.NotNil(t, pos)
	assert.Equal(t, "BTCUSDT", pos.Asset)
	assert.Equal(t, 2.0, pos.Quantity)
	assert.Equal(t, 150.0, pos.EntryPrice)
	assert.Equal(t, 180.0, pos.CurrentPrice)
	assert.InDelta(t, 60.0, pos.PnL, 1e-9)
	assert.InDelta(t, 20.0, pos.PnLPercent, 1e-9)
}

func TestReplayFlatLedgerIsNil(t *testing.T) {
	trades := []db.Trade{buy(2, 100), sell(2, 150)}
	assert.Nil(t, Replay(trades, "BTCUSDT", 150))
}

func TestReplayEmptyLedgerIsNil(t *testing.T) {
	assert.Nil(t, Replay(nil, "BTCUSDT", 150))
}

func TestReplayNetShortIsNil(t *testing.T) {
	trades := []db.Trade{buy(1, 100), sell(2, 150)}
	assert.Nil(t, Replay(trades, "BTCUSDT", 150))
}

func TestReplayPartialClose(t *testing.T) {
	trades := []db.Trade{buy(2, 100), sell(1, 150)}

	pos := Replay(trades, "ETHUSDT", 120)
	require.NotNil(t, pos)
	assert.Equal(t, 1.0, pos.Quantity)
	// remaining cost after selling 1 @ 150 is 200-150=50
	assert.Equal(t, 50.0, pos.EntryPrice)
	assert.InDelta(t, 70.0, pos.PnL, 1e-9)
}

func TestOpenQuantityFlooredAtZero(t *testing.T) {
	assert.Equal(t, 0.0, OpenQuantity([]db.Trade{buy(1, 100), sell(3, 100)}))
	assert.Equal(t, 2.0, OpenQuantity([]db.Trade{buy(3, 100), sell(1, 100)}))
}
