package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratbox/internal/sandbox"
	"stratbox/pkg/db"
)

func TestPriceCache(t *testing.T) {
	m := NewManager()

	_, ok := m.Price("BTCUSDT")
	assert.False(t, ok)

	m.SetPrice("BTCUSDT", 101.5)
	p, ok := m.Price("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 101.5, p)

	snapshot := m.Prices()
	assert.Equal(t, map[string]float64{"BTCUSDT": 101.5}, snapshot)

	// The snapshot is a copy, not the live map.
	snapshot["BTCUSDT"] = 0
	p, _ = m.Price("BTCUSDT")
	assert.Equal(t, 101.5, p)
}

func TestLoadSeedsEvaluations(t *testing.T) {
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.ApplyMigrations(database))

	ctx := context.Background()
	require.NoError(t, database.CreateUser(ctx, db.User{ID: "u1", Email: "state@test.local", PasswordHash: "x"}))
	require.NoError(t, database.CreateStrategy(ctx, db.Strategy{
		ID: "s1", UserID: "u1", Name: "seeded", Symbol: "BTCUSDT",
		Interval: "1m", Source: "function strategy(){}", Parameters: "{}",
		Status: db.StrategyStopped,
	}))
	require.NoError(t, database.InsertExecutionLog(ctx, db.ExecutionLog{
		StrategyID: "s1", Level: "signal", Message: "signal: buy",
		Data: `{"signal":"buy","amount":0.5}`,
	}))

	m := NewManager()
	require.NoError(t, m.Load(ctx, database))

	eval, ok := m.LastEvaluation("s1")
	require.True(t, ok)
	assert.Equal(t, sandbox.SignalBuy, eval.Result.Signal)
	assert.Equal(t, 0.5, eval.Result.Amount)
	assert.False(t, eval.RanAt.IsZero())
}

func TestLoadSkipsUndecodablePayloads(t *testing.T) {
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.ApplyMigrations(database))

	ctx := context.Background()
	require.NoError(t, database.CreateUser(ctx, db.User{ID: "u1", Email: "state2@test.local", PasswordHash: "x"}))
	require.NoError(t, database.CreateStrategy(ctx, db.Strategy{
		ID: "s1", UserID: "u1", Name: "junk", Symbol: "BTCUSDT",
		Interval: "1m", Source: "function strategy(){}", Parameters: "{}",
		Status: db.StrategyStopped,
	}))
	require.NoError(t, database.InsertExecutionLog(ctx, db.ExecutionLog{
		StrategyID: "s1", Level: "trade", Message: "buy 1 BTCUSDT @ 100",
		Data: `{"side":"buy"}`,
	}))

	m := NewManager()
	require.NoError(t, m.Load(ctx, database))

	_, ok := m.LastEvaluation("s1")
	assert.False(t, ok)
}
