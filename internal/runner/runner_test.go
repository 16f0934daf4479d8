package runner

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratbox/internal/events"
	"stratbox/internal/monitor"
	"stratbox/internal/sandbox"
	"stratbox/internal/state"
	"stratbox/internal/trade"
	"stratbox/pkg/db"
)

type runnerFixture struct {
	runner    *Runner
	db        *db.Database
	states    *state.Manager
	metrics   *monitor.Metrics
	userID    string
	portfolio string
}

func newRunnerFixture(t *testing.T, candles CandleSource) *runnerFixture {
	t.Helper()

	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.ApplyMigrations(database))

	ctx := context.Background()
	userID := uuid.NewString()
	require.NoError(t, database.CreateUser(ctx, db.User{
		ID: userID, Email: "runner@test.local", PasswordHash: "x",
	}))
	portfolioID := uuid.NewString()
	require.NoError(t, database.CreatePortfolio(ctx, db.Portfolio{
		ID: portfolioID, UserID: userID, Name: "paper", Cash: 10000,
	}))

	states := state.NewManager()
	metrics := monitor.NewMetrics()
	engine := sandbox.NewEngine(zerolog.Nop())
	executor := trade.NewExecutor(database, zerolog.Nop())
	builder := NewContextBuilder(candles, database, 100)

	r := New(database, engine, builder, executor, events.NewBus(), metrics, nil, states, zerolog.Nop())
	return &runnerFixture{
		runner:    r,
		db:        database,
		states:    states,
		metrics:   metrics,
		userID:    userID,
		portfolio: portfolioID,
	}
}

func (f *runnerFixture) createStrategy(t *testing.T, source, portfolioID string) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, f.db.CreateStrategy(context.Background(), db.Strategy{
		ID:          id,
		UserID:      f.userID,
		Name:        "strat-" + id[:8],
		Symbol:      "BTCUSDT",
		Interval:    "1m",
		Source:      source,
		Parameters:  "{}",
		PortfolioID: portfolioID,
		Status:      db.StrategyStopped,
	}))
	return id
}

func TestRunOnceBuySignalExecutesTrade(t *testing.T) {
	f := newRunnerFixture(t, fakeCandles{candles: someCandles()})
	id := f.createStrategy(t,
		`function tradingStrategy(ctx){ return {signal:'buy', amount:1}; }`,
		f.portfolio)

	res, err := f.runner.RunOnce(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, sandbox.SignalBuy, res.Signal)

	trades, err := f.db.ListTradesByPortfolio(context.Background(), f.portfolio, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "buy", trades[0].Side)
	assert.Equal(t, 1.0, trades[0].Quantity)
	assert.Equal(t, 110.0, trades[0].Price)

	p, err := f.db.GetPortfolio(context.Background(), f.portfolio)
	require.NoError(t, err)
	assert.InDelta(t, 10000-110, p.Cash, 1e-9)
}

func TestRunOnceHoldDoesNotTrade(t *testing.T) {
	f := newRunnerFixture(t, fakeCandles{candles: someCandles()})
	id := f.createStrategy(t,
		`function tradingStrategy(ctx){ return {signal:'hold'}; }`,
		f.portfolio)

	res, err := f.runner.RunOnce(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, sandbox.SignalHold, res.Signal)

	trades, err := f.db.ListTradesByPortfolio(context.Background(), f.portfolio, 10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestRunOnceNoMarketData(t *testing.T) {
	f := newRunnerFixture(t, fakeCandles{})
	id := f.createStrategy(t,
		`function tradingStrategy(ctx){ return {signal:'buy'}; }`, "")

	res, err := f.runner.RunOnce(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, sandbox.SignalHold, res.Signal)
	assert.Equal(t, "No data available", res.Reason)
}

func TestRunOnceRecordsFailureState(t *testing.T) {
	f := newRunnerFixture(t, fakeCandles{candles: someCandles()})
	id := f.createStrategy(t,
		`function evaluate(ctx){ throw new Error('boom'); }`, "")

	res, err := f.runner.RunOnce(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, sandbox.SignalHold, res.Signal)
	assert.Equal(t, "Execution error: boom", res.Reason)

	strat, err := f.db.GetStrategy(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, res.Reason, strat.ErrorMessage)
	assert.NotNil(t, strat.LastRunAt)

	eval, ok := f.states.LastEvaluation(id)
	require.True(t, ok)
	assert.Equal(t, res, eval.Result)

	snap := f.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Evaluations)
	assert.Equal(t, uint64(1), snap.Errors)
}

func TestRunOnceUnknownStrategy(t *testing.T) {
	f := newRunnerFixture(t, fakeCandles{candles: someCandles()})

	_, err := f.runner.RunOnce(context.Background(), "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestStartSchedulesActiveStrategies(t *testing.T) {
	f := newRunnerFixture(t, fakeCandles{candles: someCandles()})
	id := f.createStrategy(t,
		`function tradingStrategy(ctx){ return {signal:'hold'}; }`, "")
	require.NoError(t, f.db.UpdateStrategyStatus(context.Background(), id, db.StrategyActive))

	require.NoError(t, f.runner.Start(context.Background()))
	defer f.runner.Stop()

	f.runner.mu.Lock()
	_, scheduled := f.runner.jobs[id]
	f.runner.mu.Unlock()
	assert.True(t, scheduled)
}

func TestStartStrategyActivates(t *testing.T) {
	f := newRunnerFixture(t, fakeCandles{candles: someCandles()})
	id := f.createStrategy(t,
		`function tradingStrategy(ctx){ return {signal:'hold'}; }`, "")

	require.NoError(t, f.runner.Start(context.Background()))
	defer f.runner.Stop()

	require.NoError(t, f.runner.StartStrategy(context.Background(), id))
	strat, err := f.db.GetStrategy(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, db.StrategyActive, strat.Status)

	require.NoError(t, f.runner.StopStrategy(context.Background(), id))
	strat, err = f.db.GetStrategy(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, db.StrategyStopped, strat.Status)

	f.runner.mu.Lock()
	_, scheduled := f.runner.jobs[id]
	f.runner.mu.Unlock()
	assert.False(t, scheduled)
}
