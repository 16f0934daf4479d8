package trade

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratbox/internal/sandbox"
	"stratbox/pkg/db"
)

type executorFixture struct {
	executor *Executor
	db       *db.Database
	strat    db.Strategy
}

func newExecutorFixture(t *testing.T, cash float64) *executorFixture {
	t.Helper()

	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.ApplyMigrations(database))

	ctx := context.Background()
	userID := uuid.NewString()
	require.NoError(t, database.CreateUser(ctx, db.User{
		ID: userID, Email: "exec@test.local", PasswordHash: "x",
	}))
	portfolioID := uuid.NewString()
	require.NoError(t, database.CreatePortfolio(ctx, db.Portfolio{
		ID: portfolioID, UserID: userID, Name: "paper", Cash: cash,
	}))

	strat := db.Strategy{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        "exec-test",
		Symbol:      "BTCUSDT",
		Interval:    "1m",
		Source:      "function strategy(){}",
		Parameters:  "{}",
		PortfolioID: portfolioID,
		Status:      db.StrategyStopped,
	}
	require.NoError(t, database.CreateStrategy(ctx, strat))

	return &executorFixture{
		executor: NewExecutor(database, zerolog.Nop()),
		db:       database,
		strat:    strat,
	}
}

func (f *executorFixture) cash(t *testing.T) float64 {
	t.Helper()
	p, err := f.db.GetPortfolio(context.Background(), f.strat.PortfolioID)
	require.NoError(t, err)
	return p.Cash
}

func TestExecuteBuyWithAmount(t *testing.T) {
	f := newExecutorFixture(t, 1000)

	trade, err := f.executor.Execute(context.Background(), f.strat,
		sandbox.Result{Signal: sandbox.SignalBuy, Amount: 2}, 100)
	require.NoError(t, err)
	assert.Equal(t, "buy", trade.Side)
	assert.Equal(t, 2.0, trade.Quantity)
	assert.Equal(t, 200.0, trade.Total)
	assert.InDelta(t, 800, f.cash(t), 1e-9)
}

func TestExecuteBuyDefaultFraction(t *testing.T) {
	f := newExecutorFixture(t, 1000)

	trade, err := f.executor.Execute(context.Background(), f.strat,
		sandbox.Result{Signal: sandbox.SignalBuy}, 100)
	require.NoError(t, err)
	// 10% of cash at price 100
	assert.InDelta(t, 1.0, trade.Quantity, 1e-9)
	assert.InDelta(t, 900, f.cash(t), 1e-9)
}

func TestExecuteBuyClampedToCash(t *testing.T) {
	f := newExecutorFixture(t, 150)

	trade, err := f.executor.Execute(context.Background(), f.strat,
		sandbox.Result{Signal: sandbox.SignalBuy, Amount: 5}, 100)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, trade.Quantity, 1e-9)
	assert.InDelta(t, 0, f.cash(t), 1e-9)
}

func TestExecuteBuyNoCash(t *testing.T) {
	f := newExecutorFixture(t, 0)

	_, err := f.executor.Execute(context.Background(), f.strat,
		sandbox.Result{Signal: sandbox.SignalBuy, Amount: 1}, 100)
	assert.ErrorIs(t, err, ErrInsufficientCash)
}

func TestExecuteSellClosesPosition(t *testing.T) {
	f := newExecutorFixture(t, 1000)
	ctx := context.Background()

	_, err := f.executor.Execute(ctx, f.strat,
		sandbox.Result{Signal: sandbox.SignalBuy, Amount: 2}, 100)
	require.NoError(t, err)

	trade, err := f.executor.Execute(ctx, f.strat,
		sandbox.Result{Signal: sandbox.SignalSell}, 150)
	require.NoError(t, err)
	assert.Equal(t, "sell", trade.Side)
	assert.Equal(t, 2.0, trade.Quantity)
	assert.InDelta(t, 1000-200+300, f.cash(t), 1e-9)
}

func TestExecuteSellClampedToOpenQuantity(t *testing.T) {
	f := newExecutorFixture(t, 1000)
	ctx := context.Background()

	_, err := f.executor.Execute(ctx, f.strat,
		sandbox.Result{Signal: sandbox.SignalBuy, Amount: 1}, 100)
	require.NoError(t, err)

	trade, err := f.executor.Execute(ctx, f.strat,
		sandbox.Result{Signal: sandbox.SignalSell, Amount: 10}, 100)
	require.NoError(t, err)
	assert.Equal(t, 1.0, trade.Quantity)
}

func TestExecuteSellWithoutPosition(t *testing.T) {
	f := newExecutorFixture(t, 1000)

	_, err := f.executor.Execute(context.Background(), f.strat,
		sandbox.Result{Signal: sandbox.SignalSell}, 100)
	assert.ErrorIs(t, err, ErrNothingToSell)
}

func TestExecuteRejectsZeroPrice(t *testing.T) {
	f := newExecutorFixture(t, 1000)

	_, err := f.executor.Execute(context.Background(), f.strat,
		sandbox.Result{Signal: sandbox.SignalBuy, Amount: 1}, 0)
	assert.ErrorIs(t, err, ErrNoPrice)
}
