package db

import (
	"context"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	return database
}

func seedUser(t *testing.T, d *Database, id string) {
	t.Helper()
	err := d.CreateUser(context.Background(), User{
		ID: id, Email: id + "@test.local", PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
}

func TestUserRoundTrip(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	seedUser(t, d, "u1")

	u, err := d.GetUserByEmail(ctx, "u1@test.local")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u == nil || u.ID != "u1" {
		t.Fatalf("unexpected user: %+v", u)
	}

	missing, err := d.GetUserByEmail(ctx, "nobody@test.local")
	if err != nil {
		t.Fatalf("GetUserByEmail missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown email, got %+v", missing)
	}
}

func TestStrategyLifecycle(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	seedUser(t, d, "u1")

	s := Strategy{
		ID: "s1", UserID: "u1", Name: "rsi", Symbol: "BTCUSDT",
		Interval: "1m", Source: "function strategy(){}", Parameters: "{}",
		Status: StrategyStopped,
	}
	if err := d.CreateStrategy(ctx, s); err != nil {
		t.Fatalf("CreateStrategy: %v", err)
	}

	t.Run("get", func(t *testing.T) {
		got, err := d.GetStrategy(ctx, "s1")
		if err != nil {
			t.Fatalf("GetStrategy: %v", err)
		}
		if got.Name != "rsi" || got.Status != StrategyStopped {
			t.Fatalf("unexpected strategy: %+v", got)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		if _, err := d.GetStrategy(ctx, "nope"); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("status transitions", func(t *testing.T) {
		if err := d.UpdateStrategyStatus(ctx, "s1", StrategyActive); err != nil {
			t.Fatalf("UpdateStrategyStatus: %v", err)
		}
		actives, err := d.ListStrategiesByStatus(ctx, StrategyActive)
		if err != nil {
			t.Fatalf("ListStrategiesByStatus: %v", err)
		}
		if len(actives) != 1 || actives[0].ID != "s1" {
			t.Fatalf("unexpected actives: %+v", actives)
		}
	})

	t.Run("mark run", func(t *testing.T) {
		if err := d.MarkStrategyRun(ctx, "s1", "Execution error: boom"); err != nil {
			t.Fatalf("MarkStrategyRun: %v", err)
		}
		got, err := d.GetStrategy(ctx, "s1")
		if err != nil {
			t.Fatalf("GetStrategy: %v", err)
		}
		if got.LastRunAt == nil || time.Since(*got.LastRunAt) > time.Minute {
			t.Fatalf("LastRunAt not recorded: %+v", got.LastRunAt)
		}
		if got.ErrorMessage != "Execution error: boom" {
			t.Fatalf("ErrorMessage = %q", got.ErrorMessage)
		}

		// A clean run clears the error message.
		if err := d.MarkStrategyRun(ctx, "s1", ""); err != nil {
			t.Fatalf("MarkStrategyRun clean: %v", err)
		}
		got, _ = d.GetStrategy(ctx, "s1")
		if got.ErrorMessage != "" {
			t.Fatalf("ErrorMessage not cleared: %q", got.ErrorMessage)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := d.DeleteStrategy(ctx, "s1"); err != nil {
			t.Fatalf("DeleteStrategy: %v", err)
		}
		if _, err := d.GetStrategy(ctx, "s1"); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestTradeLedgerOrdering(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	seedUser(t, d, "u1")

	if err := d.CreatePortfolio(ctx, Portfolio{ID: "p1", UserID: "u1", Name: "paper", Cash: 1000}); err != nil {
		t.Fatalf("CreatePortfolio: %v", err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	trades := []Trade{
		{ID: "t1", PortfolioID: "p1", StrategyID: "s1", Symbol: "BTCUSDT", Side: "buy", Quantity: 1, Price: 100, Total: 100, CreatedAt: base},
		{ID: "t2", PortfolioID: "p1", StrategyID: "s1", Symbol: "BTCUSDT", Side: "buy", Quantity: 1, Price: 200, Total: 200, CreatedAt: base.Add(time.Minute)},
		{ID: "t3", PortfolioID: "p1", StrategyID: "s1", Symbol: "ETHUSDT", Side: "buy", Quantity: 5, Price: 10, Total: 50, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, tr := range trades {
		if err := d.InsertTrade(ctx, tr); err != nil {
			t.Fatalf("InsertTrade %s: %v", tr.ID, err)
		}
	}

	got, err := d.CompletedTrades(ctx, "p1", "BTCUSDT")
	if err != nil {
		t.Fatalf("CompletedTrades: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 BTCUSDT trades, got %d", len(got))
	}
	if !got[0].CreatedAt.Before(got[1].CreatedAt) {
		t.Fatalf("trades not ascending: %v then %v", got[0].CreatedAt, got[1].CreatedAt)
	}

	all, err := d.ListTradesByPortfolio(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("ListTradesByPortfolio: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(all))
	}
}

func TestPortfolioCashUpdate(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	seedUser(t, d, "u1")

	if err := d.CreatePortfolio(ctx, Portfolio{ID: "p1", UserID: "u1", Name: "paper", Cash: 1000}); err != nil {
		t.Fatalf("CreatePortfolio: %v", err)
	}
	if err := d.UpdatePortfolioCash(ctx, "p1", 750); err != nil {
		t.Fatalf("UpdatePortfolioCash: %v", err)
	}
	p, err := d.GetPortfolio(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if p.Cash != 750 {
		t.Fatalf("Cash = %v, want 750", p.Cash)
	}
}

func TestExecutionLogs(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	seedUser(t, d, "u1")

	s := Strategy{
		ID: "s1", UserID: "u1", Name: "rsi", Symbol: "BTCUSDT",
		Interval: "1m", Source: "function strategy(){}", Parameters: "{}",
		Status: StrategyStopped,
	}
	if err := d.CreateStrategy(ctx, s); err != nil {
		t.Fatalf("CreateStrategy: %v", err)
	}

	for i := 0; i < 5; i++ {
		err := d.InsertExecutionLog(ctx, ExecutionLog{
			StrategyID: "s1", Level: "info", Message: "signal: hold", Data: "{}",
		})
		if err != nil {
			t.Fatalf("InsertExecutionLog: %v", err)
		}
	}

	logs, err := d.ListExecutionLogs(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("ListExecutionLogs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
}
