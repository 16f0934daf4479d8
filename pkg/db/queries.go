// Package db provides the SQLite persistence layer: users, portfolios,
// strategy scripts, the trade ledger and execution logs.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("record not found")

// ----------------------------------------
// User queries
// ----------------------------------------

func (d *Database) CreateUser(ctx context.Context, u User) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	return err
}

// GetUserByEmail returns nil (not an error) when no user matches.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := d.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// ----------------------------------------
// Portfolio queries
// ----------------------------------------

func (d *Database) CreatePortfolio(ctx context.Context, p Portfolio) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO portfolios (id, user_id, name, cash)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.UserID, p.Name, p.Cash)
	return err
}

func (d *Database) GetPortfolio(ctx context.Context, id string) (*Portfolio, error) {
	var p Portfolio
	err := d.DB.QueryRowContext(ctx, `
		SELECT id, user_id, name, cash, created_at, updated_at
		FROM portfolios WHERE id = ?
	`, id).Scan(&p.ID, &p.UserID, &p.Name, &p.Cash, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query portfolio: %w", err)
	}
	return &p, nil
}

func (d *Database) ListPortfoliosByUser(ctx context.Context, userID string) ([]Portfolio, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, user_id, name, cash, created_at, updated_at
		FROM portfolios WHERE user_id = ? ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query portfolios: %w", err)
	}
	defer rows.Close()

	var out []Portfolio
	for rows.Next() {
		var p Portfolio
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Cash, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *Database) UpdatePortfolioCash(ctx context.Context, id string, cash float64) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE portfolios SET cash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, cash, id)
	return err
}

// ----------------------------------------
// Strategy queries
// ----------------------------------------

const strategyColumns = `id, user_id, name, symbol, interval, source, parameters,
	COALESCE(portfolio_id, ''), status, last_run_at, COALESCE(error_message, ''),
	created_at, updated_at`

func scanStrategy(row interface{ Scan(...any) error }) (Strategy, error) {
	var s Strategy
	var portfolioID, errMsg string
	var lastRun sql.NullTime
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Symbol, &s.Interval, &s.Source,
		&s.Parameters, &portfolioID, &s.Status, &lastRun, &errMsg, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Strategy{}, err
	}
	s.PortfolioID = portfolioID
	s.ErrorMessage = errMsg
	if lastRun.Valid {
		t := lastRun.Time
		s.LastRunAt = &t
	}
	return s, nil
}

func (d *Database) CreateStrategy(ctx context.Context, s Strategy) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO strategies (id, user_id, name, symbol, interval, source, parameters, portfolio_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?)
	`, s.ID, s.UserID, s.Name, s.Symbol, s.Interval, s.Source, s.Parameters, s.PortfolioID, s.Status)
	return err
}

func (d *Database) GetStrategy(ctx context.Context, id string) (*Strategy, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT `+strategyColumns+` FROM strategies WHERE id = ?`, id)
	s, err := scanStrategy(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query strategy: %w", err)
	}
	return &s, nil
}

func (d *Database) ListStrategiesByUser(ctx context.Context, userID string) ([]Strategy, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT `+strategyColumns+` FROM strategies WHERE user_id = ? ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query strategies: %w", err)
	}
	defer rows.Close()

	var out []Strategy
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListStrategiesByStatus returns strategies in any of the given statuses.
func (d *Database) ListStrategiesByStatus(ctx context.Context, statuses ...string) ([]Strategy, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT ` + strategyColumns + ` FROM strategies WHERE status IN (?` +
		repeatPlaceholder(len(statuses)-1) + `)`
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}
	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query strategies by status: %w", err)
	}
	defer rows.Close()

	var out []Strategy
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

func (d *Database) UpdateStrategy(ctx context.Context, s Strategy) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE strategies
		SET name = ?, symbol = ?, interval = ?, source = ?, parameters = ?,
		    portfolio_id = NULLIF(?, ''), updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, s.Name, s.Symbol, s.Interval, s.Source, s.Parameters, s.PortfolioID, s.ID)
	return err
}

func (d *Database) UpdateStrategyStatus(ctx context.Context, id, status string) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE strategies SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, status, id)
	return err
}

// MarkStrategyRun records the outcome of one evaluation; errMsg is empty on
// success.
func (d *Database) MarkStrategyRun(ctx context.Context, id, errMsg string) error {
	_, err := d.DB.ExecContext(ctx, `
		UPDATE strategies
		SET last_run_at = CURRENT_TIMESTAMP, error_message = NULLIF(?, ''), updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, errMsg, id)
	return err
}

func (d *Database) DeleteStrategy(ctx context.Context, id string) error {
	_, err := d.DB.ExecContext(ctx, `DELETE FROM strategies WHERE id = ?`, id)
	return err
}

// ----------------------------------------
// Trade ledger queries
// ----------------------------------------

func (d *Database) InsertTrade(ctx context.Context, t Trade) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trades (id, portfolio_id, strategy_id, symbol, side, quantity, price, total, created_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?)
	`, t.ID, t.PortfolioID, t.StrategyID, t.Symbol, t.Side, t.Quantity, t.Price, t.Total, t.CreatedAt)
	return err
}

// CompletedTrades returns the ledger for (portfolio, symbol) ascending by
// time, the order position replay depends on.
func (d *Database) CompletedTrades(ctx context.Context, portfolioID, symbol string) ([]Trade, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, portfolio_id, COALESCE(strategy_id, ''), symbol, side, quantity, price, total, created_at
		FROM trades
		WHERE portfolio_id = ? AND symbol = ?
		ORDER BY created_at ASC, id ASC
	`, portfolioID, symbol)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

func (d *Database) ListTradesByPortfolio(ctx context.Context, portfolioID string, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, portfolio_id, COALESCE(strategy_id, ''), symbol, side, quantity, price, total, created_at
		FROM trades
		WHERE portfolio_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

func collectTrades(rows *sql.Rows) ([]Trade, error) {
	var out []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.PortfolioID, &t.StrategyID, &t.Symbol, &t.Side,
			&t.Quantity, &t.Price, &t.Total, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ----------------------------------------
// Execution log queries
// ----------------------------------------

func (d *Database) InsertExecutionLog(ctx context.Context, l ExecutionLog) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO execution_logs (strategy_id, level, message, data)
		VALUES (?, ?, ?, ?)
	`, l.StrategyID, l.Level, l.Message, l.Data)
	return err
}

func (d *Database) ListExecutionLogs(ctx context.Context, strategyID string, limit int) ([]ExecutionLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, strategy_id, level, message, COALESCE(data, ''), created_at
		FROM execution_logs
		WHERE strategy_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, strategyID, limit)
	if err != nil {
		return nil, fmt.Errorf("query execution logs: %w", err)
	}
	defer rows.Close()

	var out []ExecutionLog
	for rows.Next() {
		var l ExecutionLog
		if err := rows.Scan(&l.ID, &l.StrategyID, &l.Level, &l.Message, &l.Data, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
