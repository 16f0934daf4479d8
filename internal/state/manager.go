// Package state keeps the in-memory view the API serves: latest prices
// relayed from the websocket feed and the most recent evaluation per
// strategy, seeded from persisted execution logs at startup.
package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"stratbox/internal/sandbox"
	"stratbox/pkg/db"
)

// Evaluation is the cached outcome of a strategy's latest run.
type Evaluation struct {
	StrategyID string         `json:"strategy_id"`
	Result     sandbox.Result `json:"result"`
	RanAt      time.Time      `json:"ran_at"`
	Duration   time.Duration  `json:"duration"`
}

// Manager holds the live caches. All methods are safe for concurrent use.
type Manager struct {
	mu          sync.RWMutex
	prices      map[string]float64
	priceTimes  map[string]time.Time
	evaluations map[string]Evaluation
}

func NewManager() *Manager {
	return &Manager{
		prices:      make(map[string]float64),
		priceTimes:  make(map[string]time.Time),
		evaluations: make(map[string]Evaluation),
	}
}

// Load seeds the evaluation cache from the newest persisted execution log of
// each strategy, so last-run results survive a restart. Rows whose payload
// does not decode to a result are skipped.
func (m *Manager) Load(ctx context.Context, database *db.Database) error {
	strategies, err := database.ListStrategiesByStatus(ctx,
		db.StrategyActive, db.StrategyPaused, db.StrategyStopped, db.StrategyError)
	if err != nil {
		return err
	}

	for _, strat := range strategies {
		logs, err := database.ListExecutionLogs(ctx, strat.ID, 1)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			continue
		}
		var res sandbox.Result
		if json.Unmarshal([]byte(logs[0].Data), &res) != nil || !res.Signal.Valid() {
			continue
		}
		m.mu.Lock()
		m.evaluations[strat.ID] = Evaluation{
			StrategyID: strat.ID,
			Result:     res,
			RanAt:      logs[0].CreatedAt,
		}
		m.mu.Unlock()
	}
	return nil
}

// SetPrice records the latest close for a symbol.
func (m *Manager) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	m.prices[symbol] = price
	m.priceTimes[symbol] = time.Now()
	m.mu.Unlock()
}

// Price returns the cached close for a symbol, or false if none seen yet.
func (m *Manager) Price(symbol string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prices[symbol]
	return p, ok
}

// Prices returns a snapshot of all cached prices.
func (m *Manager) Prices() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.prices))
	for k, v := range m.prices {
		out[k] = v
	}
	return out
}

// RecordEvaluation caches the latest run for a strategy.
func (m *Manager) RecordEvaluation(e Evaluation) {
	m.mu.Lock()
	m.evaluations[e.StrategyID] = e
	m.mu.Unlock()
}

// LastEvaluation returns the cached latest run, or false if the strategy has
// not run since startup.
func (m *Manager) LastEvaluation(strategyID string) (Evaluation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.evaluations[strategyID]
	return e, ok
}
