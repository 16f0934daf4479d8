// Package runner schedules and executes strategy evaluations: it builds the
// market context, hands it to the sandbox, persists the outcome and forwards
// actionable signals to the trade executor.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"stratbox/internal/events"
	"stratbox/internal/monitor"
	"stratbox/internal/persistence"
	"stratbox/internal/sandbox"
	"stratbox/internal/state"
	"stratbox/pkg/db"
)

// Trader turns a non-hold signal into a ledger trade. The runner only calls
// it when the strategy is linked to a portfolio.
type Trader interface {
	Execute(ctx context.Context, strat db.Strategy, res sandbox.Result, price float64) (*db.Trade, error)
}

// Runner owns the evaluation schedule. One cron job per active strategy;
// SkipIfStillRunning guarantees evaluations of the same strategy never
// overlap, while different strategies run independently.
type Runner struct {
	db      *db.Database
	engine  *sandbox.Engine
	builder *ContextBuilder
	trader  Trader
	bus     *events.Bus
	metrics *monitor.Metrics
	logs    *persistence.LogSink
	states  *state.Manager
	log     zerolog.Logger

	cron *cron.Cron
	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

func New(database *db.Database, engine *sandbox.Engine, builder *ContextBuilder, trader Trader,
	bus *events.Bus, metrics *monitor.Metrics, logs *persistence.LogSink, states *state.Manager,
	log zerolog.Logger) *Runner {
	return &Runner{
		db:      database,
		engine:  engine,
		builder: builder,
		trader:  trader,
		bus:     bus,
		metrics: metrics,
		logs:    logs,
		states:  states,
		log:     log,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		jobs: make(map[string]cron.EntryID),
	}
}

// Start schedules all strategies marked active in the database and starts
// the cron loop.
func (r *Runner) Start(ctx context.Context) error {
	strategies, err := r.db.ListStrategiesByStatus(ctx, db.StrategyActive)
	if err != nil {
		return fmt.Errorf("load active strategies: %w", err)
	}
	for _, s := range strategies {
		if err := r.schedule(s); err != nil {
			r.log.Error().Err(err).Str("strategy", s.ID).Msg("schedule failed")
		}
	}
	r.cron.Start()
	r.log.Info().Int("strategies", len(strategies)).Msg("runner started")
	return nil
}

// Stop halts the schedule and waits for in-flight evaluations.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Runner) schedule(strat db.Strategy) error {
	spec := "@every " + normalizeInterval(strat.Interval)
	id := strat.ID
	entry, err := r.cron.AddFunc(spec, func() {
		r.RunOnce(context.Background(), id)
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.jobs[strat.ID] = entry
	r.mu.Unlock()
	return nil
}

func (r *Runner) unschedule(id string) {
	r.mu.Lock()
	if entry, ok := r.jobs[id]; ok {
		r.cron.Remove(entry)
		delete(r.jobs, id)
	}
	r.mu.Unlock()
}

// normalizeInterval maps the stored interval to a cron @every duration,
// falling back to the one-minute default cadence.
func normalizeInterval(interval string) string {
	if _, err := time.ParseDuration(interval); err != nil {
		return "1m"
	}
	return interval
}

// StartStrategy marks a strategy active and puts it on the schedule.
func (r *Runner) StartStrategy(ctx context.Context, id string) error {
	strat, err := r.db.GetStrategy(ctx, id)
	if err != nil {
		return err
	}
	if err := r.db.UpdateStrategyStatus(ctx, id, db.StrategyActive); err != nil {
		return err
	}
	r.unschedule(id)
	return r.schedule(*strat)
}

// PauseStrategy keeps the row but removes it from the schedule.
func (r *Runner) PauseStrategy(ctx context.Context, id string) error {
	if err := r.db.UpdateStrategyStatus(ctx, id, db.StrategyPaused); err != nil {
		return err
	}
	r.unschedule(id)
	return nil
}

// StopStrategy removes the strategy from the schedule for good.
func (r *Runner) StopStrategy(ctx context.Context, id string) error {
	if err := r.db.UpdateStrategyStatus(ctx, id, db.StrategyStopped); err != nil {
		return err
	}
	r.unschedule(id)
	return nil
}

// ReloadStrategy picks up edited source/interval for an already-scheduled
// strategy. The normalization cache keys on source text, so an edit is
// recompiled on the next run automatically; only the cadence needs rewiring.
func (r *Runner) ReloadStrategy(ctx context.Context, id string) error {
	strat, err := r.db.GetStrategy(ctx, id)
	if err != nil {
		return err
	}
	r.unschedule(id)
	if strat.Status == db.StrategyActive {
		return r.schedule(*strat)
	}
	return nil
}

// RunOnce performs a single evaluation of the strategy and persists the
// outcome. It never returns a raw error for failures inside the sandbox;
// those are already folded into the hold result.
func (r *Runner) RunOnce(ctx context.Context, id string) (sandbox.Result, error) {
	strat, err := r.db.GetStrategy(ctx, id)
	if err != nil {
		return sandbox.Result{}, err
	}

	started := time.Now()
	var res sandbox.Result

	ec, err := r.builder.Build(ctx, *strat)
	switch {
	case errors.Is(err, ErrNoMarketData):
		// Fail fast without invoking the sandbox.
		res = sandbox.Result{Signal: sandbox.SignalHold, Reason: "No data available"}
	case err != nil:
		res = sandbox.Result{Signal: sandbox.SignalHold, Reason: "Execution error: " + err.Error()}
	default:
		res = r.engine.Evaluate(ctx, strat.Source, ec)
	}
	elapsed := time.Since(started)

	r.record(ctx, *strat, res, elapsed)

	if res.Signal != sandbox.SignalHold && strat.PortfolioID != "" && r.trader != nil {
		trade, err := r.trader.Execute(ctx, *strat, res, ec.CurrentPrice)
		if err != nil {
			r.log.Error().Err(err).Str("strategy", strat.ID).Msg("trade execution failed")
			r.writeLog(strat.ID, "error", "Trade execution failed: "+err.Error(), nil)
		} else if trade != nil {
			r.writeLog(strat.ID, "trade", fmt.Sprintf("%s %g %s @ %g", trade.Side, trade.Quantity, trade.Symbol, trade.Price), trade)
			r.bus.Publish(events.EventTradeExecuted, events.TradeEvent{
				StrategyID:  strat.ID,
				PortfolioID: trade.PortfolioID,
				Symbol:      trade.Symbol,
				Side:        trade.Side,
				Quantity:    trade.Quantity,
				Price:       trade.Price,
				Total:       trade.Total,
			})
		}
	}

	return res, nil
}

// record persists and broadcasts the outcome of one run.
func (r *Runner) record(ctx context.Context, strat db.Strategy, res sandbox.Result, elapsed time.Duration) {
	level := "info"
	switch {
	case strings.HasPrefix(res.Reason, "Execution error"):
		level = "error"
	case res.Signal != sandbox.SignalHold:
		level = "signal"
	}

	if strings.Contains(res.Reason, sandbox.ErrTimeout.Error()) {
		r.metrics.RecordTimeout()
	}
	r.metrics.RecordEvaluation(string(res.Signal), res.Reason, elapsed)

	message := "signal: " + string(res.Signal)
	if res.Reason != "" {
		message += " (" + res.Reason + ")"
	}
	r.writeLog(strat.ID, level, message, res)

	errMsg := ""
	if level == "error" {
		errMsg = res.Reason
	}
	if err := r.db.MarkStrategyRun(ctx, strat.ID, errMsg); err != nil {
		r.log.Warn().Err(err).Str("strategy", strat.ID).Msg("mark run failed")
	}

	r.states.RecordEvaluation(state.Evaluation{
		StrategyID: strat.ID,
		Result:     res,
		RanAt:      time.Now(),
		Duration:   elapsed,
	})
	r.bus.Publish(events.EventEvaluation, events.EvaluationEvent{
		StrategyID: strat.ID,
		Symbol:     strat.Symbol,
		Signal:     string(res.Signal),
		Amount:     res.Amount,
		Reason:     res.Reason,
		DurationMs: elapsed.Milliseconds(),
	})
	if res.Signal != sandbox.SignalHold {
		r.bus.Publish(events.EventSignal, events.EvaluationEvent{
			StrategyID: strat.ID,
			Symbol:     strat.Symbol,
			Signal:     string(res.Signal),
			Amount:     res.Amount,
			Reason:     res.Reason,
			DurationMs: elapsed.Milliseconds(),
		})
	}
}

// writeLog queues an execution-log entry and mirrors it onto the bus;
// persistence is fire-and-forget.
func (r *Runner) writeLog(strategyID, level, message string, data any) {
	if r.bus != nil {
		r.bus.Publish(events.EventStrategyLog, events.LogEvent{
			StrategyID: strategyID,
			Level:      level,
			Message:    message,
		})
	}
	if r.logs == nil {
		return
	}
	payload := ""
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = string(b)
		}
	}
	r.logs.Write(db.ExecutionLog{
		StrategyID: strategyID,
		Level:      level,
		Message:    message,
		Data:       payload,
	})
}
