package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"stratbox/internal/api"
	"stratbox/internal/events"
	"stratbox/internal/market"
	"stratbox/internal/monitor"
	"stratbox/internal/persistence"
	"stratbox/internal/runner"
	"stratbox/internal/sandbox"
	"stratbox/internal/seed"
	"stratbox/internal/state"
	"stratbox/internal/trade"
	"stratbox/pkg/config"
	"stratbox/pkg/db"
	"stratbox/pkg/logger"
	"stratbox/pkg/market/binance"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogPretty)
	log.Info().Str("version", version).Msg("stratbox starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	// Shared infrastructure
	bus := events.NewBus()
	states := state.NewManager()
	if err := states.Load(ctx, database); err != nil {
		log.Warn().Err(err).Msg("seed state from db failed")
	}
	metrics := monitor.NewMetrics()

	// Market data: a mock random walk for local development, live Binance
	// streams otherwise. Either way the price cache is fed from bus ticks.
	var candles runner.CandleSource
	if cfg.UseMockFeed {
		mock := &market.MockFeed{
			Bus:     bus,
			Symbols: cfg.FeedSymbols,
			Log:     log.With().Str("component", "mock-feed").Logger(),
		}
		mock.Start(ctx)
		candles = market.NewMockCandles(bus, 500)
	} else {
		client := binance.NewClient(cfg.BinanceTestnet)
		feed := &market.Feed{
			Client:   client,
			Stream:   binance.NewStreamClient(cfg.BinanceTestnet, log.With().Str("component", "binance-ws").Logger()),
			Bus:      bus,
			Symbols:  cfg.FeedSymbols,
			Interval: cfg.FeedInterval,
			Log:      log.With().Str("component", "feed").Logger(),
		}
		feed.Start(ctx)
		candles = market.NewCandleService(client)
	}
	go trackPrices(bus, states)

	// Evaluation pipeline
	engine := sandbox.NewEngine(log.With().Str("component", "sandbox").Logger())
	engine.SetTimeout(cfg.EvalTimeout)

	sink := persistence.NewLogSink(database, 50, 2*time.Second, log.With().Str("component", "log-sink").Logger())

	executor := trade.NewExecutor(database, log.With().Str("component", "executor").Logger())
	executor.DefaultFraction = cfg.DefaultOrder

	builder := runner.NewContextBuilder(candles, database, cfg.CandleLimit)
	run := runner.New(database, engine, builder, executor, bus, metrics, sink, states,
		log.With().Str("component", "runner").Logger())
	if err := run.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start runner")
	}

	if cfg.SeedPath != "" {
		if err := applySeeds(ctx, database, cfg.SeedPath); err != nil {
			log.Warn().Err(err).Str("path", cfg.SeedPath).Msg("seed strategies failed")
		}
	}

	server := api.NewServer(bus, database, run, candles, states, metrics, api.SystemMeta{
		Symbols:     cfg.FeedSymbols,
		UseMockFeed: cfg.UseMockFeed,
		Version:     version,
	}, cfg.JWTSecret, log.With().Str("component", "api").Logger())

	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	cancel()
	run.Stop()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	sink.Close(flushCtx)

	log.Info().Msg("shutdown complete")
}

// trackPrices keeps the in-memory price cache current from bus ticks.
func trackPrices(bus *events.Bus, states *state.Manager) {
	ch, _ := bus.Subscribe(events.EventPriceTick, 200)
	for msg := range ch {
		if k, ok := msg.(binance.Kline); ok {
			states.SetPrice(k.Symbol, k.Close)
		}
	}
}

// applySeeds loads starter strategies under a dedicated system user.
func applySeeds(ctx context.Context, database *db.Database, path string) error {
	seeds, err := seed.Load(path)
	if err != nil {
		return err
	}

	const seedEmail = "seed@localhost"
	user, err := database.GetUserByEmail(ctx, seedEmail)
	if err != nil {
		return err
	}
	if user == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user = &db.User{
			ID:           uuid.NewString(),
			Email:        seedEmail,
			PasswordHash: string(hash),
		}
		if err := database.CreateUser(ctx, *user); err != nil {
			return err
		}
	}
	return seed.Apply(ctx, database, user.ID, seeds)
}
