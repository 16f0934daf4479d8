package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stratbox/internal/events"
	"stratbox/internal/sandbox"
	"stratbox/pkg/market/binance"
)

// MockFeed generates synthetic ticks for local development.
type MockFeed struct {
	Bus        *events.Bus
	Symbols    []string
	StartPrice float64
	Step       float64
	Interval   time.Duration
	Log        zerolog.Logger
}

func (m *MockFeed) Start(ctx context.Context) {
	if m.Bus == nil {
		m.Log.Warn().Msg("mock feed: bus not set")
		return
	}
	if len(m.Symbols) == 0 {
		m.Symbols = []string{"BTCUSDT"}
	}
	price := m.StartPrice
	if price == 0 {
		price = 100.0
	}
	if m.Step == 0 {
		m.Step = 0.5
	}
	if m.Interval == 0 {
		m.Interval = time.Second
	}

	go func() {
		t := time.NewTicker(m.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for _, sym := range m.Symbols {
					// simple random walk
					price += (rand.Float64()*2 - 1) * m.Step
					m.Bus.Publish(events.EventPriceTick, binance.Kline{
						Symbol: sym,
						Close:  price,
						Closed: true,
					})
				}
			}
		}
	}()
}

// MockCandles builds an in-memory candle history from bus price ticks so the
// runner has data to evaluate against without touching the exchange.
type MockCandles struct {
	mu      sync.RWMutex
	history map[string][]sandbox.Candle
	keep    int
}

func NewMockCandles(bus *events.Bus, keep int) *MockCandles {
	if keep <= 0 {
		keep = 500
	}
	m := &MockCandles{history: make(map[string][]sandbox.Candle), keep: keep}

	ch, _ := bus.Subscribe(events.EventPriceTick, 100)
	go func() {
		for msg := range ch {
			k, ok := msg.(binance.Kline)
			if !ok {
				continue
			}
			m.record(k)
		}
	}()
	return m
}

func (m *MockCandles) record(k binance.Kline) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := sandbox.Candle{
		Timestamp: time.Now().UnixMilli(),
		Open:      k.Close,
		High:      k.Close,
		Low:       k.Close,
		Close:     k.Close,
		Volume:    k.Volume,
	}
	if k.OpenTime != 0 {
		c.Timestamp = k.OpenTime
		c.Open, c.High, c.Low = k.Open, k.High, k.Low
	}

	h := append(m.history[k.Symbol], c)
	if len(h) > m.keep {
		h = h[len(h)-m.keep:]
	}
	m.history[k.Symbol] = h
}

// RecentCandles satisfies the runner's candle source.
func (m *MockCandles) RecentCandles(_ context.Context, symbol, _ string, limit int) ([]sandbox.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h := m.history[symbol]
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	out := make([]sandbox.Candle, len(h))
	copy(out, h)
	return out, nil
}
