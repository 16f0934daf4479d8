package market

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stratbox/internal/events"
	"stratbox/pkg/market/binance"
)

// Feed streams live klines and relays them onto the event bus; the state
// manager subscribes there to keep the price cache current.
type Feed struct {
	Client   *binance.Client
	Stream   *binance.StreamClient
	Bus      *events.Bus
	Symbols  []string
	Interval string
	Log      zerolog.Logger
}

// Start begins websocket streaming for the configured symbols, with a
// low-frequency REST poll as a gap filler.
func (f *Feed) Start(ctx context.Context) {
	if f.Bus == nil || f.Client == nil || f.Stream == nil {
		f.Log.Warn().Msg("market feed not fully configured; skipping start")
		return
	}

	for _, sym := range f.Symbols {
		symbol := sym
		ch, stop, err := f.Stream.SubscribeKlines(ctx, symbol, f.Interval)
		if err != nil {
			f.Log.Error().Err(err).Str("symbol", symbol).Msg("ws subscribe failed")
			continue
		}

		go func() {
			defer stop()
			for k := range ch {
				f.Bus.Publish(events.EventPriceTick, k)
			}
		}()
	}

	go f.pollSnapshots(ctx)
}

func (f *Feed) pollSnapshots(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sym := range f.Symbols {
				klines, err := f.Client.Klines(ctx, sym, f.Interval, 2)
				if err != nil {
					f.Log.Warn().Err(err).Str("symbol", sym).Msg("feed snapshot failed")
					continue
				}
				if len(klines) > 0 {
					f.Bus.Publish(events.EventPriceTick, klines[len(klines)-1])
				}
			}
		}
	}
}
