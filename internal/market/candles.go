// Package market supplies candles to the strategy runner: a REST-backed
// candle service for scheduled evaluations and a websocket feed that relays
// live closes into the in-memory price cache.
package market

import (
	"context"

	"stratbox/internal/sandbox"
	"stratbox/pkg/market/binance"
)

// CandleService fetches recent candles for strategy evaluation.
type CandleService struct {
	client *binance.Client
}

func NewCandleService(client *binance.Client) *CandleService {
	return &CandleService{client: client}
}

// RecentCandles returns up to limit candles oldest-first. An empty slice is
// a valid answer; the caller decides how to treat missing data.
func (s *CandleService) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]sandbox.Candle, error) {
	klines, err := s.client.Klines(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	candles := make([]sandbox.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, sandbox.Candle{
			Timestamp: k.OpenTime,
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
		})
	}
	return candles, nil
}
