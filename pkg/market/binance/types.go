package binance

// Kline is a single candlestick as returned by the public kline endpoints.
type Kline struct {
	Symbol    string
	OpenTime  int64 // ms
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime int64 // ms
	Closed    bool  // websocket only: whether the bar is final
}
