package api

import (
	"encoding/csv"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// exportTradesCSV streams a portfolio's trade ledger as CSV.
func (s *Server) exportTradesCSV(c *gin.Context) {
	id := c.Param("id")
	if !s.ownsPortfolio(c, id) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "1000"))
	trades, err := s.DB.ListTradesByPortfolio(c.Request.Context(), id, limit)
	if err != nil {
		internalError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="trades.csv"`)
	w := csv.NewWriter(c.Writer)
	defer w.Flush()

	w.Write([]string{"created_at", "symbol", "side", "quantity", "price", "total", "strategy_id"})
	for _, t := range trades {
		w.Write([]string{
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.Symbol,
			t.Side,
			ftoa(t.Quantity),
			ftoa(t.Price),
			ftoa(t.Total),
			t.StrategyID,
		})
	}
}

// exportCandlesCSV streams recent candles for ?symbol= as CSV.
func (s *Server) exportCandlesCSV(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		badRequest(c, "symbol is required")
		return
	}
	interval := c.DefaultQuery("interval", "1m")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))

	candles, err := s.Candles.RecentCandles(c.Request.Context(), symbol, interval, limit)
	if err != nil {
		internalError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="candles.csv"`)
	w := csv.NewWriter(c.Writer)
	defer w.Flush()

	w.Write([]string{"timestamp", "open", "high", "low", "close", "volume"})
	for _, k := range candles {
		w.Write([]string{
			strconv.FormatInt(k.Timestamp, 10),
			ftoa(k.Open),
			ftoa(k.High),
			ftoa(k.Low),
			ftoa(k.Close),
			ftoa(k.Volume),
		})
	}
}

func ftoa(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
