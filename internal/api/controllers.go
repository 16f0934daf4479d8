package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stratbox/internal/portfolio"
	"stratbox/pkg/db"
)

// strategyView is the JSON shape strategies are served as.
type strategyView struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Symbol       string         `json:"symbol"`
	Interval     string         `json:"interval"`
	Source       string         `json:"source"`
	Parameters   map[string]any `json:"parameters"`
	PortfolioID  string         `json:"portfolio_id,omitempty"`
	Status       string         `json:"status"`
	LastRunAt    *time.Time     `json:"last_run_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func toStrategyView(s db.Strategy) strategyView {
	params := map[string]any{}
	_ = json.Unmarshal([]byte(s.Parameters), &params)
	return strategyView{
		ID:           s.ID,
		Name:         s.Name,
		Symbol:       s.Symbol,
		Interval:     s.Interval,
		Source:       s.Source,
		Parameters:   params,
		PortfolioID:  s.PortfolioID,
		Status:       s.Status,
		LastRunAt:    s.LastRunAt,
		ErrorMessage: s.ErrorMessage,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

type strategyRequest struct {
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Interval    string         `json:"interval"`
	Source      string         `json:"source"`
	Parameters  map[string]any `json:"parameters"`
	PortfolioID string         `json:"portfolio_id"`
}

func (s *Server) listStrategies(c *gin.Context) {
	strategies, err := s.DB.ListStrategiesByUser(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		internalError(c, err)
		return
	}
	views := make([]strategyView, 0, len(strategies))
	for _, strat := range strategies {
		views = append(views, toStrategyView(strat))
	}
	c.JSON(http.StatusOK, gin.H{"strategies": views})
}

func (s *Server) createStrategy(c *gin.Context) {
	var req strategyRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	if req.Name == "" || req.Symbol == "" || req.Source == "" {
		badRequest(c, "name, symbol and source are required")
		return
	}
	if req.Interval == "" {
		req.Interval = "1m"
	}
	if _, err := time.ParseDuration(req.Interval); err != nil {
		badRequest(c, "interval must be a duration like 1m or 1h")
		return
	}

	params := "{}"
	if len(req.Parameters) > 0 {
		b, err := json.Marshal(req.Parameters)
		if err != nil {
			badRequest(c, "invalid parameters")
			return
		}
		params = string(b)
	}

	ctx := c.Request.Context()
	if req.PortfolioID != "" {
		if !s.ownsPortfolio(c, req.PortfolioID) {
			return
		}
	}

	strat := db.Strategy{
		ID:          uuid.NewString(),
		UserID:      CurrentUserID(c),
		Name:        req.Name,
		Symbol:      req.Symbol,
		Interval:    req.Interval,
		Source:      req.Source,
		Parameters:  params,
		PortfolioID: req.PortfolioID,
		Status:      db.StrategyStopped,
	}
	if err := s.DB.CreateStrategy(ctx, strat); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": strat.ID})
}

func (s *Server) getStrategy(c *gin.Context) {
	strat, ok := s.ownedStrategy(c)
	if !ok {
		return
	}
	view := toStrategyView(*strat)
	if eval, ok := s.States.LastEvaluation(strat.ID); ok {
		c.JSON(http.StatusOK, gin.H{"strategy": view, "last_evaluation": eval})
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategy": view})
}

func (s *Server) updateStrategy(c *gin.Context) {
	strat, ok := s.ownedStrategy(c)
	if !ok {
		return
	}

	var req strategyRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	if req.Name != "" {
		strat.Name = req.Name
	}
	if req.Symbol != "" {
		strat.Symbol = req.Symbol
	}
	if req.Interval != "" {
		if _, err := time.ParseDuration(req.Interval); err != nil {
			badRequest(c, "interval must be a duration like 1m or 1h")
			return
		}
		strat.Interval = req.Interval
	}
	if req.Source != "" {
		strat.Source = req.Source
	}
	if req.Parameters != nil {
		b, err := json.Marshal(req.Parameters)
		if err != nil {
			badRequest(c, "invalid parameters")
			return
		}
		strat.Parameters = string(b)
	}
	if req.PortfolioID != "" {
		if !s.ownsPortfolio(c, req.PortfolioID) {
			return
		}
		strat.PortfolioID = req.PortfolioID
	}

	ctx := c.Request.Context()
	if err := s.DB.UpdateStrategy(ctx, *strat); err != nil {
		internalError(c, err)
		return
	}
	if err := s.Runner.ReloadStrategy(ctx, strat.ID); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategy": toStrategyView(*strat)})
}

func (s *Server) deleteStrategy(c *gin.Context) {
	strat, ok := s.ownedStrategy(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := s.Runner.StopStrategy(ctx, strat.ID); err != nil {
		internalError(c, err)
		return
	}
	if err := s.DB.DeleteStrategy(ctx, strat.ID); err != nil {
		internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Strategy actions

func (s *Server) startStrategy(c *gin.Context) {
	strat, ok := s.ownedStrategy(c)
	if !ok {
		return
	}
	if err := s.Runner.StartStrategy(c.Request.Context(), strat.ID); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": db.StrategyActive})
}

func (s *Server) pauseStrategy(c *gin.Context) {
	strat, ok := s.ownedStrategy(c)
	if !ok {
		return
	}
	if err := s.Runner.PauseStrategy(c.Request.Context(), strat.ID); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": db.StrategyPaused})
}

func (s *Server) stopStrategy(c *gin.Context) {
	strat, ok := s.ownedStrategy(c)
	if !ok {
		return
	}
	if err := s.Runner.StopStrategy(c.Request.Context(), strat.ID); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": db.StrategyStopped})
}

// runStrategyNow triggers one immediate evaluation outside the schedule.
func (s *Server) runStrategyNow(c *gin.Context) {
	strat, ok := s.ownedStrategy(c)
	if !ok {
		return
	}
	res, err := s.Runner.RunOnce(c.Request.Context(), strat.ID)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res})
}

func (s *Server) listExecutionLogs(c *gin.Context) {
	strat, ok := s.ownedStrategy(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := s.DB.ListExecutionLogs(c.Request.Context(), strat.ID, limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// Portfolios

func (s *Server) listPortfolios(c *gin.Context) {
	portfolios, err := s.DB.ListPortfoliosByUser(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"portfolios": portfolios})
}

func (s *Server) createPortfolio(c *gin.Context) {
	var req struct {
		Name string  `json:"name"`
		Cash float64 `json:"cash"`
	}
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	if req.Name == "" {
		badRequest(c, "name is required")
		return
	}
	if req.Cash < 0 {
		badRequest(c, "cash must be non-negative")
		return
	}

	p := db.Portfolio{
		ID:     uuid.NewString(),
		UserID: CurrentUserID(c),
		Name:   req.Name,
		Cash:   req.Cash,
	}
	if err := s.DB.CreatePortfolio(c.Request.Context(), p); err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": p.ID})
}

func (s *Server) listTrades(c *gin.Context) {
	id := c.Param("id")
	if !s.ownsPortfolio(c, id) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	trades, err := s.DB.ListTradesByPortfolio(c.Request.Context(), id, limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

// getPosition replays the trade ledger into the current open position for
// ?symbol=, priced from the live cache when available.
func (s *Server) getPosition(c *gin.Context) {
	id := c.Param("id")
	if !s.ownsPortfolio(c, id) {
		return
	}
	symbol := c.Query("symbol")
	if symbol == "" {
		badRequest(c, "symbol is required")
		return
	}

	trades, err := s.DB.CompletedTrades(c.Request.Context(), id, symbol)
	if err != nil {
		internalError(c, err)
		return
	}
	price, _ := s.States.Price(symbol)
	pos := portfolio.Replay(trades, symbol, price)
	if pos == nil {
		c.JSON(http.StatusOK, gin.H{"position": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": pos})
}

// Candles

func (s *Server) getCandles(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		badRequest(c, "symbol is required")
		return
	}
	interval := c.DefaultQuery("interval", "1m")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	candles, err := s.Candles.RecentCandles(c.Request.Context(), symbol, interval, limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candles": candles})
}

// Helpers

// ownedStrategy loads the :id strategy and enforces ownership.
func (s *Server) ownedStrategy(c *gin.Context) (*db.Strategy, bool) {
	strat, err := s.DB.GetStrategy(c.Request.Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"code":  "NOT_FOUND",
			"error": "strategy not found",
		})
		return nil, false
	}
	if err != nil {
		internalError(c, err)
		return nil, false
	}
	if strat.UserID != CurrentUserID(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code":  "FORBIDDEN",
			"error": "strategy belongs to another user",
		})
		return nil, false
	}
	return strat, true
}

// ownsPortfolio enforces portfolio ownership; it writes the error response
// itself and reports whether the caller may proceed.
func (s *Server) ownsPortfolio(c *gin.Context, id string) bool {
	p, err := s.DB.GetPortfolio(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"code":  "NOT_FOUND",
			"error": "portfolio not found",
		})
		return false
	}
	if err != nil {
		internalError(c, err)
		return false
	}
	if p.UserID != CurrentUserID(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code":  "FORBIDDEN",
			"error": "portfolio belongs to another user",
		})
		return false
	}
	return true
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"code":  "INVALID_PAYLOAD",
		"error": msg,
	})
}

func internalError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"code":  "INTERNAL_ERROR",
		"error": err.Error(),
	})
}
