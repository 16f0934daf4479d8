// Package api serves the REST and websocket surface: JWT-gated strategy and
// portfolio CRUD, run control, execution logs, CSV export and a live event
// relay.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"stratbox/internal/events"
	"stratbox/internal/monitor"
	"stratbox/internal/runner"
	"stratbox/internal/sandbox"
	"stratbox/internal/state"
	"stratbox/pkg/db"
)

// Runner is the part of the strategy runner the API layer drives.
type Runner interface {
	StartStrategy(ctx context.Context, id string) error
	PauseStrategy(ctx context.Context, id string) error
	StopStrategy(ctx context.Context, id string) error
	ReloadStrategy(ctx context.Context, id string) error
	RunOnce(ctx context.Context, id string) (sandbox.Result, error)
}

// Server wires HTTP endpoints around the runner, the bus and the database.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	Runner    Runner
	Candles   runner.CandleSource
	States    *state.Manager
	Metrics   *monitor.Metrics
	JWTSecret string
	Log       zerolog.Logger
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	Symbols     []string
	UseMockFeed bool
	Version     string
}

func NewServer(bus *events.Bus, database *db.Database, run Runner, candles runner.CandleSource,
	states *state.Manager, metrics *monitor.Metrics, meta SystemMeta, jwtSecret string, log zerolog.Logger) *Server {
	r := gin.New()

	// Middleware stack (order matters)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(log))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bus:       bus,
		DB:        database,
		Runner:    run,
		Candles:   candles,
		States:    states,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		Log:       log,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/metrics", s.getMetrics)

		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/strategies", s.listStrategies)
			protected.POST("/strategies", s.createStrategy)
			protected.GET("/strategies/:id", s.getStrategy)
			protected.PUT("/strategies/:id", s.updateStrategy)
			protected.DELETE("/strategies/:id", s.deleteStrategy)

			protected.POST("/strategies/:id/start", s.startStrategy)
			protected.POST("/strategies/:id/pause", s.pauseStrategy)
			protected.POST("/strategies/:id/stop", s.stopStrategy)
			protected.POST("/strategies/:id/run", s.runStrategyNow)
			protected.GET("/strategies/:id/logs", s.listExecutionLogs)

			protected.GET("/portfolios", s.listPortfolios)
			protected.POST("/portfolios", s.createPortfolio)
			protected.GET("/portfolios/:id/trades", s.listTrades)
			protected.GET("/portfolios/:id/position", s.getPosition)
			protected.GET("/portfolios/:id/trades.csv", s.exportTradesCSV)

			protected.GET("/candles", s.getCandles)
			protected.GET("/candles.csv", s.exportCandlesCSV)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":   s.Meta.Version,
		"symbols":   s.Meta.Symbols,
		"mock_feed": s.Meta.UseMockFeed,
		"prices":    s.States.Prices(),
	})
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.Snapshot())
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
