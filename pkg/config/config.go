package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the service.
type Config struct {
	Port string

	// Database
	DBPath string

	// Auth
	JWTSecret string

	// Market data
	BinanceTestnet bool
	FeedSymbols    []string
	FeedInterval   string
	UseMockFeed    bool

	// Evaluation
	EvalTimeout  time.Duration
	CandleLimit  int
	SeedPath     string
	DefaultOrder float64 // fraction of cash spent when a buy carries no amount

	// Logging
	LogLevel  string
	LogPretty bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "./data/stratbox.db"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		BinanceTestnet: getEnv("BINANCE_TESTNET", "false") == "true",
		FeedSymbols:    splitAndTrim(getEnv("FEED_SYMBOLS", "BTCUSDT,ETHUSDT")),
		FeedInterval:   getEnv("FEED_INTERVAL", "1m"),
		UseMockFeed:    getEnv("USE_MOCK_FEED", "true") == "true",
		EvalTimeout:    time.Duration(getEnvInt("EVAL_TIMEOUT_MS", 5000)) * time.Millisecond,
		CandleLimit:    getEnvInt("CANDLE_LIMIT", 100),
		SeedPath:       getEnv("SEED_PATH", ""),
		DefaultOrder:   getEnvFloat("DEFAULT_ORDER_FRACTION", 0.1),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnv("LOG_PRETTY", "false") == "true",
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
