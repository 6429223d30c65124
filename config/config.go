package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var logger = log.New(os.Stdout, "[config] ", log.LstdFlags)

// DebugMode enables verbose logging across components.
var DebugMode = false

// Config holds all runtime settings. Values come from the environment
// (optionally seeded from a .env file) with defaults matching the
// production deployment.
type Config struct {
	// Symbols to mirror, e.g. BTCUSDT,ETHUSDT.
	Symbols []string
	// Markets to mirror each symbol on: SPOT, FUTURES or both.
	Markets []string
	// DepthPercents are the analytics bands around mid-price.
	DepthPercents []float64

	// RecordInterval is the minimum time between persisted analytics
	// snapshots per (symbol, market) pair.
	RecordInterval time.Duration

	SQLitePath  string
	MetricsAddr string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logger.Println("no .env file found, using environment")
	}

	DebugMode = getBool("DEBUG", false)

	return &Config{
		Symbols:        getList("SYMBOLS", []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT"}),
		Markets:        getList("MARKETS", []string{"SPOT", "FUTURES"}),
		DepthPercents:  getFloatList("DEPTH_PERCENTS", []float64{1.5, 3, 5, 8, 15, 30}),
		RecordInterval: getDuration("RECORD_INTERVAL", time.Minute),
		SQLitePath:     getString("SQLITE_PATH", "data/snapshots.db"),
		MetricsAddr:    getString("METRICS_ADDR", ":8080"),
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Printf("invalid bool for %s: %q", key, v)
		return def
	}
	return b
}

func getList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func getFloatList(key string, def []float64) []float64 {
	raw := getList(key, nil)
	if raw == nil {
		return def
	}
	out := make([]float64, 0, len(raw))
	for _, p := range raw {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			logger.Printf("invalid float in %s: %q", key, p)
			return def
		}
		out = append(out, f)
	}
	return out
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Printf("invalid duration for %s: %q", key, v)
		return def
	}
	return d
}
