// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// Redis contains connection settings for the shared store.
	Redis RedisConfig

	// Feed contains exchange stream settings.
	Feed FeedConfig

	// Engine contains matching and liquidation settings.
	Engine EngineConfig

	// Kafka contains the optional event journal settings.
	Kafka KafkaConfig

	// PyroscopeServer enables continuous profiling when set.
	PyroscopeServer string

	// LogLevel is a logrus level name ("debug", "info", ...).
	LogLevel string
}

// RedisConfig holds the store connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// FeedConfig holds the market-data stream settings.
type FeedConfig struct {
	// Symbols get trade and order-book streams and are tracked everywhere.
	Symbols []string

	// TickerOnlySymbols are tracked in ticker/funding snapshots only.
	TickerOnlySymbols []string

	SpotURL    string
	FuturesURL string

	HealthCheckInterval   time.Duration
	HealthCheckStartDelay time.Duration
}

// EngineConfig holds matching and liquidation settings.
type EngineConfig struct {
	// QuoteAsset is the funding currency; positions based in it are
	// scaled by their entry price.
	QuoteAsset string

	DispatchInterval   time.Duration
	CrossCheckInterval time.Duration
}

// KafkaConfig holds the journal producer settings.
// An empty Broker disables the journal.
type KafkaConfig struct {
	Broker string
	Topic  string
}

// AllSymbols returns trade symbols followed by ticker-only symbols.
func (f FeedConfig) AllSymbols() []string {
	all := make([]string, 0, len(f.Symbols)+len(f.TickerOnlySymbols))
	all = append(all, f.Symbols...)
	return append(all, f.TickerOnlySymbols...)
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	return &AppConfig{
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Feed: FeedConfig{
			Symbols:               getEnvList("SYMBOLS", []string{"btcusdt", "ethusdt", "xrpusdt"}),
			TickerOnlySymbols:     getEnvList("TICKER_ONLY_SYMBOLS", []string{"trxusdt"}),
			SpotURL:               getEnv("SPOT_WS_URL", "wss://stream.binance.com:9443/ws"),
			FuturesURL:            getEnv("FUTURES_WS_URL", "wss://fstream.binance.com/stream"),
			HealthCheckInterval:   time.Duration(getEnvInt("HEALTH_CHECK_INTERVAL_SECONDS", 10)) * time.Second,
			HealthCheckStartDelay: time.Duration(getEnvInt("HEALTH_CHECK_START_DELAY_SECONDS", 20)) * time.Second,
		},
		Engine: EngineConfig{
			QuoteAsset:         strings.ToLower(getEnv("QUOTE_ASSET", "usdt")),
			DispatchInterval:   time.Duration(getEnvInt("DISPATCH_INTERVAL_MS", 1000)) * time.Millisecond,
			CrossCheckInterval: time.Duration(getEnvInt("CROSS_CHECK_INTERVAL_MS", 3000)) * time.Millisecond,
		},
		Kafka: KafkaConfig{
			Broker: getEnv("KAFKA_BROKER", ""),
			Topic:  getEnv("KAFKA_JOURNAL_TOPIC", "margincore_events"),
		},
		PyroscopeServer: getEnv("PYROSCOPE_SERVER", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// NewLogger builds the process logger.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvList returns a comma-separated, lower-cased list or a default.
func getEnvList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
