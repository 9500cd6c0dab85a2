package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the whole process configuration, loaded once at startup
// from the environment.
type Config struct {
	Server    ServerConfig
	History   HistoryConfig
	Cycle     CycleConfig
	Universe  UniverseConfig
	Executor  ExecutorConfig
	Logging   LoggingConfig
	Exchange  ExchangeConfig
}

// ServerConfig configures the read-only operational HTTP surface.
type ServerConfig struct {
	Port int
	Host string
}

// ExchangeConfig configures the venue adapter.
type ExchangeConfig struct {
	RESTBaseURL   string
	WSBaseURL     string
	StreamChunk   int           // pairs per WebSocket connection (URL length cap)
	RequestTimeout time.Duration
}

// HistoryConfig configures the optional Postgres tick archive. Absence
// of a DSN disables the archive entirely; it is a best-effort sink.
type HistoryConfig struct {
	DSN string
}

// CycleConfig configures universe root and cycle enumeration.
type CycleConfig struct {
	BaseCurrency    string
	MaxCycleLength  int
	MonitoredCoins  []string
}

// UniverseConfig configures the whitelist/blacklist builder.
type UniverseConfig struct {
	BaseCoins         []string
	MinVolumeUSD      decimal.Decimal
	WhitelistTopN     int
	BlacklistBottomN  int
	VolatilityTopN    int
	VolatilitySigned  bool
}

// ExecutorConfig configures the dry-run executor's gates and sizing.
type ExecutorConfig struct {
	InitialInvestmentUSD decimal.Decimal
	TradingFee           decimal.Decimal
	MinProfitThreshold   decimal.Decimal
	MinTradeVolumeUSD    decimal.Decimal
	MaxSlippagePct       decimal.Decimal
}

// LoggingConfig configures the process-wide logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads Config from the environment. Only unparsable decimals and
// a MAX_CYCLE_LENGTH below 3 are fatal; everything else, including an
// unset or empty BASE_CURRENCY, falls back to a documented default.
func Load() (*Config, error) {
	baseCurrency := getEnv("BASE_CURRENCY", "USDT")
	if baseCurrency == "" {
		return nil, fmt.Errorf("BASE_CURRENCY must not be empty")
	}

	minVolume, err := getEnvAsDecimal("WHITELIST_MIN_VOLUME_USD", decimal.NewFromInt(100000))
	if err != nil {
		return nil, fmt.Errorf("WHITELIST_MIN_VOLUME_USD: %w", err)
	}
	investment, err := getEnvAsDecimal("INITIAL_INVESTMENT_USD", decimal.NewFromInt(1000))
	if err != nil {
		return nil, fmt.Errorf("INITIAL_INVESTMENT_USD: %w", err)
	}
	fee, err := getEnvAsDecimal("TRADING_FEE", decimal.NewFromFloat(0.001))
	if err != nil {
		return nil, fmt.Errorf("TRADING_FEE: %w", err)
	}
	minProfit, err := getEnvAsDecimal("MIN_PROFIT_THRESHOLD", decimal.NewFromFloat(0.1))
	if err != nil {
		return nil, fmt.Errorf("MIN_PROFIT_THRESHOLD: %w", err)
	}
	minTradeVolume, err := getEnvAsDecimal("MIN_TRADE_VOLUME_USD", decimal.NewFromInt(10000))
	if err != nil {
		return nil, fmt.Errorf("MIN_TRADE_VOLUME_USD: %w", err)
	}
	maxSlippage, err := getEnvAsDecimal("MAX_SLIPPAGE_PCT", decimal.NewFromFloat(0.5))
	if err != nil {
		return nil, fmt.Errorf("MAX_SLIPPAGE_PCT: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Exchange: ExchangeConfig{
			RESTBaseURL:    getEnv("EXCHANGE_REST_URL", "https://api.binance.com"),
			WSBaseURL:      getEnv("EXCHANGE_WS_URL", "wss://stream.binance.com:9443"),
			StreamChunk:    getEnvAsInt("WS_STREAM_CHUNK", 75),
			RequestTimeout: getEnvAsDuration("EXCHANGE_REQUEST_TIMEOUT", 10*time.Second),
		},
		History: HistoryConfig{
			DSN: getEnv("HISTORY_DSN", ""),
		},
		Cycle: CycleConfig{
			BaseCurrency:   strings.ToUpper(baseCurrency),
			MaxCycleLength: getEnvAsInt("MAX_CYCLE_LENGTH", 3),
			MonitoredCoins: getEnvAsList("MONITORED_COINS", nil),
		},
		Universe: UniverseConfig{
			BaseCoins:        getEnvAsList("WHITELIST_BASE_COINS", []string{"USDT", "BTC", "ETH"}),
			MinVolumeUSD:     minVolume,
			WhitelistTopN:    getEnvAsInt("WHITELIST_TOP_N_PAIRS", 100),
			BlacklistBottomN: getEnvAsInt("BLACKLIST_BOTTOM_N_PAIRS", 50),
			VolatilityTopN:   getEnvAsInt("VOLATILITY_TOP_N_PAIRS", 50),
			VolatilitySigned: getEnvAsBool("VOLATILITY_SIGNED_CHANGE", false),
		},
		Executor: ExecutorConfig{
			InitialInvestmentUSD: investment,
			TradingFee:           fee,
			MinProfitThreshold:   minProfit,
			MinTradeVolumeUSD:    minTradeVolume,
			MaxSlippagePct:       maxSlippage,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Cycle.MaxCycleLength < 3 {
		return nil, fmt.Errorf("MAX_CYCLE_LENGTH must be >= 3, got %d", cfg.Cycle.MaxCycleLength)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	return decimal.NewFromString(valueStr)
}

// getEnvAsList splits a comma-separated env var into an upper-cased,
// whitespace-trimmed slice. Returns defaultValue if unset.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
