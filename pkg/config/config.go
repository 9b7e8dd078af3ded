package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Mode
	DryRun bool

	// Polymarket API
	WSURL        string
	GammaURL     string
	CLOBURL      string
	DataAPIURL   string
	PolygonRPC   string
	ChainID      int64
	APIKey       string
	APISecret    string
	Passphrase   string
	PrivateKey   string
	WalletAddr   string
	ProxyAddress string // funder address when trading through a proxy wallet

	// Trading
	MinProfitThreshold decimal.Decimal // profit > threshold triggers execution
	MaxPositionSizeUSD decimal.Decimal
	MinLiquidityUSD    decimal.Decimal
	MaxDaysUntilRes    int
	PollInterval       time.Duration // legacy polling mode only

	// Stream
	NumWSConnections    int
	WSDialTimeout       time.Duration
	WSReconnectInitial  time.Duration
	WSReconnectFirstMax time.Duration
	WSReconnectCeiling  time.Duration
	WSMessageBuffer     int
	WatchdogInterval    time.Duration
	StaleThreshold      time.Duration

	// Discovery
	MarketRefreshInterval  time.Duration
	MarketRefreshTolerance int

	// Notifications
	SlackWebhookURL string

	// SOCKS5 proxy for order-submission traffic only
	Socks5Host string
	Socks5Port int
	Socks5User string
	Socks5Pass string

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		DryRun: getBoolOrDefault("DRY_RUN", true),

		WSURL:        getEnvOrDefault("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		GammaURL:     getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		CLOBURL:      getEnvOrDefault("POLYMARKET_CLOB_URL", "https://clob.polymarket.com"),
		DataAPIURL:   getEnvOrDefault("POLYMARKET_DATA_API_URL", "https://data-api.polymarket.com"),
		PolygonRPC:   getEnvOrDefault("POLYGON_RPC_URL", "https://polygon-rpc.com"),
		ChainID:      int64(getIntOrDefault("CHAIN_ID", 137)),
		APIKey:       os.Getenv("POLYMARKET_API_KEY"),
		APISecret:    os.Getenv("POLYMARKET_SECRET"),
		Passphrase:   os.Getenv("POLYMARKET_PASSPHRASE"),
		PrivateKey:   os.Getenv("POLYMARKET_PRIVATE_KEY"),
		WalletAddr:   os.Getenv("WALLET_ADDRESS"),
		ProxyAddress: os.Getenv("POLYMARKET_PROXY_ADDRESS"),

		MinProfitThreshold: getDecimalOrDefault("MIN_PROFIT_THRESHOLD", "0.005"),
		MaxPositionSizeUSD: getDecimalOrDefault("MAX_POSITION_SIZE_USD", "100"),
		MinLiquidityUSD:    getDecimalOrDefault("MIN_LIQUIDITY_USD", "10000"),
		MaxDaysUntilRes:    getIntOrDefault("MAX_DAYS_UNTIL_RESOLUTION", 7),
		PollInterval:       getDurationOrDefault("POLL_INTERVAL_SECONDS", 2*time.Second),

		NumWSConnections:    getIntOrDefault("NUM_WS_CONNECTIONS", 6),
		WSDialTimeout:       getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSReconnectInitial:  getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectFirstMax: getDurationOrDefault("WS_RECONNECT_FIRST_MAX", 30*time.Second),
		WSReconnectCeiling:  getDurationOrDefault("WS_RECONNECT_CEILING", 60*time.Second),
		WSMessageBuffer:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 10000),
		WatchdogInterval:    getDurationOrDefault("WS_WATCHDOG_INTERVAL", 30*time.Second),
		StaleThreshold:      getDurationOrDefault("WS_STALE_THRESHOLD", 60*time.Second),

		MarketRefreshInterval:  getDurationOrDefault("MARKET_REFRESH_INTERVAL", 10*time.Minute),
		MarketRefreshTolerance: getIntOrDefault("MARKET_REFRESH_TOLERANCE", 10),

		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),

		Socks5Host: os.Getenv("SOCKS5_PROXY_HOST"),
		Socks5Port: getIntOrDefault("SOCKS5_PROXY_PORT", 1080),
		Socks5User: os.Getenv("SOCKS5_PROXY_USER"),
		Socks5Pass: os.Getenv("SOCKS5_PROXY_PASS"),

		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "polyarb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", ""),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polyarb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT cannot be empty")
	}

	if c.WSURL == "" {
		return errors.New("POLYMARKET_WS_URL cannot be empty")
	}

	if c.GammaURL == "" {
		return errors.New("POLYMARKET_GAMMA_API_URL cannot be empty")
	}

	zero := decimal.Zero
	maxThreshold := decimal.NewFromFloat(0.1)
	if c.MinProfitThreshold.LessThan(zero) || c.MinProfitThreshold.GreaterThan(maxThreshold) {
		return fmt.Errorf("MIN_PROFIT_THRESHOLD must be in [0, 0.1], got %s", c.MinProfitThreshold)
	}

	if c.MaxPositionSizeUSD.LessThanOrEqual(zero) {
		return fmt.Errorf("MAX_POSITION_SIZE_USD must be positive, got %s", c.MaxPositionSizeUSD)
	}

	if c.MinLiquidityUSD.LessThan(zero) {
		return fmt.Errorf("MIN_LIQUIDITY_USD must be non-negative, got %s", c.MinLiquidityUSD)
	}

	if c.MaxDaysUntilRes < 1 || c.MaxDaysUntilRes > 365 {
		return fmt.Errorf("MAX_DAYS_UNTIL_RESOLUTION must be in [1, 365], got %d", c.MaxDaysUntilRes)
	}

	if c.NumWSConnections < 1 || c.NumWSConnections > 20 {
		return fmt.Errorf("NUM_WS_CONNECTIONS must be in [1, 20], got %d", c.NumWSConnections)
	}

	if c.PollInterval < 500*time.Millisecond || c.PollInterval > time.Minute {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be in [0.5s, 60s], got %s", c.PollInterval)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	return nil
}

// TradingConfigured reports whether live-trading credentials are present.
func (c *Config) TradingConfigured() bool {
	return c.PrivateKey != "" && c.APIKey != "" && c.APISecret != "" && c.Passphrase != ""
}

// Socks5ProxyURL returns the SOCKS5 proxy URL for order-submission
// traffic, or nil when no proxy is configured. The socks5h scheme makes
// DNS resolution traverse the tunnel.
func (c *Config) Socks5ProxyURL() *url.URL {
	if c.Socks5Host == "" {
		return nil
	}

	u := &url.URL{
		Scheme: "socks5h",
		Host:   fmt.Sprintf("%s:%d", c.Socks5Host, c.Socks5Port),
	}
	if c.Socks5User != "" {
		u.User = url.UserPassword(c.Socks5User, c.Socks5Pass)
	}

	return u
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getDecimalOrDefault(key string, defaultValue string) decimal.Decimal {
	fallback := decimal.RequireFromString(defaultValue)

	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return fallback
	}

	return d
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Accept bare seconds for compatibility with the legacy settings file.
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}
