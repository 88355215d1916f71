package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HTTP API
	APIAddr string
	APIKey  string
	DevMode bool

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Protocol settings source. When SettingsAPIURL is empty the gateway
	// runs on the static settings below.
	SettingsAPIURL string
	SettingsAPIKey string

	// Static settings (local mode)
	DepositFeeRate     *big.Int // fraction of 1e18
	DepositsEnabled    bool
	MaxDepositAmount   *big.Int
	DepositDelayBlocks uint64

	// Block clock. When ChainRPCURL is empty a manual clock is used.
	ChainRPCURL string

	// Market swap router (comparison quotes only)
	RouterAPIURL string
	RouterAPIKey string

	// AI analytics
	OpenRouterAPIKey string

	// HTTP client settings
	HTTPTimeout time.Duration
}

func Load() *Config {
	return &Config{
		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "reserve"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// Settings source
		SettingsAPIURL: getEnv("SETTINGS_API_URL", ""),
		SettingsAPIKey: getEnv("SETTINGS_API_KEY", ""),

		// Static settings
		DepositFeeRate:     getBigEnv("DEPOSIT_FEE_RATE", "0"),
		DepositsEnabled:    getBoolEnv("DEPOSITS_ENABLED", true),
		MaxDepositAmount:   getBigEnv("MAX_DEPOSIT_AMOUNT", "0"),
		DepositDelayBlocks: getUint64Env("DEPOSIT_DELAY_BLOCKS", 0),

		// Chain
		ChainRPCURL: getEnv("CHAIN_RPC_URL", ""),

		// Router
		RouterAPIURL: getEnv("ROUTER_API_URL", ""),
		RouterAPIKey: getEnv("ROUTER_API_KEY", ""),

		// AI
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),

		// HTTP
		HTTPTimeout: getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
	}
}

// Validate rejects configurations the gateway cannot start with.
func (c *Config) Validate() error {
	if c.APIAddr == "" {
		return fmt.Errorf("API_ADDR must not be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR must not be empty")
	}
	if c.DepositFeeRate == nil || c.DepositFeeRate.Sign() < 0 {
		return fmt.Errorf("DEPOSIT_FEE_RATE must be a non-negative integer")
	}
	if c.MaxDepositAmount == nil || c.MaxDepositAmount.Sign() < 0 {
		return fmt.Errorf("MAX_DEPOSIT_AMOUNT must be a non-negative integer")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getUint64Env(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBigEnv(key, defaultVal string) *big.Int {
	val := os.Getenv(key)
	if val == "" {
		val = defaultVal
	}
	if n, ok := new(big.Int).SetString(val, 10); ok {
		return n
	}
	n, _ := new(big.Int).SetString(defaultVal, 10)
	return n
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
