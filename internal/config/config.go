package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the betmarket backend
type Config struct {
	// Server settings
	ServerPort string

	// Storage: path to the sqlite database, empty for in-memory
	StorePath string

	// Price feed settings
	PriceFeedURL   string
	PriceFreshness time.Duration // max quote age for automatic resolution

	// Market settings
	CollateralToken string
	SyntheticBudget uint64 // per-market house liquidity, smallest unit
	HouseAddr       string // account the synthetic budget is drawn from
	HouseFunds      uint64 // initial house balance for the in-memory custodian
	ResolveInterval time.Duration

	// Identities
	OwnerAddr    string // registry owner, allowed to swap the oracle and sweep
	AttestorAddr string // trusted settlement attestor, empty disables verification
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		StorePath:       getEnv("STORE_PATH", ""),
		PriceFeedURL:    getEnv("PRICE_FEED_URL", ""),
		PriceFreshness:  getEnvDuration("PRICE_FRESHNESS", 2*time.Minute),
		CollateralToken: getEnv("COLLATERAL_TOKEN", "0x0000000000000000000000000000000000000000"),
		SyntheticBudget: getEnvUint("SYNTHETIC_BUDGET", 1_000_000),
		HouseAddr:       getEnv("HOUSE_ADDR", "house"),
		HouseFunds:      getEnvUint("HOUSE_FUNDS", 1_000_000_000),
		ResolveInterval: getEnvDuration("RESOLVE_INTERVAL", 10*time.Second),
		OwnerAddr:       getEnv("OWNER_ADDR", ""),
		AttestorAddr:    getEnv("ATTESTOR_ADDR", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if u, err := strconv.ParseUint(value, 10, 64); err == nil {
			return u
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
