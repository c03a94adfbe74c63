/*
Package config loads process configuration from the environment.

PURPOSE:

	Centralizes the knobs the engine and server read at startup. A .env
	file in the working directory is honored when present; explicit
	environment variables and command-line flags win over it.

VARIABLES:

	HUMIDOR_PORT       HTTP server port            (default 8080)
	HUMIDOR_DB         SQLite database path        (default humidor.db)
	HUMIDOR_TAX_RATE   Default tax rate, percent   (default 8.6)
	LOG_LEVEL          logrus level                (default info)
	LOG_JSON           "true" for JSON log output  (default text)

TAX RATE:

	The default tax rate lives here explicitly rather than as hidden
	process-global state. Every resupply call still takes its rate as a
	parameter; a successful resupply promotes that rate to the new default.
*/
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// DefaultTaxRatePercent is used when no override is configured.
var DefaultTaxRatePercent = decimal.NewFromFloat(8.6)

type Config struct {
	Port   int
	DBPath string

	// DefaultTaxRate is a rate fraction (0.086 for 8.6%).
	DefaultTaxRate decimal.Decimal
}

// Load reads configuration from .env (if present) and the environment.
func Load() *Config {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:           envInt("HUMIDOR_PORT", 8080),
		DBPath:         envString("HUMIDOR_DB", "humidor.db"),
		DefaultTaxRate: inventoryRate(),
	}
	return cfg
}

func inventoryRate() decimal.Decimal {
	percent := DefaultTaxRatePercent
	if v := os.Getenv("HUMIDOR_TAX_RATE"); v != "" {
		if p, err := decimal.NewFromString(v); err == nil && !p.IsNegative() {
			percent = p
		}
	}
	return percent.Div(decimal.NewFromInt(100))
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
