package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the trading core.
type Config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	Account         string        `env:"ACCOUNT" envDefault:"local"`
	InstrumentsFile string        `env:"INSTRUMENTS_FILE" envDefault:"instruments.json"`
	Timeframes      []string      `env:"TIMEFRAMES" envSeparator:"," envDefault:"1m,5m,15m,1h,4h,1d"`
	WebhookTimeout  time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from the environment (and a .env file if
// present), applies defaults, and validates values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d", cfg.Port)
	}
	if !isValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.Account == "" {
		return nil, fmt.Errorf("ACCOUNT must not be empty")
	}
	if len(cfg.Timeframes) == 0 {
		return nil, fmt.Errorf("TIMEFRAMES must not be empty")
	}

	return cfg, nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// InstrumentSpec is one instrument definition in the instruments file.
// Prices are dollars and are converted to cents at registration.
type InstrumentSpec struct {
	Symbol   string  `json:"symbol"`
	TickSize float64 `json:"tick_size"`
	LotSize  int64   `json:"lot_size"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
}

// SeedOrder is one resting limit order seeded into a book at startup.
type SeedOrder struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// InstrumentsFile is the parsed instruments config file: the tradable
// instruments plus optional seed liquidity for their books.
type InstrumentsFile struct {
	Instruments []InstrumentSpec `json:"instruments"`
	Book        []SeedOrder      `json:"book"`
}

// LoadInstruments reads and validates the instruments config file.
func LoadInstruments(path string) (*InstrumentsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instruments file: %w", err)
	}

	var f InstrumentsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse instruments file: %w", err)
	}

	if len(f.Instruments) == 0 {
		return nil, fmt.Errorf("instruments file must define at least one instrument")
	}
	for i, spec := range f.Instruments {
		if spec.Symbol == "" {
			return nil, fmt.Errorf("instrument %d: symbol is required", i)
		}
		if spec.TickSize <= 0 {
			return nil, fmt.Errorf("instrument %s: tick_size must be positive", spec.Symbol)
		}
		if spec.LotSize <= 0 {
			return nil, fmt.Errorf("instrument %s: lot_size must be positive", spec.Symbol)
		}
		if spec.MinPrice <= 0 || spec.MaxPrice < spec.MinPrice {
			return nil, fmt.Errorf("instrument %s: invalid price bounds", spec.Symbol)
		}
	}
	for i, seed := range f.Book {
		if seed.Symbol == "" {
			return nil, fmt.Errorf("seed order %d: symbol is required", i)
		}
		if seed.Side != "buy" && seed.Side != "sell" {
			return nil, fmt.Errorf("seed order %d: side must be 'buy' or 'sell'", i)
		}
		if seed.Price <= 0 || seed.Quantity <= 0 {
			return nil, fmt.Errorf("seed order %d: price and quantity must be positive", i)
		}
	}

	return &f, nil
}
