package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	ReserveIn  string
	ReserveOut string
	AmountIn   string
	AmountOut  string
	IlpRate    uint64
	LogLevel   string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
// Exactly one of amount-in and amount-out selects the quote direction.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"log-level": "warn",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		ReserveIn:  v.GetString("reserve-in"),
		ReserveOut: v.GetString("reserve-out"),
		AmountIn:   v.GetString("amount-in"),
		AmountOut:  v.GetString("amount-out"),
		IlpRate:    v.GetUint64("ilp-rate"),
		LogLevel:   v.GetString("log-level"),
	}
	if cfg.ReserveIn == "" || cfg.ReserveOut == "" {
		return cfg, fmt.Errorf("reserve-in and reserve-out are required")
	}
	if (cfg.AmountIn == "") == (cfg.AmountOut == "") {
		return cfg, fmt.Errorf("exactly one of amount-in or amount-out is required")
	}
	return cfg, nil
}
