package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ILPSWAP_PG_DSN.
const EnvPrefix = "ILPSWAP"

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Scenario     string
	ChainID      uint64
	StartFromRPC string
	Out          string
	TypedOut     string
	Errors       string
	PairMetaOut  string
	Addresses    []string
	Topic0       []string
	BatchSize    uint64
	Checkpoint   string
	PGDSN        string
	MetricsAddr  string
	MetricsHold  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":           "./data/logs.jsonl",
		"errors":        "./data/decode_errors.jsonl",
		"pair-meta-out": "./data/pair_meta.jsonl",
		"batch-size":    uint64(500),
		"max-retries":   3,
		"retry-backoff": 200 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		Scenario:     v.GetString("scenario"),
		ChainID:      v.GetUint64("chain-id"),
		StartFromRPC: v.GetString("start-from-rpc"),
		Out:          v.GetString("out"),
		TypedOut:     v.GetString("typed-out"),
		Errors:       v.GetString("errors"),
		PairMetaOut:  v.GetString("pair-meta-out"),
		Addresses:    getStringSlice(v, "address"),
		Topic0:       getStringSlice(v, "topic0"),
		BatchSize:    v.GetUint64("batch-size"),
		Checkpoint:   v.GetString("checkpoint"),
		PGDSN:        v.GetString("pg-dsn"),
		MetricsAddr:  v.GetString("metrics-addr"),
		MetricsHold:  v.GetDuration("metrics-hold"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}
	if cfg.Scenario == "" {
		return cfg, fmt.Errorf("scenario path is required")
	}
	return cfg, nil
}

// newViper builds a viper instance layered as flags > env > config file > defaults.
// Without an explicit file, ./config.* is read when present.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
