package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ilpswap",
		Short:        "AMM pair with ILP fee rebalancing: simulator and event tooling",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scenario against an in-process deployment and export its logs",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().String("scenario", "", "scenario file (yaml, json or toml)")
	simulateCmd.Flags().Uint64("chain-id", 0, "override the scenario chain id")
	simulateCmd.Flags().String("start-from-rpc", "", "RPC URL whose latest block time seeds the simulated clock")
	simulateCmd.Flags().String("out", "./data/logs.jsonl", "output logs JSONL path, empty to disable")
	simulateCmd.Flags().String("typed-out", "", "optional typed events JSONL path")
	simulateCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL path, used with --typed-out")
	simulateCmd.Flags().String("pair-meta-out", "./data/pair_meta.jsonl", "pair metadata JSONL path, empty to disable")
	simulateCmd.Flags().StringSlice("address", nil, "only export logs from these addresses (comma-separated)")
	simulateCmd.Flags().StringSlice("topic0", nil, "only export these topic0 hashes or event names (comma-separated)")
	simulateCmd.Flags().Uint64("batch-size", 500, "blocks per export batch")
	simulateCmd.Flags().String("checkpoint", "", "optional export checkpoint file")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN for logs, pairs, snapshots and upkeep runs")
	simulateCmd.Flags().String("metrics-addr", "", "serve /metrics on this address")
	simulateCmd.Flags().Duration("metrics-hold", 0, "keep serving metrics this long after the run, 0 waits for a signal")
	simulateCmd.Flags().Int("max-retries", 3, "maximum retry attempts for upkeep and storage writes")
	simulateCmd.Flags().Duration("retry-backoff", 200*time.Millisecond, "initial retry backoff")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(simulateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a constant-product swap with an optional ILP fee",
		RunE:  runQuote,
	}
	quoteCmd.Flags().String("reserve-in", "", "reserve of the input token")
	quoteCmd.Flags().String("reserve-out", "", "reserve of the output token")
	quoteCmd.Flags().String("amount-in", "", "exact input amount")
	quoteCmd.Flags().String("amount-out", "", "exact output amount")
	quoteCmd.Flags().Uint64("ilp-rate", 0, "ILP fee rate on the input side in basis points")
	quoteCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.AddCommand(quoteCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed events",
		RunE:  runDecode,
	}
	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("pair-meta", "./data/pair_meta.jsonl", "pair metadata JSONL written by simulate")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(decodeCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate typed events into pair window metrics",
		RunE:  runAggregate,
	}
	aggregateCmd.Flags().String("in", "", "input typed events JSONL")
	aggregateCmd.Flags().String("out", "", "output window metrics JSONL (instead of Postgres)")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(aggregateCmd)

	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
