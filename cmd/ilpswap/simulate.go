package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ilpswap/internal/chain"
	"ilpswap/internal/config"
	"ilpswap/internal/events"
	"ilpswap/internal/indexer"
	"ilpswap/internal/metrics"
	"ilpswap/internal/model"
	"ilpswap/internal/sim"
	"ilpswap/internal/storage"
	"ilpswap/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := sim.LoadScenario(cfg.Scenario)
	if err != nil {
		return err
	}
	if cfg.ChainID != 0 {
		sc.ChainID = cfg.ChainID
	}
	if cfg.StartFromRPC != "" {
		start, err := rpcStartTime(ctx, cfg.StartFromRPC)
		if err != nil {
			return err
		}
		sc.StartTime = start
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	srv := startMetricsServer(cfg.MetricsAddr, reg, logger)

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.String("name", sc.Name),
		zap.Uint64("chain_id", sc.ChainID),
		zap.Int("steps", len(sc.Steps)),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	opts := sim.Options{
		Logger:       logger,
		Metrics:      m,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}
	w, err := sim.Build(ctx, sc, opts)
	if err != nil {
		return err
	}
	report, runErr := sim.Run(ctx, w, sc, opts)
	if report == nil {
		return runErr
	}
	if runErr != nil {
		logger.Error("scenario stopped", zap.Error(runErr))
	}

	if err := exportRun(ctx, cfg, w, report, logger); err != nil {
		return err
	}

	logger.Info("simulate complete",
		zap.Int("steps", len(report.Steps)),
		zap.Int("upkeep_runs", len(report.UpkeepRuns)),
		zap.Int("snapshots", len(report.Snapshots)),
		zap.Uint64("blocks", w.Runtime.BlockNumber()),
	)

	if srv != nil {
		holdMetrics(ctx, srv, cfg.MetricsHold, logger)
	}
	return runErr
}

func exportRun(ctx context.Context, cfg config.SimulateConfig, w *sim.World, report *sim.Report, logger *zap.Logger) error {
	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	topic0, err := indexer.ParseTopic0(cfg.Topic0)
	if err != nil {
		return err
	}

	var (
		store *postgres.Store
		file  storage.Storage
	)
	if cfg.Out != "" {
		file = storage.NewJsonlStorage(cfg.Out)
	}
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := store.UpsertPairs(ctx, w.PairRecords()); err != nil {
			return err
		}
	}

	var sink storage.Storage
	if store != nil {
		sink = storage.Multi(file, store)
	} else if file != nil {
		sink = file
	}
	if sink != nil {
		runner := indexer.NewRunner(indexer.RunConfig{
			FromBlock:      1,
			Addresses:      addresses,
			Topic0:         topic0,
			BatchSize:      cfg.BatchSize,
			CheckpointPath: cfg.Checkpoint,
			MaxRetries:     cfg.MaxRetries,
			RetryBackoff:   cfg.RetryBackoff,
		}, w.Runtime, sink, logger)
		if _, err := runner.Run(ctx); err != nil {
			return err
		}
	}

	if cfg.PairMetaOut != "" {
		if err := w.PairMeta.WriteJSONL(cfg.PairMetaOut); err != nil {
			return err
		}
	}
	if cfg.TypedOut != "" {
		if err := writeTypedEvents(ctx, cfg, w, logger); err != nil {
			return err
		}
	}

	if store != nil {
		if err := store.UpsertPairSnapshots(ctx, report.Snapshots); err != nil {
			return err
		}
		if err := store.InsertUpkeepRuns(ctx, report.UpkeepRuns); err != nil {
			return err
		}
	}
	return nil
}

// writeTypedEvents decodes the runtime's committed logs without a raw log round trip.
func writeTypedEvents(ctx context.Context, cfg config.SimulateConfig, w *sim.World, logger *zap.Logger) error {
	decoder, err := events.NewDecoder(events.DecoderConfig{Pairs: w.PairMeta})
	if err != nil {
		return err
	}
	outWriter, err := storage.NewJSONLWriter(cfg.TypedOut, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	d := &decodeRun{decoder: decoder, out: outWriter}
	if cfg.Errors != "" {
		errWriter, err := storage.NewJSONLWriter(cfg.Errors, false)
		if err != nil {
			return err
		}
		defer errWriter.Close()
		d.errs = errWriter
	}

	chainID := w.Runtime.ChainID()
	ingestedAt := time.Now().UTC()
	for _, log := range w.Runtime.Logs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ts, _ := w.Runtime.BlockTimestamp(log.BlockNumber)
		if err := d.decode(model.NewLogRecord(chainID, log, ts, ingestedAt)); err != nil {
			return err
		}
	}
	d.log(logger)
	return nil
}

func rpcStartTime(ctx context.Context, url string) (uint64, error) {
	clock, err := chain.NewRPCClock(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("connect rpc: %w", err)
	}
	defer clock.Close()
	ts, err := clock.Now(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest block time: %w", err)
	}
	return ts, nil
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}

// holdMetrics keeps the metrics endpoint up for hold, or until ctx ends when hold is zero.
func holdMetrics(ctx context.Context, srv *http.Server, hold time.Duration, logger *zap.Logger) {
	if hold > 0 {
		timer := time.NewTimer(hold)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		timer.Stop()
	} else {
		logger.Info("run finished, metrics stay up until interrupted")
		<-ctx.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
}
