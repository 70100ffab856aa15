// Package indexer exports committed runtime logs to storage in block batches, resuming
// from a checkpoint.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"ilpswap/internal/model"
	"ilpswap/internal/retry"
	"ilpswap/internal/storage"
)

// LogSource is where committed logs are read from.
type LogSource interface {
	ChainID() uint64
	BlockNumber() uint64
	BlockTimestamp(number uint64) (uint64, bool)
	FilterLogs(from, to uint64, addresses []common.Address, topic0 []common.Hash) []types.Log
}

// RunConfig holds exporter settings.
type RunConfig struct {
	FromBlock      uint64
	ToBlock        uint64
	Addresses      []common.Address
	Topic0         []common.Hash
	BatchSize      uint64
	CheckpointPath string
	MaxRetries     int
	RetryBackoff   time.Duration
}

// Runner copies logs from a source into storage.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	storage    storage.Storage
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

func NewRunner(cfg RunConfig, source LogSource, sink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		storage:    sink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath),
	}
}

// Run exports every log in the configured block range and returns how many were written.
// ToBlock zero means the source's latest block.
func (r *Runner) Run(ctx context.Context) (int, error) {
	if r.source == nil {
		return 0, fmt.Errorf("log source is nil")
	}
	if r.storage == nil {
		return 0, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return 0, fmt.Errorf("batch size must be greater than zero")
	}

	chainID := r.source.ChainID()
	from, to := r.cfg.FromBlock, r.cfg.ToBlock
	if from == 0 {
		from = 1
	}
	if to == 0 {
		to = r.source.BlockNumber()
	}

	cp, ok, err := r.checkpoint.Load(chainID)
	if err != nil {
		return 0, err
	}
	if ok && cp.LastProcessedBlock >= from {
		from = cp.LastProcessedBlock + 1
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
	}
	if from > to {
		r.logger.Info("nothing to export", zap.Uint64("from", from), zap.Uint64("to", to))
		return 0, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	var written int
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		logs := r.source.FilterLogs(blockRange.From, blockRange.To, r.cfg.Addresses, r.cfg.Topic0)
		ingestedAt := time.Now().UTC()
		records := make([]model.LogRecord, 0, len(logs))
		for _, log := range logs {
			if r.isDuplicate(log) {
				continue
			}
			ts, ok := r.source.BlockTimestamp(log.BlockNumber)
			if !ok {
				return written, fmt.Errorf("block timestamp %d: unknown block", log.BlockNumber)
			}
			records = append(records, model.NewLogRecord(chainID, log, ts, ingestedAt))
		}

		if err := r.store(ctx, records); err != nil {
			return written, fmt.Errorf("store logs: %w", err)
		}
		if err := r.checkpoint.Save(chainID, blockRange.To); err != nil {
			return written, err
		}
		written += len(records)

		r.logger.Debug("batch exported", zap.Int("logs", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	r.logger.Info("export complete", zap.Int("logs", written), zap.Uint64("from", from), zap.Uint64("to", to))
	return written, nil
}

func (r *Runner) store(ctx context.Context, records []model.LogRecord) error {
	_, err := retry.Do(ctx, retry.Policy{
		MaxRetries: r.cfg.MaxRetries,
		BaseDelay:  r.cfg.RetryBackoff,
		OnRetry: func(next int, err error) {
			r.logger.Warn("store logs failed", zap.Error(err), zap.Int("attempt", next))
		},
	}, func(context.Context) error {
		return r.storage.PutLogBatch(records)
	})
	return err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
