// Package keeper is the in-process automation caller: one pass over the registered
// pairs, checking and performing upkeep on each.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ilpswap/internal/chain"
	"ilpswap/internal/ilp"
	"ilpswap/internal/metrics"
	"ilpswap/internal/model"
	"ilpswap/internal/retry"
)

// Run statuses beyond the ones reported by the accumulator.
const (
	StatusNotNeeded = "not_needed"
	StatusFailed    = "failed"
)

// Executor runs calls against contract state.
type Executor interface {
	Execute(ctx context.Context, sender common.Address, fn func(*chain.Call) error) error
	View(ctx context.Context, fn func(*chain.Call) error) error
	BlockNumber() uint64
	ChainID() uint64
}

// Upkeeper is the accumulator surface driven by the keeper.
type Upkeeper interface {
	CheckUpkeep(call *chain.Call, checkData []byte) (bool, []byte, error)
	PerformUpkeep(call *chain.Call, performData []byte) (*ilp.UpkeepResult, error)
}

// PairLister enumerates the pairs to service.
type PairLister interface {
	AllPairs() []common.Address
}

// Config holds keeper settings.
type Config struct {
	// Caller is the identity PerformUpkeep is sent from.
	Caller common.Address
	// Force performs upkeep even when CheckUpkeep reports nothing to do.
	Force        bool
	MaxRetries   int
	RetryBackoff time.Duration
}

// Keeper services every pair once per Run.
type Keeper struct {
	cfg      Config
	exec     Executor
	upkeeper Upkeeper
	pairs    PairLister
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func New(cfg Config, exec Executor, upkeeper Upkeeper, pairs PairLister, logger *zap.Logger, m *metrics.Metrics) *Keeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Keeper{
		cfg:      cfg,
		exec:     exec,
		upkeeper: upkeeper,
		pairs:    pairs,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Run checks and performs upkeep for each pair and reports one record per pair. A pair
// that fails does not stop the pass; only context cancellation does.
func (k *Keeper) Run(ctx context.Context) ([]model.UpkeepRun, error) {
	if k.exec == nil || k.upkeeper == nil || k.pairs == nil {
		return nil, fmt.Errorf("keeper is not wired")
	}
	if k.cfg.Caller == (common.Address{}) {
		return nil, fmt.Errorf("keeper caller is required")
	}

	pairs := k.pairs.AllPairs()
	runs := make([]model.UpkeepRun, 0, len(pairs))
	for _, pair := range pairs {
		select {
		case <-ctx.Done():
			return runs, ctx.Err()
		default:
		}
		runs = append(runs, k.service(ctx, pair))
	}

	var rebalanced, failed int
	for _, run := range runs {
		switch run.Status {
		case string(ilp.StatusRebalanced):
			rebalanced++
		case StatusFailed:
			failed++
		}
	}
	k.logger.Info("upkeep pass complete",
		zap.Int("pairs", len(pairs)),
		zap.Int("rebalanced", rebalanced),
		zap.Int("failed", failed),
	)
	return runs, nil
}

func (k *Keeper) service(ctx context.Context, pair common.Address) model.UpkeepRun {
	run := model.UpkeepRun{
		ChainID: k.exec.ChainID(),
		Pair:    pair.Hex(),
		RanAt:   k.now().UTC(),
	}

	data, err := ilp.EncodePerformData(pair)
	if err != nil {
		return k.fail(run, err)
	}

	needed, performData, err := k.check(ctx, data)
	if err != nil {
		return k.fail(run, fmt.Errorf("check upkeep: %w", err))
	}
	if !needed {
		if !k.cfg.Force {
			run.Status = StatusNotNeeded
			run.BlockNumber = k.exec.BlockNumber()
			k.logger.Debug("upkeep not needed", zap.String("pair", run.Pair))
			return run
		}
		performData = data
	}

	var result *ilp.UpkeepResult
	attempts, err := retry.Do(ctx, retry.Policy{
		MaxRetries: k.cfg.MaxRetries,
		BaseDelay:  k.cfg.RetryBackoff,
		Retryable:  Retryable,
		OnRetry: func(next int, err error) {
			k.metrics.ObserveUpkeepRetry()
			k.logger.Warn("perform upkeep failed, retrying", zap.String("pair", run.Pair), zap.Int("attempt", next), zap.Error(err))
		},
	}, func(ctx context.Context) error {
		return k.exec.Execute(ctx, k.cfg.Caller, func(call *chain.Call) error {
			var err error
			result, err = k.upkeeper.PerformUpkeep(call, performData)
			return err
		})
	})
	run.Attempts = attempts
	run.BlockNumber = k.exec.BlockNumber()
	if err != nil {
		return k.fail(run, err)
	}

	run.Status = string(result.Status)
	run.Reason = string(result.Reason)
	run.Fee0 = amountString(result.Fee0)
	run.Fee1 = amountString(result.Fee1)
	run.Swapped = amountString(result.Swapped)
	run.Liquidity = amountString(result.Liquidity)
	k.logger.Info("upkeep performed",
		zap.String("pair", run.Pair),
		zap.String("status", run.Status),
		zap.String("reason", run.Reason),
		zap.String("liquidity", run.Liquidity),
		zap.Int("attempts", attempts),
	)
	return run
}

func (k *Keeper) check(ctx context.Context, data []byte) (bool, []byte, error) {
	var (
		needed      bool
		performData []byte
	)
	err := k.exec.View(ctx, func(call *chain.Call) error {
		var err error
		needed, performData, err = k.upkeeper.CheckUpkeep(call, data)
		return err
	})
	return needed, performData, err
}

func (k *Keeper) fail(run model.UpkeepRun, err error) model.UpkeepRun {
	run.Status = StatusFailed
	run.Error = err.Error()
	k.metrics.ObserveRevert("perform_upkeep")
	k.logger.Warn("upkeep failed", zap.String("pair", run.Pair), zap.Int("attempts", run.Attempts), zap.Error(err))
	return run
}

// Retryable rejects errors that another attempt with the same state cannot fix.
func Retryable(err error) bool {
	for _, permanent := range []error{ilp.ErrForbidden, ilp.ErrInvalidConfig, ilp.ErrInvalidPerformData, context.Canceled} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
