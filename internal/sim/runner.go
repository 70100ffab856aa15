package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ilpswap/internal/amm"
	"ilpswap/internal/keeper"
	"ilpswap/internal/metrics"
	"ilpswap/internal/model"
)

// ErrUnexpectedSuccess marks a step declared expect_revert that went through.
var ErrUnexpectedSuccess = errors.New("expected revert")

// Options control how a scenario runs.
type Options struct {
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	MaxRetries   int
	RetryBackoff time.Duration
}

// StepResult records one executed step.
type StepResult struct {
	Index    int               `json:"index"`
	Action   string            `json:"action"`
	Pair     string            `json:"pair,omitempty"`
	Block    uint64            `json:"block"`
	Reverted bool              `json:"reverted"`
	Error    string            `json:"error,omitempty"`
	Output   map[string]string `json:"output,omitempty"`
}

// Report collects everything a scenario run produced.
type Report struct {
	Steps      []StepResult
	UpkeepRuns []model.UpkeepRun
	Snapshots  []model.PairSnapshot
}

// Build deploys the scenario's tokens and pairs and applies its rebalance settings.
func Build(ctx context.Context, sc Scenario, opts Options) (*World, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	governor, err := sc.resolveAccount(sc.Governor, DefaultGovernor)
	if err != nil {
		return nil, fmt.Errorf("governor: %w", err)
	}
	keeperAddr, err := sc.resolveAccount(sc.Keeper, DefaultKeeper)
	if err != nil {
		return nil, fmt.Errorf("keeper: %w", err)
	}
	treasury, err := sc.resolveAccount(sc.Treasury, DefaultTreasury)
	if err != nil {
		return nil, fmt.Errorf("treasury: %w", err)
	}

	w, err := NewWorld(ctx, WorldConfig{
		ChainID:   sc.ChainID,
		StartTime: sc.StartTime,
		Governor:  governor,
		Keeper:    keeperAddr,
		Treasury:  treasury,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		return nil, err
	}

	for _, spec := range sc.Tokens {
		name := spec.Name
		if name == "" {
			name = spec.Symbol
		}
		decimals := spec.Decimals
		if decimals == 0 {
			decimals = 18
		}
		if _, err := w.DeployToken(spec.Symbol, name, decimals); err != nil {
			return nil, err
		}
	}
	for _, spec := range sc.Pairs {
		admin, err := sc.resolveAccount(spec.Admin, governor)
		if err != nil {
			return nil, fmt.Errorf("pair admin: %w", err)
		}
		manager, err := sc.resolveAccount(spec.Manager, governor)
		if err != nil {
			return nil, fmt.Errorf("pair manager: %w", err)
		}
		if _, err := w.CreatePair(spec.Tokens[0], spec.Tokens[1], admin, manager); err != nil {
			return nil, err
		}
	}

	threshold := new(uint256.Int)
	if sc.Rebalance.Threshold != "" {
		if threshold, err = ParseAmount(sc.Rebalance.Threshold); err != nil {
			return nil, fmt.Errorf("threshold: %w", err)
		}
	}
	bypass := true
	if sc.Rebalance.BypassIlpFee != nil {
		bypass = *sc.Rebalance.BypassIlpFee
	}
	if err := w.ConfigureRebalance(ctx, threshold, sc.Rebalance.ProcessingFeeRate, bypass); err != nil {
		return nil, fmt.Errorf("configure rebalance: %w", err)
	}
	return w, nil
}

// Run executes the scenario's steps in order. A step that fails without expect_revert,
// or succeeds with it, stops the run; the report holds everything up to that step.
func Run(ctx context.Context, w *World, sc Scenario, opts Options) (*Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	report := &Report{}
	lastSnapshot := map[common.Address]uint64{}

	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := StepResult{Index: i, Action: step.Action, Pair: step.Pair, Output: map[string]string{}}
		err := runStep(ctx, w, sc, opts, step, &result, report)
		result.Block = w.Runtime.BlockNumber()

		switch {
		case err != nil && step.ExpectRevert:
			result.Reverted = true
			result.Error = err.Error()
			logger.Info("step reverted as expected", zap.Int("step", i), zap.String("action", step.Action), zap.Error(err))
		case err != nil:
			w.Metrics.ObserveRevert(step.Action)
			result.Reverted = true
			result.Error = err.Error()
			report.Steps = append(report.Steps, result)
			return report, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		case step.ExpectRevert:
			report.Steps = append(report.Steps, result)
			return report, fmt.Errorf("step %d (%s): %w", i, step.Action, ErrUnexpectedSuccess)
		default:
			logger.Debug("step done", zap.Int("step", i), zap.String("action", step.Action), zap.Any("output", result.Output))
		}
		report.Steps = append(report.Steps, result)

		if err := snapshotChanged(ctx, w, report, lastSnapshot); err != nil {
			return report, err
		}
	}
	logger.Info("scenario complete",
		zap.String("name", sc.Name),
		zap.Int("steps", len(report.Steps)),
		zap.Uint64("blocks", w.Runtime.BlockNumber()),
	)
	return report, nil
}

func runStep(ctx context.Context, w *World, sc Scenario, opts Options, step Step, result *StepResult, report *Report) error {
	switch step.Action {
	case ActionAdvance:
		result.Output["time"] = fmt.Sprint(w.Clock.Advance(step.Seconds))
		return nil
	case ActionUpkeep:
		return runUpkeep(ctx, w, sc, opts, step, result, report)
	}

	pair, err := stepPair(w, step)
	if err != nil {
		return err
	}
	account, err := sc.resolveAccount(step.Account, w.Governor)
	if err != nil {
		return err
	}

	switch step.Action {
	case ActionMint:
		amount0, err := ParseAmount(step.Amount0)
		if err != nil {
			return fmt.Errorf("amount0: %w", err)
		}
		amount1, err := ParseAmount(step.Amount1)
		if err != nil {
			return fmt.Errorf("amount1: %w", err)
		}
		liquidity, err := w.AddLiquidity(ctx, pair, account, amount0, amount1)
		if err != nil {
			return err
		}
		result.Output["liquidity"] = liquidity.Dec()
		return nil

	case ActionBurn:
		var shares *uint256.Int
		if step.Liquidity != "" && step.Liquidity != "all" {
			if shares, err = ParseAmount(step.Liquidity); err != nil {
				return fmt.Errorf("liquidity: %w", err)
			}
		}
		amount0, amount1, err := w.RemoveLiquidity(ctx, pair, account, shares)
		if err != nil {
			return err
		}
		result.Output["amount0"] = amount0.Dec()
		result.Output["amount1"] = amount1.Dec()
		return nil

	case ActionSwap:
		tok, err := w.Token(step.TokenIn)
		if err != nil {
			return err
		}
		amountIn, err := ParseAmount(step.AmountIn)
		if err != nil {
			return fmt.Errorf("amount_in: %w", err)
		}
		var minOut *uint256.Int
		if step.MinOut != "" {
			if minOut, err = ParseAmount(step.MinOut); err != nil {
				return fmt.Errorf("min_out: %w", err)
			}
		}
		out, err := w.SwapExactIn(ctx, pair, account, tok.Address(), amountIn, minOut)
		if err != nil {
			return err
		}
		result.Output["amount_out"] = out.Dec()
		return nil

	case ActionToggleIlp:
		var sender common.Address
		if step.Account != "" {
			sender = account
		}
		return w.ToggleIlp(ctx, pair, sender, step.Active)

	case ActionSetIlpRates:
		var sender common.Address
		if step.Account != "" {
			sender = account
		}
		return w.SetIlpRates(ctx, pair, sender, step.Rate0, step.Rate1)

	case ActionSync:
		return w.Sync(ctx, pair, account)

	case ActionSkim:
		to, err := sc.resolveAccount(step.To, account)
		if err != nil {
			return err
		}
		return w.Skim(ctx, pair, account, to)

	case ActionDonate:
		tok, err := w.Token(step.Token)
		if err != nil {
			return err
		}
		amount, err := ParseAmount(step.Amount)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		return w.Donate(ctx, pair, account, tok.Address(), amount)
	}
	return fmt.Errorf("unknown action %q", step.Action)
}

// runUpkeep runs one keeper pass. Any failed pair counts as a revert of the step.
func runUpkeep(ctx context.Context, w *World, sc Scenario, opts Options, step Step, result *StepResult, report *Report) error {
	caller, err := sc.resolveAccount(step.Account, w.Keeper)
	if err != nil {
		return err
	}
	var pairs keeper.PairLister = w.Registry
	if step.Pair != "" {
		pair, err := stepPair(w, step)
		if err != nil {
			return err
		}
		pairs = pairList{pair.Address()}
	}

	k := keeper.New(keeper.Config{
		Caller:       caller,
		Force:        step.Force,
		MaxRetries:   opts.MaxRetries,
		RetryBackoff: opts.RetryBackoff,
	}, w.Runtime, w.Accumulator, pairs, opts.Logger, opts.Metrics)
	runs, err := k.Run(ctx)
	report.UpkeepRuns = append(report.UpkeepRuns, runs...)
	if err != nil {
		return err
	}

	var failures []error
	for _, run := range runs {
		result.Output[run.Pair] = run.Status
		if run.Status == keeper.StatusFailed {
			failures = append(failures, fmt.Errorf("%s: %s", run.Pair, run.Error))
		}
	}
	return errors.Join(failures...)
}

func stepPair(w *World, step Step) (*amm.Pair, error) {
	if step.Pair == "" {
		pairs := w.Pairs()
		if len(pairs) == 1 {
			return pairs[0], nil
		}
		return nil, fmt.Errorf("step %s needs a pair", step.Action)
	}
	a, b, err := splitPair(step.Pair)
	if err != nil {
		return nil, err
	}
	return w.Pair(a, b)
}

// snapshotChanged records a snapshot of every pair when a new block was produced.
func snapshotChanged(ctx context.Context, w *World, report *Report, last map[common.Address]uint64) error {
	block := w.Runtime.BlockNumber()
	for _, pair := range w.Pairs() {
		if seen, ok := last[pair.Address()]; ok && seen == block {
			continue
		}
		snap, err := w.Snapshot(ctx, pair)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", pair.Address().Hex(), err)
		}
		report.Snapshots = append(report.Snapshots, snap)
		last[pair.Address()] = block
	}
	return nil
}

type pairList []common.Address

func (p pairList) AllPairs() []common.Address { return p }
