package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ilpswap/internal/events"
	"ilpswap/internal/model"
	"ilpswap/internal/storage"
)

const (
	feeMethodSwapIn  = "lp_from_swap_in+ilp_from_deposits"
	defaultBatchSize = 1000
)

// Sink receives aggregated rows. postgres.Store implements it.
type Sink interface {
	UpsertPairs(ctx context.Context, pairs []model.Pair) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PairWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Stats summarizes one aggregation pass.
type Stats struct {
	Total   int
	Windows int
	Skipped int
	Failed  int
}

// Aggregator folds typed events into per-pair window metrics.
type Aggregator struct {
	cfg          Config
	sink         Sink
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	pairSeen     map[string]model.Pair
	batch        []model.PairWindowMetrics
	pairs        []model.Pair
}

func NewAggregator(cfg Config, sink Sink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
		pairSeen:     make(map[string]model.Pair),
	}
}

// Run aggregates a typed events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) (Stats, error) {
	var stats Stats
	if a.sink == nil {
		return stats, fmt.Errorf("sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return stats, fmt.Errorf("window seconds must be > 0")
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return stats, err
	}
	maxTs := startTs

	err = storage.ReadJSONL(inputPath, func(line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			a.logger.Warn("decode typed event", zap.Error(err))
			return nil
		}
		if record.Timestamp <= startTs || !aggregated(record.EventName) {
			stats.Skipped++
			return nil
		}

		added, err := a.add(ctx, record, &stats)
		if err != nil {
			return err
		}
		if added && record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	for key, acc := range a.accumulators {
		a.close(acc, &stats)
		delete(a.accumulators, key)
	}
	if err := a.flush(ctx); err != nil {
		return stats, err
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return stats, err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", stats.Total),
		zap.Int("windows", stats.Windows),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (a *Aggregator) add(ctx context.Context, record model.TypedEventRecord, stats *Stats) (bool, error) {
	pair, err := pairOf(record)
	if err != nil {
		stats.Failed++
		a.logger.Warn("resolve pair", zap.Error(err), zap.String("event", record.EventName))
		return false, nil
	}

	start := windowStart(record.Timestamp, a.cfg.WindowSeconds)
	key := pairKey(pair)
	acc := a.accumulators[key]
	if acc != nil && acc.WindowStart != start {
		a.close(acc, stats)
		acc = nil
	}
	if acc == nil {
		acc = NewAccumulator(record, pair, start, start+a.cfg.WindowSeconds)
		a.accumulators[key] = acc
	}

	if err := acc.AddEvent(record); err != nil {
		stats.Failed++
		a.logger.Warn("aggregate event", zap.Error(err), zap.String("pair", pair), zap.String("event", record.EventName))
		return false, nil
	}

	if len(a.batch) >= a.cfg.BatchSize {
		if err := a.flush(ctx); err != nil {
			return false, err
		}
		if err := a.saveState(ctx); err != nil {
			return false, err
		}
	}
	return true, nil
}

// aggregated reports whether an event feeds window metrics.
func aggregated(name string) bool {
	switch name {
	case events.Swap, events.Sync, events.FeeDeposited, events.Rebalanced:
		return true
	}
	return false
}

// close turns a finished window into rows queued for the sink.
func (a *Aggregator) close(acc *Accumulator, stats *Stats) {
	metrics, pair := a.windowMetrics(acc)
	if metrics == nil {
		return
	}
	a.batch = append(a.batch, *metrics)
	stats.Windows++
	if pair != nil {
		a.pairs = append(a.pairs, *pair)
	}
}

func (a *Aggregator) flush(ctx context.Context) error {
	if len(a.pairs) > 0 {
		if err := a.sink.UpsertPairs(ctx, a.pairs); err != nil {
			return err
		}
	}
	if len(a.batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, a.batch); err != nil {
			return err
		}
	}
	a.pairs = a.pairs[:0]
	a.batch = a.batch[:0]
	return nil
}

func (a *Aggregator) windowMetrics(acc *Accumulator) (*model.PairWindowMetrics, *model.Pair) {
	meta := acc.PairMeta
	if meta.Token0 == "" || meta.Token1 == "" {
		a.logger.Warn("missing pair meta", zap.String("pair", acc.PairAddress))
		return nil, nil
	}

	var reserve0, reserve1 *string
	if acc.Reserve0 != nil {
		v := formatTokenAmount(acc.Reserve0, meta.Decimals0)
		reserve0 = &v
	}
	if acc.Reserve1 != nil {
		v := formatTokenAmount(acc.Reserve1, meta.Decimals1)
		reserve1 = &v
	}

	fee0 := sum(acc.LpFee0, acc.IlpFee0)
	fee1 := sum(acc.LpFee1, acc.IlpFee1)
	feeRate0, feeRate1 := computeFeeRates(fee0, fee1, acc.Reserve0, acc.Reserve1)

	metrics := &model.PairWindowMetrics{
		ChainID:        acc.ChainID,
		PairAddress:    acc.PairAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		Volume0:        formatTokenAmount(acc.Volume0, meta.Decimals0),
		Volume1:        formatTokenAmount(acc.Volume1, meta.Decimals1),
		LpFee0:         formatTokenAmount(acc.LpFee0, meta.Decimals0),
		LpFee1:         formatTokenAmount(acc.LpFee1, meta.Decimals1),
		IlpFee0:        formatTokenAmount(acc.IlpFee0, meta.Decimals0),
		IlpFee1:        formatTokenAmount(acc.IlpFee1, meta.Decimals1),
		Reserve0:       reserve0,
		Reserve1:       reserve1,
		FeeRate0:       feeRate0,
		FeeRate1:       feeRate1,
		APR:            computeAPR(feeRate0, feeRate1, a.cfg.WindowSeconds),
		Rebalances:     acc.Rebalances,
		FeeMethod:      feeMethodSwapIn,
	}
	return metrics, a.registerPair(acc)
}

func (a *Aggregator) registerPair(acc *Accumulator) *model.Pair {
	key := pairKey(acc.PairAddress)
	pair := model.Pair{
		ChainID:        acc.ChainID,
		Address:        acc.PairAddress,
		Token0:         acc.PairMeta.Token0,
		Token1:         acc.PairMeta.Token1,
		LpFeeBps:       acc.lpFeeBps(),
		FirstSeenBlock: acc.FirstBlock,
	}
	if existing, ok := a.pairSeen[key]; ok && existing.FirstSeenBlock <= pair.FirstSeenBlock {
		return nil
	}
	a.pairSeen[key] = pair
	return &pair
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState persists the newest timestamp whose windows are all closed.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}
	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs--
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func pairKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
