package aggregate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ilpswap/internal/events"
	"ilpswap/internal/model"
	"ilpswap/internal/storage"
)

const (
	testPair        = "0x00000000000000000000000000000000000000Aa"
	testAccumulator = "0x3000000000000000000000000000000000000003"
	testToken0      = "0x1000000000000000000000000000000000000001"
	testToken1      = "0x2000000000000000000000000000000000000002"
)

type memorySink struct {
	pairs   []model.Pair
	metrics []model.PairWindowMetrics
}

func (m *memorySink) UpsertPairs(_ context.Context, pairs []model.Pair) error {
	m.pairs = append(m.pairs, pairs...)
	return nil
}

func (m *memorySink) UpsertWindowMetrics(_ context.Context, metrics []model.PairWindowMetrics) error {
	m.metrics = append(m.metrics, metrics...)
	return nil
}

func typedEvent(address, name string, block, ts uint64, decoded interface{}) model.TypedEvent {
	return model.TypedEvent{
		ChainID:     31337,
		BlockNumber: block,
		Address:     address,
		EventName:   name,
		Timestamp:   ts,
		Decoded:     decoded,
		PairMeta:    &model.PairMeta{Token0: testToken0, Token1: testToken1, LpFeeBps: 36},
	}
}

func writeEvents(t *testing.T, evs []model.TypedEvent, extra ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typed.jsonl")
	w, err := storage.NewJSONLWriter(path, false)
	require.NoError(t, err)
	for _, ev := range evs {
		require.NoError(t, w.Write(ev))
	}
	require.NoError(t, w.Close())
	if len(extra) > 0 {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		for _, line := range extra {
			_, err = f.WriteString(line + "\n")
			require.NoError(t, err)
		}
		require.NoError(t, f.Close())
	}
	return path
}

func sampleEvents() []model.TypedEvent {
	return []model.TypedEvent{
		typedEvent(testPair, events.Swap, 1, 100, model.SwapEventData{Amount0In: "10000", Amount1In: "0", Amount0Out: "0", Amount1Out: "9000"}),
		typedEvent(testAccumulator, events.FeeDeposited, 1, 100, model.FeeDepositedEventData{Pair: testPair, Token: testToken0, Amount: "50"}),
		typedEvent(testPair, events.Sync, 2, 300, model.SyncEventData{Reserve0: "1000000", Reserve1: "2000000"}),
		typedEvent(testAccumulator, events.Rebalanced, 3, 400, model.RebalancedEventData{Pair: testPair, Liquidity: "10"}),
		typedEvent(testPair, events.Transfer, 3, 400, model.TransferEventData{Value: "10"}),
		typedEvent(testPair, events.Swap, 4, 3700, model.SwapEventData{Amount0In: "0", Amount1In: "1000", Amount0Out: "400", Amount1Out: "0"}),
	}
}

func TestAggregatorBuildsPairWindows(t *testing.T) {
	path := writeEvents(t, sampleEvents())
	sink := &memorySink{}

	agg := NewAggregator(Config{WindowSeconds: 3600}, sink, nil)
	stats, err := agg.Run(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 6, stats.Total)
	require.Equal(t, 2, stats.Windows)
	require.Zero(t, stats.Failed)

	require.Len(t, sink.pairs, 1)
	require.Equal(t, testPair, sink.pairs[0].Address)
	require.Equal(t, uint32(36), sink.pairs[0].LpFeeBps)
	require.Equal(t, uint64(1), sink.pairs[0].FirstSeenBlock)

	require.Len(t, sink.metrics, 2)
	first := sink.metrics[0]
	require.Equal(t, int64(0), first.WindowStart.Unix())
	require.Equal(t, int64(3600), first.WindowEnd.Unix())
	require.Equal(t, uint64(1), first.SwapCount)
	require.Equal(t, "10000", first.Volume0)
	require.Equal(t, "9000", first.Volume1)
	require.Equal(t, "36", first.LpFee0)
	require.Equal(t, "0", first.LpFee1)
	require.Equal(t, "50", first.IlpFee0)
	require.Equal(t, "0", first.IlpFee1)
	require.Equal(t, uint64(1), first.Rebalances)
	require.NotNil(t, first.Reserve0)
	require.Equal(t, "1000000", *first.Reserve0)
	require.Equal(t, "2000000", *first.Reserve1)
	require.NotNil(t, first.FeeRate0)
	require.Equal(t, "0.000086000000000000", *first.FeeRate0)
	require.Nil(t, first.FeeRate1)
	require.NotNil(t, first.APR)
	require.Equal(t, "0.753360000000000000", *first.APR)
	require.Equal(t, feeMethodSwapIn, first.FeeMethod)

	second := sink.metrics[1]
	require.Equal(t, int64(3600), second.WindowStart.Unix())
	require.Equal(t, "400", second.Volume0)
	require.Equal(t, "1000", second.Volume1)
	require.Equal(t, "3", second.LpFee1)
	require.Nil(t, second.Reserve0)
	require.Nil(t, second.APR)
}

func TestAggregatorCountsBadRecords(t *testing.T) {
	evs := []model.TypedEvent{
		typedEvent(testAccumulator, events.FeeDeposited, 1, 10, model.FeeDepositedEventData{Pair: testPair, Token: "0x9999999999999999999999999999999999999999", Amount: "5"}),
		typedEvent(testAccumulator, events.FeeDeposited, 1, 10, model.FeeDepositedEventData{Token: testToken0, Amount: "5"}),
		typedEvent(testPair, events.Swap, 1, 10, model.SwapEventData{Amount0In: "abc"}),
		typedEvent(testPair, events.Swap, 1, 10, model.SwapEventData{Amount0In: "100"}),
	}
	path := writeEvents(t, evs, "{not json")
	sink := &memorySink{}

	stats, err := NewAggregator(Config{WindowSeconds: 60}, sink, nil).Run(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 5, stats.Total)
	require.Equal(t, 4, stats.Failed)
	require.Len(t, sink.metrics, 1)
	require.Equal(t, "100", sink.metrics[0].Volume0)
}

func TestAggregatorResumesFromState(t *testing.T) {
	path := writeEvents(t, sampleEvents())
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state", "aggregate.json"), WindowSeconds: 3600}

	_, err := NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, &memorySink{}, nil).Run(context.Background(), path)
	require.NoError(t, err)

	last, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3700), last)

	sink := &memorySink{}
	stats, err := NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, sink, nil).Run(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 6, stats.Skipped)
	require.Empty(t, sink.metrics)

	// recompute-from overrides the checkpoint.
	sink = &memorySink{}
	stats, err = NewAggregator(Config{WindowSeconds: 3600, StateStore: state, RecomputeFrom: 3600}, sink, nil).Run(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Windows)
	require.Len(t, sink.metrics, 1)

	other := &FileStateStore{Path: state.Path, WindowSeconds: 60}
	_, ok, err = other.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAggregatorValidatesConfig(t *testing.T) {
	_, err := NewAggregator(Config{WindowSeconds: 60}, nil, nil).Run(context.Background(), "unused")
	require.Error(t, err)

	_, err = NewAggregator(Config{}, &memorySink{}, nil).Run(context.Background(), "unused")
	require.Error(t, err)
}

func TestDBStateStoreWithoutStore(t *testing.T) {
	var s *DBStateStore
	_, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, s.Save(context.Background(), 1))
}
