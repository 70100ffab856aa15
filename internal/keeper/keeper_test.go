package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	errorsmod "cosmossdk.io/errors"

	"ilpswap/internal/chain"
	"ilpswap/internal/ilp"
	"ilpswap/internal/metrics"
)

var (
	caller = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	pairA  = common.HexToAddress("0x5000000000000000000000000000000000000005")
	pairB  = common.HexToAddress("0x6000000000000000000000000000000000000006")
)

type staticPairs []common.Address

func (p staticPairs) AllPairs() []common.Address { return p }

type fakeUpkeeper struct {
	needed   map[common.Address]bool
	failures int
	failWith error
	performs map[common.Address]int
}

func newFakeUpkeeper() *fakeUpkeeper {
	return &fakeUpkeeper{
		needed:   make(map[common.Address]bool),
		performs: make(map[common.Address]int),
	}
}

func (f *fakeUpkeeper) CheckUpkeep(_ *chain.Call, data []byte) (bool, []byte, error) {
	pair, err := ilp.DecodePerformData(data)
	if err != nil {
		return false, nil, err
	}
	if !f.needed[pair] {
		return false, nil, nil
	}
	return true, data, nil
}

func (f *fakeUpkeeper) PerformUpkeep(call *chain.Call, data []byte) (*ilp.UpkeepResult, error) {
	pair, err := ilp.DecodePerformData(data)
	if err != nil {
		return nil, err
	}
	if call.Sender != caller {
		return nil, ilp.ErrForbidden
	}
	f.performs[pair]++
	if f.failures > 0 {
		f.failures--
		return nil, f.failWith
	}
	if !f.needed[pair] {
		return &ilp.UpkeepResult{Pair: pair, Status: ilp.StatusSkipped, Reason: ilp.ReasonBelowThreshold}, nil
	}
	return &ilp.UpkeepResult{
		Pair:      pair,
		Status:    ilp.StatusRebalanced,
		Fee0:      uint256.NewInt(3),
		Fee1:      uint256.NewInt(1),
		Swapped:   uint256.NewInt(2),
		Liquidity: uint256.NewInt(7),
	}, nil
}

func newKeeper(up *fakeUpkeeper, cfg Config, m *metrics.Metrics) *Keeper {
	rt := chain.NewRuntime(chain.NewManualClock(1_700_000_000), nil)
	if cfg.Caller == (common.Address{}) {
		cfg.Caller = caller
	}
	cfg.RetryBackoff = time.Millisecond
	return New(cfg, rt, up, staticPairs{pairA, pairB}, nil, m)
}

func TestRunPerformsOnlyNeededUpkeep(t *testing.T) {
	up := newFakeUpkeeper()
	up.needed[pairA] = true

	runs, err := newKeeper(up, Config{}, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)

	require.Equal(t, pairA.Hex(), runs[0].Pair)
	require.Equal(t, string(ilp.StatusRebalanced), runs[0].Status)
	require.Equal(t, "7", runs[0].Liquidity)
	require.Equal(t, "2", runs[0].Swapped)
	require.Equal(t, 1, runs[0].Attempts)
	require.Equal(t, uint64(chain.DefaultChainID), runs[0].ChainID)

	require.Equal(t, StatusNotNeeded, runs[1].Status)
	require.Zero(t, up.performs[pairB])
}

func TestRunForcePerformsEverything(t *testing.T) {
	up := newFakeUpkeeper()
	runs, err := newKeeper(up, Config{Force: true}, nil).Run(context.Background())
	require.NoError(t, err)
	for _, run := range runs {
		require.Equal(t, string(ilp.StatusSkipped), run.Status)
		require.Equal(t, string(ilp.ReasonBelowThreshold), run.Reason)
	}
	require.Equal(t, 1, up.performs[pairA])
	require.Equal(t, 1, up.performs[pairB])
}

func TestRunRetriesTransientFailures(t *testing.T) {
	up := newFakeUpkeeper()
	up.needed[pairA] = true
	up.failures = 2
	up.failWith = errors.New("insufficient balance")

	reg := prometheus.NewRegistry()
	runs, err := newKeeper(up, Config{MaxRetries: 3}, metrics.New(reg)).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, string(ilp.StatusRebalanced), runs[0].Status)
	require.Equal(t, 3, runs[0].Attempts)
	require.Equal(t, 2.0, counterValue(t, reg, "ilpswap_upkeep_retries_total"))
}

func TestRunDoesNotRetryPermanentFailures(t *testing.T) {
	up := newFakeUpkeeper()
	up.needed[pairA] = true
	up.failures = 5
	up.failWith = errorsmod.Wrap(ilp.ErrInvalidConfig, "treasury not set")

	runs, err := newKeeper(up, Config{MaxRetries: 3}, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusFailed, runs[0].Status)
	require.Equal(t, 1, runs[0].Attempts)
	require.Contains(t, runs[0].Error, "invalid config")
	require.Equal(t, StatusNotNeeded, runs[1].Status)
}

func TestRunRequiresCallerAndWiring(t *testing.T) {
	k := New(Config{}, chain.NewRuntime(nil, nil), newFakeUpkeeper(), staticPairs{pairA}, nil, nil)
	_, err := k.Run(context.Background())
	require.Error(t, err)

	k = New(Config{Caller: caller}, nil, newFakeUpkeeper(), staticPairs{pairA}, nil, nil)
	_, err = k.Run(context.Background())
	require.Error(t, err)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runs, err := newKeeper(newFakeUpkeeper(), Config{}, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, runs)
}

func TestRetryable(t *testing.T) {
	require.False(t, Retryable(errorsmod.Wrap(ilp.ErrForbidden, "x")))
	require.False(t, Retryable(ilp.ErrInvalidPerformData))
	require.True(t, Retryable(errors.New("transient")))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			require.NotEmpty(t, family.GetMetric())
			return family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
