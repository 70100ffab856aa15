package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveSwap("p", "0")
	m.ObserveUpkeep("p", "")
	m.SetReserves("p", 1, 2)
}

func TestCountersRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSwap("0xpair", "token0")
	m.ObserveSwap("0xpair", "token0")
	m.ObserveUpkeep("0xpair", "rebalanced")
	m.ObserveUpkeepRetry()

	require.Equal(t, 2.0, testutil.ToFloat64(m.swaps.WithLabelValues("0xpair", "token0")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.upkeeps.WithLabelValues("0xpair", "rebalanced")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.upkeepRetries))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
