package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects engine counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	swaps         *prometheus.CounterVec
	liquidity     *prometheus.CounterVec
	ilpFees       *prometheus.CounterVec
	feeDeposits   *prometheus.CounterVec
	upkeeps       *prometheus.CounterVec
	upkeepRetries prometheus.Counter
	reverts       *prometheus.CounterVec
	reserves      *prometheus.GaugeVec
}

// New builds the collectors and registers them with reg. A nil reg leaves them
// unregistered, which keeps tests free of global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ilpswap_swaps_total",
			Help: "Count of executed swaps by pair and input side.",
		}, []string{"pair", "side"}),
		liquidity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ilpswap_liquidity_events_total",
			Help: "Count of mint and burn operations by pair.",
		}, []string{"pair", "kind"}),
		ilpFees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ilpswap_ilp_fee_charges_total",
			Help: "Count of swaps that routed an ILP fee to the accumulator.",
		}, []string{"pair"}),
		feeDeposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ilpswap_fee_deposits_total",
			Help: "Count of fee deposits recorded by the accumulator by token.",
		}, []string{"pair", "token"}),
		upkeeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ilpswap_upkeeps_total",
			Help: "Count of upkeep executions by outcome.",
		}, []string{"pair", "status"}),
		upkeepRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ilpswap_upkeep_retries_total",
			Help: "Count of upkeep attempts retried by the keeper.",
		}),
		reverts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ilpswap_reverts_total",
			Help: "Count of reverted calls by operation.",
		}, []string{"op"}),
		reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ilpswap_reserve",
			Help: "Latest synced reserve by pair and token index, in smallest units.",
		}, []string{"pair", "index"}),
	}
	if reg != nil {
		reg.MustRegister(m.swaps, m.liquidity, m.ilpFees, m.feeDeposits, m.upkeeps, m.upkeepRetries, m.reverts, m.reserves)
	}
	return m
}

func (m *Metrics) ObserveSwap(pair, side string) {
	if m == nil {
		return
	}
	m.swaps.WithLabelValues(pair, side).Inc()
}

func (m *Metrics) ObserveLiquidity(pair, kind string) {
	if m == nil {
		return
	}
	m.liquidity.WithLabelValues(pair, kind).Inc()
}

func (m *Metrics) ObserveIlpFee(pair string) {
	if m == nil {
		return
	}
	m.ilpFees.WithLabelValues(pair).Inc()
}

func (m *Metrics) ObserveFeeDeposit(pair, token string) {
	if m == nil {
		return
	}
	m.feeDeposits.WithLabelValues(pair, token).Inc()
}

func (m *Metrics) ObserveUpkeep(pair, status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.upkeeps.WithLabelValues(pair, status).Inc()
}

func (m *Metrics) ObserveUpkeepRetry() {
	if m == nil {
		return
	}
	m.upkeepRetries.Inc()
}

func (m *Metrics) ObserveRevert(op string) {
	if m == nil {
		return
	}
	m.reverts.WithLabelValues(op).Inc()
}

// SetReserves records the reserves as floats; precision loss is acceptable for dashboards.
func (m *Metrics) SetReserves(pair string, reserve0, reserve1 float64) {
	if m == nil {
		return
	}
	m.reserves.WithLabelValues(pair, "0").Set(reserve0)
	m.reserves.WithLabelValues(pair, "1").Set(reserve1)
}

// Handler serves the collectors registered with gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
