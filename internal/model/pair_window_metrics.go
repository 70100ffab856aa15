package model

import "time"

// PairWindowMetrics stores aggregated metrics for a pair window. Amounts are decimal
// strings scaled by token decimals.
type PairWindowMetrics struct {
	ChainID        uint64    `json:"chain_id"`
	PairAddress    string    `json:"pair_address"`
	WindowSizeSecs int64     `json:"window_size_secs"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	SwapCount      uint64    `json:"swap_count"`
	Volume0        string    `json:"volume0"`
	Volume1        string    `json:"volume1"`
	LpFee0         string    `json:"lp_fee0"`
	LpFee1         string    `json:"lp_fee1"`
	IlpFee0        string    `json:"ilp_fee0"`
	IlpFee1        string    `json:"ilp_fee1"`
	Reserve0       *string   `json:"reserve0,omitempty"`
	Reserve1       *string   `json:"reserve1,omitempty"`
	FeeRate0       *string   `json:"fee_rate0,omitempty"`
	FeeRate1       *string   `json:"fee_rate1,omitempty"`
	APR            *string   `json:"apr,omitempty"`
	Rebalances     uint64    `json:"rebalances"`
	FeeMethod      string    `json:"fee_method"`
}
