package model

// Pair represents a trading pair record for storage.
type Pair struct {
	ChainID        uint64 `json:"chain_id"`
	Address        string `json:"address"`
	Token0         string `json:"token0"`
	Token1         string `json:"token1"`
	LpFeeBps       uint32 `json:"lp_fee_bps"`
	FirstSeenBlock uint64 `json:"first_seen_block"`
}

// PairSnapshot is the observable state of a pair at a block.
type PairSnapshot struct {
	ChainID            uint64 `json:"chain_id"`
	Address            string `json:"address"`
	BlockNumber        uint64 `json:"block_number"`
	Timestamp          uint64 `json:"timestamp"`
	Reserve0           string `json:"reserve0"`
	Reserve1           string `json:"reserve1"`
	TotalSupply        string `json:"total_supply"`
	KLast              string `json:"k_last"`
	Price0Cumulative   string `json:"price0_cumulative"`
	Price1Cumulative   string `json:"price1_cumulative"`
	BlockTimestampLast uint32 `json:"block_timestamp_last"`
	IlpFeeActive       bool   `json:"ilp_fee_active"`
	IlpFeeRate0        uint64 `json:"ilp_fee_rate0"`
	IlpFeeRate1        uint64 `json:"ilp_fee_rate1"`
}
