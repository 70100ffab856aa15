package model

// PairMeta captures immutable pair metadata attached to decoded events.
type PairMeta struct {
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Decimals0 uint8  `json:"decimals0"`
	Decimals1 uint8  `json:"decimals1"`
	LpFeeBps  uint32 `json:"lp_fee_bps"`
}
