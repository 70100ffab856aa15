package model

import "time"

// UpkeepRun records the outcome of one automation pass over a pair.
type UpkeepRun struct {
	ChainID     uint64    `json:"chain_id"`
	Pair        string    `json:"pair"`
	BlockNumber uint64    `json:"block_number"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Fee0        string    `json:"fee0"`
	Fee1        string    `json:"fee1"`
	Swapped     string    `json:"swapped"`
	Liquidity   string    `json:"liquidity"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error,omitempty"`
	RanAt       time.Time `json:"ran_at"`
}
