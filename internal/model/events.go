package model

// SwapEventData is the decoded Swap event payload. In amounts are gross of the ILP fee.
type SwapEventData struct {
	Sender     string `json:"sender"`
	To         string `json:"to"`
	Amount0In  string `json:"amount0_in"`
	Amount1In  string `json:"amount1_in"`
	Amount0Out string `json:"amount0_out"`
	Amount1Out string `json:"amount1_out"`
}

// MintEventData is the decoded Mint event payload.
type MintEventData struct {
	Sender  string `json:"sender"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// BurnEventData is the decoded Burn event payload.
type BurnEventData struct {
	Sender  string `json:"sender"`
	To      string `json:"to"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// SyncEventData is the decoded Sync event payload.
type SyncEventData struct {
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
}

// TransferEventData is the decoded ERC20 Transfer payload, used for both tokens and pool shares.
type TransferEventData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// ApprovalEventData is the decoded ERC20 Approval payload.
type ApprovalEventData struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Value   string `json:"value"`
}

// IlpFeeStatusEventData is the decoded IlpFeeStatusToggled payload.
type IlpFeeStatusEventData struct {
	Active bool `json:"active"`
}

// IlpFeeRatesEventData is the decoded IlpFeeRatesSet payload, in basis points.
type IlpFeeRatesEventData struct {
	Rate0 string `json:"rate0"`
	Rate1 string `json:"rate1"`
}

// FeeDepositedEventData is the decoded FeeDeposited payload.
type FeeDepositedEventData struct {
	Pair   string `json:"pair"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// RebalancedEventData is the decoded Rebalanced payload.
type RebalancedEventData struct {
	Pair           string `json:"pair"`
	Treasury       string `json:"treasury"`
	Amount0        string `json:"amount0"`
	Amount1        string `json:"amount1"`
	ProcessingFee0 string `json:"processing_fee0"`
	ProcessingFee1 string `json:"processing_fee1"`
	Liquidity      string `json:"liquidity"`
}

// ConfigUpdatedEventData is the decoded ConfigUpdated payload.
type ConfigUpdatedEventData struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Account string `json:"account"`
}
