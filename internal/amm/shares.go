package amm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ilpswap/internal/chain"
)

// Pool shares are a standard fungible token issued by the pair.

func (p *Pair) Name() string    { return "ILP Swap LP" }
func (p *Pair) Symbol() string  { return "ILP-LP" }
func (p *Pair) Decimals() uint8 { return 18 }

func (p *Pair) TotalSupply() *uint256.Int {
	return p.shares.TotalSupply()
}

func (p *Pair) BalanceOf(account common.Address) *uint256.Int {
	return p.shares.BalanceOf(account)
}

func (p *Pair) Allowance(owner, spender common.Address) *uint256.Int {
	return p.shares.Allowance(owner, spender)
}

func (p *Pair) Transfer(call *chain.Call, to common.Address, amount *uint256.Int) error {
	return p.shares.Transfer(call, call.Sender, to, amount)
}

func (p *Pair) TransferFrom(call *chain.Call, from, to common.Address, amount *uint256.Int) error {
	return p.shares.TransferFrom(call, call.Sender, from, to, amount)
}

func (p *Pair) Approve(call *chain.Call, spender common.Address, amount *uint256.Int) error {
	return p.shares.Approve(call, call.Sender, spender, amount)
}
