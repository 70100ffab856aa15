package ilp

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ilpswap/internal/amm"
	"ilpswap/internal/chain"
	"ilpswap/internal/events"
	"ilpswap/internal/token"
)

// provision sends the processing cut of each balanced amount to the treasury, deposits
// the rest into the pair and mints the resulting shares to the treasury.
func (a *Accumulator) provision(call *chain.Call, p Pair, treasury common.Address, res *UpkeepResult) error {
	rate := uint256.NewInt(a.config.ProcessingFeeRate)
	denominator := uint256.NewInt(amm.FeeDenominator)
	self := call.As(a.address)

	cuts := [2]*uint256.Int{}
	for i, tokenAddr := range []common.Address{p.Token0(), p.Token1()} {
		amount := res.Amount0
		if i == 1 {
			amount = res.Amount1
		}
		cut, err := mul(amount, rate)
		if err != nil {
			return err
		}
		cut.Div(cut, denominator)
		cuts[i] = cut

		tok, err := token.At(call, tokenAddr)
		if err != nil {
			return err
		}
		if !cut.IsZero() {
			if err := tok.Transfer(self, treasury, cut); err != nil {
				return err
			}
		}
		if rest := new(uint256.Int).Sub(amount, cut); !rest.IsZero() {
			if err := tok.Transfer(self, p.Address(), rest); err != nil {
				return err
			}
		}
	}

	liquidity, err := p.Mint(self, treasury)
	if err != nil {
		return err
	}
	res.ProcessingFee0, res.ProcessingFee1 = cuts[0], cuts[1]
	res.Liquidity = liquidity

	return events.Emit(call, a.address, events.Rebalanced,
		[]common.Hash{events.AddressTopic(p.Address()), events.AddressTopic(treasury)},
		events.Big(res.Amount0), events.Big(res.Amount1),
		events.Big(cuts[0]), events.Big(cuts[1]), events.Big(liquidity))
}
