package sim

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ilpswap/internal/amm"
	"ilpswap/internal/chain"
	"ilpswap/internal/token"
)

// Faucet mints amount of a deployed token to account.
func (w *World) Faucet(ctx context.Context, tokenAddr, account common.Address, amount *uint256.Int) error {
	tok, err := w.memoryToken(tokenAddr)
	if err != nil {
		return err
	}
	return w.Runtime.Execute(ctx, account, func(call *chain.Call) error {
		return tok.Mint(call, account, amount)
	})
}

// AddLiquidity funds account, transfers both amounts into pair and mints shares to
// account, all in one transaction.
func (w *World) AddLiquidity(ctx context.Context, pair *amm.Pair, account common.Address, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	tok0, err := w.memoryToken(pair.Token0())
	if err != nil {
		return nil, err
	}
	tok1, err := w.memoryToken(pair.Token1())
	if err != nil {
		return nil, err
	}

	var liquidity *uint256.Int
	err = w.Runtime.Execute(ctx, account, func(call *chain.Call) error {
		if err := tok0.Mint(call, account, amount0); err != nil {
			return err
		}
		if err := tok1.Mint(call, account, amount1); err != nil {
			return err
		}
		if err := tok0.Transfer(call, pair.Address(), amount0); err != nil {
			return err
		}
		if err := tok1.Transfer(call, pair.Address(), amount1); err != nil {
			return err
		}
		var err error
		liquidity, err = pair.Mint(call, account)
		return err
	})
	return liquidity, err
}

// RemoveLiquidity sends liquidity shares of account back to pair and burns them. A nil
// liquidity burns the whole balance.
func (w *World) RemoveLiquidity(ctx context.Context, pair *amm.Pair, account common.Address, liquidity *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	var amount0, amount1 *uint256.Int
	err := w.Runtime.Execute(ctx, account, func(call *chain.Call) error {
		shares := liquidity
		if shares == nil {
			shares = pair.BalanceOf(account)
		}
		if err := pair.Transfer(call, pair.Address(), shares); err != nil {
			return err
		}
		var err error
		amount0, amount1, err = pair.Burn(call, account)
		return err
	})
	return amount0, amount1, err
}

// SwapExactIn funds account with amountIn of tokenIn and swaps it for the maximum
// output the pair's current reserves and ILP fee allow. minOut, when set, bounds the
// quoted output.
func (w *World) SwapExactIn(ctx context.Context, pair *amm.Pair, account, tokenIn common.Address, amountIn, minOut *uint256.Int) (*uint256.Int, error) {
	zeroForOne := tokenIn == pair.Token0()
	if !zeroForOne && tokenIn != pair.Token1() {
		return nil, fmt.Errorf("token %s not in pair %s", tokenIn.Hex(), pair.Address().Hex())
	}
	tok, err := w.memoryToken(tokenIn)
	if err != nil {
		return nil, err
	}

	var amountOut *uint256.Int
	err = w.Runtime.Execute(ctx, account, func(call *chain.Call) error {
		var err error
		amountOut, err = QuoteExactIn(pair, zeroForOne, amountIn)
		if err != nil {
			return err
		}
		if minOut != nil && amountOut.Lt(minOut) {
			return fmt.Errorf("quoted %s below minimum %s", amountOut.Dec(), minOut.Dec())
		}
		if err := tok.Mint(call, account, amountIn); err != nil {
			return err
		}
		if err := tok.Transfer(call, pair.Address(), amountIn); err != nil {
			return err
		}
		if zeroForOne {
			return pair.Swap(call, new(uint256.Int), amountOut, account, nil)
		}
		return pair.Swap(call, amountOut, new(uint256.Int), account, nil)
	})
	return amountOut, err
}

// QuoteExactIn returns the output for amountIn against pair's current reserves,
// including the ILP fee when it is active.
func QuoteExactIn(pair *amm.Pair, zeroForOne bool, amountIn *uint256.Int) (*uint256.Int, error) {
	reserve0, reserve1, _ := pair.GetReserves()
	reserveIn, reserveOut := reserve0, reserve1
	rate0, rate1 := pair.IlpFeeRates()
	rate := rate0
	if !zeroForOne {
		reserveIn, reserveOut = reserve1, reserve0
		rate = rate1
	}
	if pair.IsIlpFeeActive() && rate > 0 {
		return amm.GetAmountOutWithIlpFee(amountIn, reserveIn, reserveOut, rate)
	}
	return amm.GetAmountOut(amountIn, reserveIn, reserveOut)
}

// Donate transfers tokens straight to pair without touching reserves.
func (w *World) Donate(ctx context.Context, pair *amm.Pair, account, tokenAddr common.Address, amount *uint256.Int) error {
	tok, err := w.memoryToken(tokenAddr)
	if err != nil {
		return err
	}
	return w.Runtime.Execute(ctx, account, func(call *chain.Call) error {
		if err := tok.Mint(call, account, amount); err != nil {
			return err
		}
		return tok.Transfer(call, pair.Address(), amount)
	})
}

func (w *World) Sync(ctx context.Context, pair *amm.Pair, sender common.Address) error {
	return w.Runtime.Execute(ctx, sender, pair.Sync)
}

func (w *World) Skim(ctx context.Context, pair *amm.Pair, sender, to common.Address) error {
	return w.Runtime.Execute(ctx, sender, func(call *chain.Call) error {
		return pair.Skim(call, to)
	})
}

// ToggleIlp switches the ILP fee, sent from the given account or the pair admin.
func (w *World) ToggleIlp(ctx context.Context, pair *amm.Pair, sender common.Address, active bool) error {
	if sender == (common.Address{}) {
		sender = w.Registry.PairAdmin(pair.Address())
	}
	return w.Runtime.Execute(ctx, sender, func(call *chain.Call) error {
		return pair.ToggleIlpFeeStatus(call, active)
	})
}

// SetIlpRates sets the ILP fee rates, sent from the given account or the pair manager.
func (w *World) SetIlpRates(ctx context.Context, pair *amm.Pair, sender common.Address, rate0, rate1 uint64) error {
	if sender == (common.Address{}) {
		sender = w.Registry.PairManager(pair.Address())
	}
	return w.Runtime.Execute(ctx, sender, func(call *chain.Call) error {
		return pair.SetIlpFeeRates(call, rate0, rate1)
	})
}

// ConfigureRebalance sets the upkeep threshold, processing fee and ILP bypass flag
// as the governor.
func (w *World) ConfigureRebalance(ctx context.Context, threshold *uint256.Int, processingFeeRate uint64, bypass bool) error {
	return w.Runtime.Execute(ctx, w.Governor, func(call *chain.Call) error {
		if err := w.Accumulator.SetThreshold(call, threshold); err != nil {
			return err
		}
		if err := w.Accumulator.SetProcessingFeeRate(call, processingFeeRate); err != nil {
			return err
		}
		return w.Accumulator.SetBypassIlpFeeOnRebalance(call, bypass)
	})
}

// Advance moves block time forward.
func (w *World) Advance(seconds uint64) {
	w.Clock.Advance(seconds)
}

func (w *World) memoryToken(addr common.Address) (*token.MemoryToken, error) {
	for _, tok := range w.tokens {
		if tok.Address() == addr {
			return tok, nil
		}
	}
	return nil, fmt.Errorf("no faucet token at %s", addr.Hex())
}
