package amm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	errorsmod "cosmossdk.io/errors"

	"ilpswap/internal/chain"
	"ilpswap/internal/events"
)

// Mint issues pool shares to to for the tokens transferred into the pair since the
// last update.
func (p *Pair) Mint(call *chain.Call, to common.Address) (*uint256.Int, error) {
	if err := p.lock(call); err != nil {
		return nil, err
	}
	defer p.unlock(call)

	reserve0, reserve1, _ := p.GetReserves()
	balance0, balance1, err := p.balances(call)
	if err != nil {
		return nil, err
	}
	if balance0.Lt(reserve0) || balance1.Lt(reserve1) {
		return nil, errorsmod.Wrap(ErrInsufficientLiquidityMinted, "balance below reserve")
	}
	amount0 := new(uint256.Int).Sub(balance0, reserve0)
	amount1 := new(uint256.Int).Sub(balance1, reserve1)

	feeOn, err := p.mintFee(call, reserve0, reserve1)
	if err != nil {
		return nil, err
	}

	// Read after mintFee, which may have grown the supply.
	totalSupply := p.shares.TotalSupply()
	var liquidity *uint256.Int
	if totalSupply.IsZero() {
		product, err := mul(amount0, amount1)
		if err != nil {
			return nil, err
		}
		root := Sqrt(product)
		minimum := uint256.NewInt(MinimumLiquidity)
		if !root.Gt(minimum) {
			return nil, errorsmod.Wrapf(ErrInsufficientLiquidityMinted, "initial liquidity %s does not exceed minimum", root)
		}
		liquidity = root.Sub(root, minimum)
		if err := p.shares.Mint(call, BurnAddress, minimum); err != nil {
			return nil, err
		}
	} else {
		share0, err := mul(amount0, totalSupply)
		if err != nil {
			return nil, err
		}
		share1, err := mul(amount1, totalSupply)
		if err != nil {
			return nil, err
		}
		liquidity = minInt(share0.Div(share0, reserve0), share1.Div(share1, reserve1))
	}
	if liquidity.IsZero() {
		return nil, ErrInsufficientLiquidityMinted
	}
	if err := p.shares.Mint(call, to, liquidity); err != nil {
		return nil, err
	}

	if err := p.update(call, balance0, balance1, reserve0, reserve1); err != nil {
		return nil, err
	}
	if feeOn {
		chain.Set(call.Journal(), &p.kLast, *new(uint256.Int).Mul(&p.reserve0, &p.reserve1))
	}

	p.logger.Debug("mint",
		zap.String("to", to.Hex()),
		zap.Stringer("amount0", amount0),
		zap.Stringer("amount1", amount1),
		zap.Stringer("liquidity", liquidity),
	)
	p.metrics.ObserveLiquidity(p.address.Hex(), "mint")
	if err := events.Emit(call, p.address, events.Mint, []common.Hash{events.AddressTopic(call.Sender)},
		events.Big(amount0), events.Big(amount1)); err != nil {
		return nil, err
	}
	return liquidity, nil
}

// Burn redeems the shares held by the pair itself for a pro-rata share of both reserves.
func (p *Pair) Burn(call *chain.Call, to common.Address) (*uint256.Int, *uint256.Int, error) {
	if err := p.lock(call); err != nil {
		return nil, nil, err
	}
	defer p.unlock(call)

	reserve0, reserve1, _ := p.GetReserves()
	liquidity := p.shares.BalanceOf(p.address)

	feeOn, err := p.mintFee(call, reserve0, reserve1)
	if err != nil {
		return nil, nil, err
	}

	totalSupply := p.shares.TotalSupply()
	if totalSupply.IsZero() {
		return nil, nil, ErrInsufficientLiquidityBurned
	}
	// Payouts use tracked reserves, never unsynced balance.
	amount0, err := mul(liquidity, reserve0)
	if err != nil {
		return nil, nil, err
	}
	amount0.Div(amount0, totalSupply)
	amount1, err := mul(liquidity, reserve1)
	if err != nil {
		return nil, nil, err
	}
	amount1.Div(amount1, totalSupply)
	if amount0.IsZero() || amount1.IsZero() {
		return nil, nil, ErrInsufficientLiquidityBurned
	}

	if err := p.shares.Burn(call, p.address, liquidity); err != nil {
		return nil, nil, err
	}
	if err := p.transfer(call, p.token0, to, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.transfer(call, p.token1, to, amount1); err != nil {
		return nil, nil, err
	}

	balance0, balance1, err := p.balances(call)
	if err != nil {
		return nil, nil, err
	}
	if err := p.update(call, balance0, balance1, reserve0, reserve1); err != nil {
		return nil, nil, err
	}
	if feeOn {
		chain.Set(call.Journal(), &p.kLast, *new(uint256.Int).Mul(&p.reserve0, &p.reserve1))
	}

	p.logger.Debug("burn",
		zap.String("to", to.Hex()),
		zap.Stringer("amount0", amount0),
		zap.Stringer("amount1", amount1),
		zap.Stringer("liquidity", liquidity),
	)
	p.metrics.ObserveLiquidity(p.address.Hex(), "burn")
	err = events.Emit(call, p.address, events.Burn,
		[]common.Hash{events.AddressTopic(call.Sender), events.AddressTopic(to)},
		events.Big(amount0), events.Big(amount1))
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// mintFee mints the protocol's share of the growth in sqrt(k) since kLast, equal to
// one sixth of the LP fees collected, and reports whether the protocol fee is on.
func (p *Pair) mintFee(call *chain.Call, reserve0, reserve1 *uint256.Int) (bool, error) {
	var feeTo common.Address
	if p.registry != nil {
		feeTo = p.registry.FeeTo()
	}
	feeOn := feeTo != (common.Address{})

	if !feeOn {
		if !p.kLast.IsZero() {
			chain.Set(call.Journal(), &p.kLast, uint256.Int{})
		}
		return false, nil
	}
	if p.kLast.IsZero() {
		return true, nil
	}

	rootK := Sqrt(new(uint256.Int).Mul(reserve0, reserve1))
	rootKLast := Sqrt(&p.kLast)
	if !rootK.Gt(rootKLast) {
		return true, nil
	}
	numerator, err := mul(p.shares.TotalSupply(), new(uint256.Int).Sub(rootK, rootKLast))
	if err != nil {
		return true, err
	}
	denominator := new(uint256.Int).Mul(rootK, uint256.NewInt(5))
	denominator.Add(denominator, rootKLast)
	liquidity := numerator.Div(numerator, denominator)
	if liquidity.IsZero() {
		return true, nil
	}
	if err := p.shares.Mint(call, feeTo, liquidity); err != nil {
		return true, err
	}
	p.logger.Debug("protocol fee minted", zap.String("fee_to", feeTo.Hex()), zap.Stringer("liquidity", liquidity))
	return true, nil
}
