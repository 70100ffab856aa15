package amm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"ilpswap/internal/chain"
	"ilpswap/internal/fixedpoint"
)

func TestFirstMintLocksMinimumLiquidity(t *testing.T) {
	f := newFixture(t)

	liquidity, err := f.addLiquidity(lp, e18(1), e18(4))
	require.NoError(t, err)
	require.Equal(t, new(uint256.Int).SubUint64(e18(2), MinimumLiquidity), liquidity)
	require.Equal(t, uint64(MinimumLiquidity), f.pair.BalanceOf(BurnAddress).Uint64())
	require.Equal(t, e18(2), f.pair.TotalSupply())

	r0, r1, ts := f.pair.GetReserves()
	require.Equal(t, e18(1), r0)
	require.Equal(t, e18(4), r1)
	require.Equal(t, uint32(startTime), ts)
}

func TestMintRejectsDustFirstDeposit(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, uint256.NewInt(1000), uint256.NewInt(1000))
	require.ErrorIs(t, err, ErrInsufficientLiquidityMinted)
	require.True(t, f.pair.TotalSupply().IsZero())
}

func TestMintBurnNeverReturnsMoreThanDeposited(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(5), e18(10))
	require.NoError(t, err)

	deposit0, deposit1 := dec("3333333333333333333"), dec("6666666666666666667")
	shares, err := f.addLiquidity(lp2, deposit0, deposit1)
	require.NoError(t, err)

	var out0, out1 *uint256.Int
	require.NoError(t, f.rt.Execute(f.ctx, lp2, func(call *chain.Call) error {
		if err := f.pair.Transfer(call, f.pair.Address(), shares); err != nil {
			return err
		}
		var err error
		out0, out1, err = f.pair.Burn(call, lp2)
		return err
	}))

	require.False(t, out0.Gt(deposit0))
	require.False(t, out1.Gt(deposit1))
	require.Equal(t, out0, f.tok0.BalanceOf(lp2))
	require.Equal(t, out1, f.tok1.BalanceOf(lp2))

	// Rounding loss stays within a handful of units.
	require.True(t, new(uint256.Int).Sub(deposit0, out0).Lt(uint256.NewInt(10)))
	require.True(t, new(uint256.Int).Sub(deposit1, out1).Lt(uint256.NewInt(10)))
}

func TestFirstProviderBurnLosesOnlyMinimumShare(t *testing.T) {
	f := newFixture(t)
	shares, err := f.addLiquidity(lp, e18(1), e18(4))
	require.NoError(t, err)

	var out0, out1 *uint256.Int
	require.NoError(t, f.rt.Execute(f.ctx, lp, func(call *chain.Call) error {
		if err := f.pair.Transfer(call, f.pair.Address(), shares); err != nil {
			return err
		}
		var err error
		out0, out1, err = f.pair.Burn(call, lp)
		return err
	}))

	// 1000 of 2e18 shares stay locked: 500 units of token0 and 2000 of token1.
	require.Equal(t, new(uint256.Int).SubUint64(e18(1), 500), out0)
	require.Equal(t, new(uint256.Int).SubUint64(e18(4), 2000), out1)
}

func TestBurnPaysFromReservesNotUnsyncedBalance(t *testing.T) {
	f := newFixture(t)
	shares, err := f.addLiquidity(lp, e18(10), e18(10))
	require.NoError(t, err)

	// A third party sends tokens without syncing.
	f.fund(trader, e18(10), e18(10))
	require.NoError(t, f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		if err := f.tok0.Transfer(call, f.pair.Address(), e18(10)); err != nil {
			return err
		}
		return f.tok1.Transfer(call, f.pair.Address(), e18(10))
	}))

	var out0, out1 *uint256.Int
	require.NoError(t, f.rt.Execute(f.ctx, lp, func(call *chain.Call) error {
		if err := f.pair.Transfer(call, f.pair.Address(), shares); err != nil {
			return err
		}
		var err error
		out0, out1, err = f.pair.Burn(call, lp)
		return err
	}))

	want := new(uint256.Int).SubUint64(e18(10), 1000)
	require.Equal(t, want, out0)
	require.Equal(t, want, out1)
	require.False(t, out0.Gt(e18(10)))
	require.Equal(t, want, f.tok0.BalanceOf(lp))
}

func TestBurnWithoutSharesFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(1), e18(1))
	require.NoError(t, err)

	err = f.rt.Execute(f.ctx, lp, func(call *chain.Call) error {
		_, _, err := f.pair.Burn(call, lp)
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientLiquidityBurned)
}

func TestSwapAtIdealOutputSucceedsAndOneMoreFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(5), e18(10))
	require.NoError(t, err)

	ideal := dec("1661663664865586018")
	require.ErrorIs(t, f.swap0For1(trader, e18(1), plus(ideal, 1)), ErrKInvariant)

	r0, r1, _ := f.pair.GetReserves()
	require.Equal(t, e18(5), r0)
	require.Equal(t, e18(10), r1)

	require.NoError(t, f.swap0For1(trader, e18(1), ideal))
	r0, r1, _ = f.pair.GetReserves()
	require.Equal(t, e18(6), r0)
	require.Equal(t, new(uint256.Int).Sub(e18(10), ideal), r1)
	require.Equal(t, ideal, f.tok1.BalanceOf(trader))
}

func TestSwapNeverDecreasesK(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(50), e18(80))
	require.NoError(t, err)

	inputs := []uint64{1, 7, 3, 12, 5}
	for i, in := range inputs {
		r0, r1, _ := f.pair.GetReserves()
		kBefore := new(uint256.Int).Mul(r0, r1)

		amountIn := e18(in)
		if i%2 == 0 {
			out, err := GetAmountOut(amountIn, r0, r1)
			require.NoError(t, err)
			require.NoError(t, f.swap0For1(trader, amountIn, out))
		} else {
			out, err := GetAmountOut(amountIn, r1, r0)
			require.NoError(t, err)
			require.NoError(t, f.swap1For0(trader, amountIn, out))
		}

		r0, r1, _ = f.pair.GetReserves()
		require.False(t, new(uint256.Int).Mul(r0, r1).Lt(kBefore), "swap %d decreased k", i)
	}
}

func TestSwapValidatesRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(5), e18(5))
	require.NoError(t, err)

	err = f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		return f.pair.Swap(call, new(uint256.Int), new(uint256.Int), trader, nil)
	})
	require.ErrorIs(t, err, ErrInsufficientOutputAmount)

	err = f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		return f.pair.Swap(call, new(uint256.Int), e18(5), trader, nil)
	})
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	err = f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		return f.pair.Swap(call, new(uint256.Int), e18(1), f.tok0.Address(), nil)
	})
	require.ErrorIs(t, err, ErrInvalidTo)

	// Nothing paid in.
	err = f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		return f.pair.Swap(call, new(uint256.Int), e18(1), trader, nil)
	})
	require.ErrorIs(t, err, ErrInsufficientInputAmount)
}

func TestFailedSwapRevertsBalancesReservesAndLogs(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(5), e18(10))
	require.NoError(t, err)
	f.fund(trader, e18(1), new(uint256.Int))

	logsBefore := len(f.rt.Logs())
	pairBal1 := f.tok1.BalanceOf(f.pair.Address())

	err = f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		if err := f.tok0.Transfer(call, f.pair.Address(), e18(1)); err != nil {
			return err
		}
		return f.pair.Swap(call, new(uint256.Int), e18(2), trader, nil)
	})
	require.ErrorIs(t, err, ErrKInvariant)

	require.Len(t, f.rt.Logs(), logsBefore)
	require.Equal(t, e18(1), f.tok0.BalanceOf(trader))
	require.True(t, f.tok1.BalanceOf(trader).IsZero())
	require.Equal(t, pairBal1, f.tok1.BalanceOf(f.pair.Address()))

	// The guard was released by the revert.
	require.NoError(t, f.swap0For1(trader, e18(1), e18(1)))
}

func TestIlpFeeDeductedBeforeLpFee(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(100), e18(100))
	require.NoError(t, err)
	f.setIlp(100, 0)

	ideal := dec("8978671518224836516")
	require.ErrorIs(t, f.swap0For1(trader, e18(10), plus(ideal, 1)), ErrKInvariant)
	require.True(t, f.sink.deposited(f.tok0.Address()).IsZero())

	require.NoError(t, f.swap0For1(trader, e18(10), ideal))

	ilpFee := dec("100000000000000000")
	require.Equal(t, ilpFee, f.sink.deposited(f.tok0.Address()))
	require.Equal(t, ilpFee, f.tok0.BalanceOf(f.sink.Address()))
	require.True(t, f.sink.deposited(f.tok1.Address()).IsZero())

	r0, r1, _ := f.pair.GetReserves()
	require.Equal(t, dec("109900000000000000000"), r0)
	require.Equal(t, new(uint256.Int).Sub(e18(100), ideal), r1)
	require.Equal(t, f.tok0.BalanceOf(f.pair.Address()), r0)
}

func TestIlpFeeInactiveChargesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(100), e18(100))
	require.NoError(t, err)
	require.NoError(t, f.rt.Execute(f.ctx, manager, func(call *chain.Call) error {
		return f.pair.SetIlpFeeRates(call, 100, 100)
	}))

	out, err := GetAmountOut(e18(10), e18(100), e18(100))
	require.NoError(t, err)
	require.NoError(t, f.swap0For1(trader, e18(10), out))
	require.True(t, f.sink.deposited(f.tok0.Address()).IsZero())
}

func TestBypassIlpFeeOnlyForAccumulator(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(100), e18(100))
	require.NoError(t, err)
	f.setIlp(100, 100)
	f.fund(trader, e18(10), new(uint256.Int))

	out, err := GetAmountOut(e18(10), e18(100), e18(100))
	require.NoError(t, err)

	err = f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		if err := f.tok0.Transfer(call, f.pair.Address(), e18(10)); err != nil {
			return err
		}
		return f.pair.SwapWithOptions(call, new(uint256.Int), out, trader, nil, SwapOptions{BypassIlpFee: true})
	})
	require.ErrorIs(t, err, ErrForbidden)

	f.fund(f.sink.Address(), e18(10), new(uint256.Int))
	err = f.rt.Execute(f.ctx, f.sink.Address(), func(call *chain.Call) error {
		if err := f.tok0.Transfer(call, f.pair.Address(), e18(10)); err != nil {
			return err
		}
		return f.pair.SwapWithOptions(call, new(uint256.Int), out, f.sink.Address(), nil, SwapOptions{BypassIlpFee: true})
	})
	require.NoError(t, err)
	require.True(t, f.sink.deposited(f.tok0.Address()).IsZero())
}

func TestSetIlpFeeRates(t *testing.T) {
	f := newFixture(t)

	for _, rates := range [][2]uint64{{201, 0}, {0, 201}, {1000, 1000}} {
		err := f.rt.Execute(f.ctx, manager, func(call *chain.Call) error {
			return f.pair.SetIlpFeeRates(call, rates[0], rates[1])
		})
		require.ErrorIs(t, err, ErrInvalidFeeRate)
	}

	err := f.rt.Execute(f.ctx, admin, func(call *chain.Call) error {
		return f.pair.SetIlpFeeRates(call, 10, 10)
	})
	require.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.rt.Execute(f.ctx, manager, func(call *chain.Call) error {
		return f.pair.SetIlpFeeRates(call, 200, 35)
	}))
	r0, r1 := f.pair.IlpFeeRates()
	require.Equal(t, uint64(200), r0)
	require.Equal(t, uint64(35), r1)
}

func TestToggleIlpFeeStatusRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	err := f.rt.Execute(f.ctx, manager, func(call *chain.Call) error {
		return f.pair.ToggleIlpFeeStatus(call, true)
	})
	require.ErrorIs(t, err, ErrForbidden)
	require.False(t, f.pair.IsIlpFeeActive())

	require.NoError(t, f.rt.Execute(f.ctx, admin, func(call *chain.Call) error {
		return f.pair.ToggleIlpFeeStatus(call, true)
	}))
	require.True(t, f.pair.IsIlpFeeActive())
}

// syncingCallee re-enters the pair from the flash-swap callback.
type syncingCallee struct {
	address common.Address
	pair    *Pair
}

func (c *syncingCallee) Address() common.Address { return c.address }

func (c *syncingCallee) IlpSwapCall(call *chain.Call, _ common.Address, _, _ *uint256.Int, _ []byte) error {
	return c.pair.Sync(call)
}

// repayingCallee pays for a flash swap from inside the callback.
type repayingCallee struct {
	address common.Address
	pair    *Pair
	input   *uint256.Int
	tok     interface {
		Transfer(call *chain.Call, to common.Address, amount *uint256.Int) error
	}
}

func (c *repayingCallee) Address() common.Address { return c.address }

func (c *repayingCallee) IlpSwapCall(call *chain.Call, _ common.Address, _, _ *uint256.Int, _ []byte) error {
	return c.tok.Transfer(call.As(c.address), c.pair.Address(), c.input)
}

func TestReentrantCallFailsLocked(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(5), e18(5))
	require.NoError(t, err)

	callee := &syncingCallee{address: common.HexToAddress("0x4000000000000000000000000000000000000004"), pair: f.pair}
	require.NoError(t, f.rt.Deploy(callee))

	err = f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		return f.pair.Swap(call, new(uint256.Int), e18(1), callee.Address(), []byte{1})
	})
	require.ErrorIs(t, err, ErrLocked)
	require.True(t, f.tok1.BalanceOf(callee.Address()).IsZero())
}

func TestFlashSwapRepaidInCallback(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(5), e18(10))
	require.NoError(t, err)

	callee := &repayingCallee{
		address: common.HexToAddress("0x4000000000000000000000000000000000000004"),
		pair:    f.pair,
		input:   e18(1),
		tok:     f.tok0,
	}
	require.NoError(t, f.rt.Deploy(callee))
	f.fund(callee.Address(), e18(1), new(uint256.Int))

	out := dec("1661663664865586018")
	require.NoError(t, f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		return f.pair.Swap(call, new(uint256.Int), out, callee.Address(), []byte("flash"))
	}))
	require.Equal(t, out, f.tok1.BalanceOf(callee.Address()))
	require.True(t, f.tok0.BalanceOf(callee.Address()).IsZero())
}

func TestProtocolFeeMintedOnGrowth(t *testing.T) {
	f := newFixture(t)
	feeTo := common.HexToAddress("0x00000000000000000000000000000000000000fe")
	f.reg.SetFeeTo(feeTo)

	_, err := f.addLiquidity(lp, e18(100), e18(100))
	require.NoError(t, err)
	require.Equal(t, new(uint256.Int).Mul(e18(100), e18(100)), f.pair.KLast())

	for i := 0; i < 4; i++ {
		r0, r1, _ := f.pair.GetReserves()
		out, err := GetAmountOut(e18(10), r0, r1)
		require.NoError(t, err)
		require.NoError(t, f.swap0For1(trader, e18(10), out))
		r0, r1, _ = f.pair.GetReserves()
		back, err := GetAmountOut(e18(10), r1, r0)
		require.NoError(t, err)
		require.NoError(t, f.swap1For0(trader, e18(10), back))
	}
	require.True(t, f.pair.BalanceOf(feeTo).IsZero())

	_, err = f.addLiquidity(lp2, e18(1), e18(1))
	require.NoError(t, err)
	require.False(t, f.pair.BalanceOf(feeTo).IsZero())

	r0, r1, _ := f.pair.GetReserves()
	require.Equal(t, new(uint256.Int).Mul(r0, r1), f.pair.KLast())

	f.reg.SetFeeTo(common.Address{})
	_, err = f.addLiquidity(lp2, e18(1), e18(1))
	require.NoError(t, err)
	require.True(t, f.pair.KLast().IsZero())
}

func TestPriceAccumulatorsAdvanceWithTime(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(1), e18(4))
	require.NoError(t, err)
	start0 := f.pair.Price0CumulativeLast()
	start1 := f.pair.Price1CumulativeLast()

	f.clock.Advance(10)
	require.NoError(t, f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		return f.pair.Sync(call)
	}))

	avg0 := fixedpoint.AverageOverInterval(start0, f.pair.Price0CumulativeLast(), 10)
	avg1 := fixedpoint.AverageOverInterval(start1, f.pair.Price1CumulativeLast(), 10)
	require.Equal(t, uint64(4), avg0.Decode().Uint64())
	require.Equal(t, "0.250000000000000000", avg1.String())

	// Same block: nothing accrues.
	before := f.pair.Price0CumulativeLast()
	require.NoError(t, f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		return f.pair.Sync(call)
	}))
	require.True(t, before.Equal(f.pair.Price0CumulativeLast()))
}

func TestTimestampWrapsModulo32Bits(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(1<<32 - 5)
	_, err := f.addLiquidity(lp, e18(2), e18(2))
	require.NoError(t, err)
	start := f.pair.Price0CumulativeLast()

	f.clock.Advance(10)
	require.NoError(t, f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		return f.pair.Sync(call)
	}))
	_, _, ts := f.pair.GetReserves()
	require.Equal(t, uint32(5), ts)
	require.Equal(t, uint64(1), fixedpoint.AverageOverInterval(start, f.pair.Price0CumulativeLast(), 10).Decode().Uint64())
}

func TestSkimAndSync(t *testing.T) {
	f := newFixture(t)
	_, err := f.addLiquidity(lp, e18(5), e18(5))
	require.NoError(t, err)

	f.fund(trader, e18(1), new(uint256.Int))
	require.NoError(t, f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		return f.tok0.Transfer(call, f.pair.Address(), e18(1))
	}))

	sweeper := common.HexToAddress("0x00000000000000000000000000000000000000d1")
	require.NoError(t, f.rt.Execute(f.ctx, sweeper, func(call *chain.Call) error {
		return f.pair.Skim(call, sweeper)
	}))
	require.Equal(t, e18(1), f.tok0.BalanceOf(sweeper))

	require.NoError(t, f.rt.Execute(f.ctx, trader, func(call *chain.Call) error {
		if err := f.tok0.Mint(call, f.pair.Address(), e18(2)); err != nil {
			return err
		}
		return f.pair.Sync(call)
	}))
	r0, _, _ := f.pair.GetReserves()
	require.Equal(t, e18(7), r0)
}

func TestReservesOverflowReverts(t *testing.T) {
	f := newFixture(t)
	tooBig := new(uint256.Int).AddUint64(fixedpoint.MaxUint112(), 1)
	_, err := f.addLiquidity(lp, tooBig, e18(1))
	require.ErrorIs(t, err, ErrOverflow)
	r0, _, _ := f.pair.GetReserves()
	require.True(t, r0.IsZero())
}

func TestNewPairValidatesConfig(t *testing.T) {
	_, err := NewPair(Config{})
	require.Error(t, err)

	_, err = NewPair(Config{
		Address: common.HexToAddress("0x01"),
		Token0:  common.HexToAddress("0x03"),
		Token1:  common.HexToAddress("0x02"),
	})
	require.Error(t, err)
}
