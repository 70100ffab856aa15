package amm

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"ilpswap/internal/chain"
	"ilpswap/internal/registry"
	"ilpswap/internal/token"
)

const startTime = 1_700_000_000

var (
	admin   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	manager = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	lp      = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	lp2     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	trader  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

// recordingSink is a fee accumulator stand-in that records deposits per token.
type recordingSink struct {
	address  common.Address
	deposits map[common.Address]uint256.Int
}

func (s *recordingSink) Address() common.Address { return s.address }

func (s *recordingSink) DepositFee(call *chain.Call, tok common.Address, amount *uint256.Int) error {
	current := s.deposits[tok]
	chain.SetMapValue(call.Journal(), s.deposits, tok, *new(uint256.Int).Add(&current, amount))
	return nil
}

func (s *recordingSink) deposited(tok common.Address) *uint256.Int {
	v := s.deposits[tok]
	return &v
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	rt    *chain.Runtime
	clock *chain.ManualClock
	reg   *registry.MemoryRegistry
	tok0  *token.MemoryToken
	tok1  *token.MemoryToken
	pair  *Pair
	sink  *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := chain.NewManualClock(startTime)
	rt := chain.NewRuntime(clock, nil)
	reg := registry.NewMemoryRegistry()

	tokA := token.NewMemoryToken(common.HexToAddress("0x1000000000000000000000000000000000000001"), "Token A", "TKA", 18)
	tokB := token.NewMemoryToken(common.HexToAddress("0x2000000000000000000000000000000000000002"), "Token B", "TKB", 18)
	require.NoError(t, rt.Deploy(tokA))
	require.NoError(t, rt.Deploy(tokB))

	pairAddr, token0, _, err := reg.CreatePair(tokA.Address(), tokB.Address())
	require.NoError(t, err)
	tok0, tok1 := tokA, tokB
	if token0 != tokA.Address() {
		tok0, tok1 = tokB, tokA
	}
	reg.SetPairAdmin(pairAddr, admin)
	reg.SetPairManager(pairAddr, manager)

	sink := &recordingSink{
		address:  common.HexToAddress("0x3000000000000000000000000000000000000003"),
		deposits: make(map[common.Address]uint256.Int),
	}
	require.NoError(t, rt.Deploy(sink))

	pair, err := NewPair(Config{
		Address:        pairAddr,
		Token0:         tok0.Address(),
		Token1:         tok1.Address(),
		Registry:       reg,
		FeeAccumulator: sink.address,
	})
	require.NoError(t, err)
	require.NoError(t, rt.Deploy(pair))

	return &fixture{t: t, ctx: context.Background(), rt: rt, clock: clock, reg: reg, tok0: tok0, tok1: tok1, pair: pair, sink: sink}
}

func (f *fixture) fund(account common.Address, amount0, amount1 *uint256.Int) {
	f.t.Helper()
	require.NoError(f.t, f.rt.Execute(f.ctx, account, func(call *chain.Call) error {
		if err := f.tok0.Mint(call, account, amount0); err != nil {
			return err
		}
		return f.tok1.Mint(call, account, amount1)
	}))
}

func (f *fixture) addLiquidity(account common.Address, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	f.fund(account, amount0, amount1)
	var liquidity *uint256.Int
	err := f.rt.Execute(f.ctx, account, func(call *chain.Call) error {
		if err := f.tok0.Transfer(call, f.pair.Address(), amount0); err != nil {
			return err
		}
		if err := f.tok1.Transfer(call, f.pair.Address(), amount1); err != nil {
			return err
		}
		var err error
		liquidity, err = f.pair.Mint(call, account)
		return err
	})
	return liquidity, err
}

func (f *fixture) swap0For1(account common.Address, amountIn, amountOut *uint256.Int) error {
	f.fund(account, amountIn, new(uint256.Int))
	return f.rt.Execute(f.ctx, account, func(call *chain.Call) error {
		if err := f.tok0.Transfer(call, f.pair.Address(), amountIn); err != nil {
			return err
		}
		return f.pair.Swap(call, new(uint256.Int), amountOut, account, nil)
	})
}

func (f *fixture) swap1For0(account common.Address, amountIn, amountOut *uint256.Int) error {
	f.fund(account, new(uint256.Int), amountIn)
	return f.rt.Execute(f.ctx, account, func(call *chain.Call) error {
		if err := f.tok1.Transfer(call, f.pair.Address(), amountIn); err != nil {
			return err
		}
		return f.pair.Swap(call, amountOut, new(uint256.Int), account, nil)
	})
}

func (f *fixture) setIlp(rate0, rate1 uint64) {
	f.t.Helper()
	require.NoError(f.t, f.rt.Execute(f.ctx, manager, func(call *chain.Call) error {
		return f.pair.SetIlpFeeRates(call, rate0, rate1)
	}))
	require.NoError(f.t, f.rt.Execute(f.ctx, admin, func(call *chain.Call) error {
		return f.pair.ToggleIlpFeeStatus(call, true)
	}))
}

func e18(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

func dec(s string) *uint256.Int {
	return uint256.MustFromDecimal(s)
}

func plus(a *uint256.Int, n uint64) *uint256.Int {
	return new(uint256.Int).AddUint64(a, n)
}
