package ilp

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"ilpswap/internal/amm"
	"ilpswap/internal/auth"
	"ilpswap/internal/chain"
	"ilpswap/internal/registry"
	"ilpswap/internal/token"
)

var (
	governor = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	manager  = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	keeper   = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	lp       = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	trader   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	rt    *chain.Runtime
	reg   *registry.MemoryRegistry
	roles *auth.Table
	tok0  *token.MemoryToken
	tok1  *token.MemoryToken
	pair  *amm.Pair
	acc   *Accumulator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rt := chain.NewRuntime(chain.NewManualClock(1_700_000_000), nil)
	reg := registry.NewMemoryRegistry()
	roles := auth.NewTable()
	for _, role := range []auth.Role{
		auth.RoleTreasuryAdmin, auth.RoleThresholdAdmin, auth.RoleProcessingFeeAdmin,
		auth.RoleUpkeepAdmin, auth.RoleRebalanceAdmin,
	} {
		roles.Grant(role, governor)
	}

	tokA := token.NewMemoryToken(common.HexToAddress("0x1000000000000000000000000000000000000001"), "Token A", "TKA", 18)
	tokB := token.NewMemoryToken(common.HexToAddress("0x2000000000000000000000000000000000000002"), "Token B", "TKB", 18)
	require.NoError(t, rt.Deploy(tokA))
	require.NoError(t, rt.Deploy(tokB))

	acc, err := NewAccumulator(Config{
		Address:  common.HexToAddress("0x3000000000000000000000000000000000000003"),
		Registry: reg,
		Roles:    roles,
	})
	require.NoError(t, err)
	require.NoError(t, rt.Deploy(acc))

	pairAddr, token0, _, err := reg.CreatePair(tokA.Address(), tokB.Address())
	require.NoError(t, err)
	tok0, tok1 := tokA, tokB
	if token0 != tokA.Address() {
		tok0, tok1 = tokB, tokA
	}
	reg.SetPairAdmin(pairAddr, admin)
	reg.SetPairManager(pairAddr, manager)

	pair, err := amm.NewPair(amm.Config{
		Address:        pairAddr,
		Token0:         tok0.Address(),
		Token1:         tok1.Address(),
		Registry:       reg,
		FeeAccumulator: acc.Address(),
	})
	require.NoError(t, err)
	require.NoError(t, rt.Deploy(pair))

	return &fixture{t: t, ctx: context.Background(), rt: rt, reg: reg, roles: roles, tok0: tok0, tok1: tok1, pair: pair, acc: acc}
}

func (f *fixture) exec(sender common.Address, fn func(call *chain.Call) error) error {
	return f.rt.Execute(f.ctx, sender, fn)
}

func (f *fixture) addLiquidity(amount0, amount1 *uint256.Int) {
	f.t.Helper()
	require.NoError(f.t, f.exec(lp, func(call *chain.Call) error {
		if err := f.tok0.Mint(call, f.pair.Address(), amount0); err != nil {
			return err
		}
		if err := f.tok1.Mint(call, f.pair.Address(), amount1); err != nil {
			return err
		}
		_, err := f.pair.Mint(call, lp)
		return err
	}))
}

// injectFees credits the accumulator with fee tokens as if the pair had pushed them.
func (f *fixture) injectFees(fee0, fee1 *uint256.Int) {
	f.t.Helper()
	require.NoError(f.t, f.exec(trader, func(call *chain.Call) error {
		pairCall := call.As(f.pair.Address())
		if err := f.tok0.Mint(call, f.acc.Address(), fee0); err != nil {
			return err
		}
		if err := f.tok1.Mint(call, f.acc.Address(), fee1); err != nil {
			return err
		}
		if !fee0.IsZero() {
			if err := f.acc.DepositFee(pairCall, f.tok0.Address(), fee0); err != nil {
				return err
			}
		}
		if !fee1.IsZero() {
			return f.acc.DepositFee(pairCall, f.tok1.Address(), fee1)
		}
		return nil
	}))
}

func (f *fixture) configure(threshold *uint256.Int, processingFeeRate uint64) {
	f.t.Helper()
	require.NoError(f.t, f.exec(governor, func(call *chain.Call) error {
		if err := f.acc.SetTreasury(call, treasury); err != nil {
			return err
		}
		if err := f.acc.SetUpkeepCaller(call, keeper); err != nil {
			return err
		}
		if err := f.acc.SetThreshold(call, threshold); err != nil {
			return err
		}
		return f.acc.SetProcessingFeeRate(call, processingFeeRate)
	}))
}

func (f *fixture) perform(sender common.Address) (*UpkeepResult, error) {
	data, err := EncodePerformData(f.pair.Address())
	require.NoError(f.t, err)
	var res *UpkeepResult
	err = f.exec(sender, func(call *chain.Call) error {
		var err error
		res, err = f.acc.PerformUpkeep(call, data)
		return err
	})
	return res, err
}

func (f *fixture) fees() (*uint256.Int, *uint256.Int) {
	return f.acc.Fees(f.pair.Address(), f.tok0.Address()), f.acc.Fees(f.pair.Address(), f.tok1.Address())
}

func e18(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

func plus(a *uint256.Int, n uint64) *uint256.Int {
	return new(uint256.Int).AddUint64(a, n)
}
