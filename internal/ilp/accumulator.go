// Package ilp implements the fee accumulator that collects ILP fees from pairs and
// turns them into protocol-owned liquidity.
package ilp

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	errorsmod "cosmossdk.io/errors"

	"ilpswap/internal/amm"
	"ilpswap/internal/auth"
	"ilpswap/internal/chain"
	"ilpswap/internal/events"
	"ilpswap/internal/metrics"
)

// Pair is the pair surface the accumulator drives.
type Pair interface {
	chain.Contract
	Token0() common.Address
	Token1() common.Address
	GetReserves() (*uint256.Int, *uint256.Int, uint32)
	IlpFeeRates() (uint64, uint64)
	IsIlpFeeActive() bool
	Mint(call *chain.Call, to common.Address) (*uint256.Int, error)
	SwapWithOptions(call *chain.Call, amount0Out, amount1Out *uint256.Int, to common.Address, data []byte, opts amm.SwapOptions) error
}

// Registry resolves the canonical pair of two tokens.
type Registry interface {
	GetPair(tokenA, tokenB common.Address) common.Address
}

// Config wires an accumulator to its collaborators.
type Config struct {
	Address  common.Address
	Registry Registry
	Roles    *auth.Table
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

type feeKey struct {
	pair  common.Address
	token common.Address
}

// Accumulator keeps the per (pair, token) ILP fee ledger and runs upkeep.
type Accumulator struct {
	address  common.Address
	registry Registry
	roles    *auth.Table
	logger   *zap.Logger
	metrics  *metrics.Metrics

	fees   map[feeKey]uint256.Int
	config RebalanceConfig
}

// NewAccumulator builds an accumulator with the default configuration: no treasury,
// no upkeep caller, zero threshold and processing fee, ILP bypass on rebalance enabled.
func NewAccumulator(cfg Config) (*Accumulator, error) {
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("accumulator address is zero")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	roles := cfg.Roles
	if roles == nil {
		roles = auth.NewTable()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accumulator{
		address:  cfg.Address,
		registry: cfg.Registry,
		roles:    roles,
		logger:   logger.With(zap.String("accumulator", cfg.Address.Hex())),
		metrics:  cfg.Metrics,
		fees:     make(map[feeKey]uint256.Int),
		config:   RebalanceConfig{BypassIlpFeeOnRebalance: true},
	}, nil
}

func (a *Accumulator) Address() common.Address { return a.address }

// Fees returns the accumulated amount of token for pair.
func (a *Accumulator) Fees(pair, token common.Address) *uint256.Int {
	v := a.fees[feeKey{pair: pair, token: token}]
	return &v
}

// DepositFee records amount of token as fees harvested by the calling pair. The caller
// must be a deployed pair registered for a token pair that includes token. Deposits
// accumulate; the call is not idempotent.
func (a *Accumulator) DepositFee(call *chain.Call, token common.Address, amount *uint256.Int) error {
	pairAddr := call.Sender
	if !call.HasCode(pairAddr) {
		return errorsmod.Wrapf(ErrSenderNotPair, "%s has no code", pairAddr.Hex())
	}
	c, _ := call.Contract(pairAddr)
	p, ok := c.(interface {
		Token0() common.Address
		Token1() common.Address
	})
	if !ok {
		return errorsmod.Wrapf(ErrSenderNotPair, "%s is not a pair", pairAddr.Hex())
	}
	token0, token1 := p.Token0(), p.Token1()
	if a.registry.GetPair(token0, token1) != pairAddr {
		return errorsmod.Wrapf(ErrSenderNotPair, "%s is not registered", pairAddr.Hex())
	}
	if token != token0 && token != token1 {
		return errorsmod.Wrapf(ErrSenderNotPair, "token %s not in pair %s", token.Hex(), pairAddr.Hex())
	}

	key := feeKey{pair: pairAddr, token: token}
	current := a.fees[key]
	next, overflow := new(uint256.Int).AddOverflow(&current, amount)
	if overflow {
		return errorsmod.Wrap(ErrOverflow, "fee ledger")
	}
	chain.SetMapValue(call.Journal(), a.fees, key, *next)

	a.metrics.ObserveFeeDeposit(pairAddr.Hex(), token.Hex())
	a.logger.Debug("fee deposited",
		zap.String("pair", pairAddr.Hex()),
		zap.String("token", token.Hex()),
		zap.Stringer("amount", amount),
		zap.Stringer("total", next),
	)
	return events.Emit(call, a.address, events.FeeDeposited,
		[]common.Hash{events.AddressTopic(pairAddr), events.AddressTopic(token)}, events.Big(amount))
}

// consume reduces the ledger entry by amount.
func (a *Accumulator) consume(call *chain.Call, pair, token common.Address, amount *uint256.Int) {
	key := feeKey{pair: pair, token: token}
	current := a.fees[key]
	if current.Lt(amount) {
		current.Clear()
	} else {
		current.Sub(&current, amount)
	}
	chain.SetMapValue(call.Journal(), a.fees, key, current)
}

func (a *Accumulator) pairAt(call *chain.Call, addr common.Address) (Pair, error) {
	c, ok := call.Contract(addr)
	if !ok {
		return nil, errorsmod.Wrapf(ErrInvalidPerformData, "no pair at %s", addr.Hex())
	}
	p, ok := c.(Pair)
	if !ok {
		return nil, errorsmod.Wrapf(ErrInvalidPerformData, "%s is %T", addr.Hex(), c)
	}
	return p, nil
}

func mul(x, y *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, errorsmod.Wrapf(ErrOverflow, "%s * %s", x, y)
	}
	return out, nil
}
