package amm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	errorsmod "cosmossdk.io/errors"

	"ilpswap/internal/chain"
	"ilpswap/internal/events"
	"ilpswap/internal/fixedpoint"
	"ilpswap/internal/metrics"
	"ilpswap/internal/token"
)

// BurnAddress holds the permanently locked minimum liquidity.
var BurnAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// Registry is the part of the pair registry a pair consults.
type Registry interface {
	FeeTo() common.Address
	PairAdmin(pair common.Address) common.Address
	PairManager(pair common.Address) common.Address
}

// FeeSink receives ILP fees pushed by a pair.
type FeeSink interface {
	chain.Contract
	DepositFee(call *chain.Call, token common.Address, amount *uint256.Int) error
}

// Callee is implemented by contracts that receive flash-swap callbacks.
type Callee interface {
	IlpSwapCall(call *chain.Call, sender common.Address, amount0Out, amount1Out *uint256.Int, data []byte) error
}

// Config wires a pair to its collaborators.
type Config struct {
	Address        common.Address
	Token0         common.Address
	Token1         common.Address
	Registry       Registry
	FeeAccumulator common.Address
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
}

// Pair is a constant-product pool over two tokens that also issues pool shares.
type Pair struct {
	address        common.Address
	token0         common.Address
	token1         common.Address
	registry       Registry
	feeAccumulator common.Address
	logger         *zap.Logger
	metrics        *metrics.Metrics

	shares *token.Ledger

	reserve0             uint256.Int
	reserve1             uint256.Int
	blockTimestampLast   uint32
	price0CumulativeLast fixedpoint.Cumulative
	price1CumulativeLast fixedpoint.Cumulative
	kLast                uint256.Int

	ilpFeeActive bool
	ilpFeeRate0  uint64
	ilpFeeRate1  uint64

	unlocked bool
}

// NewPair builds a pair. Token0 must sort before Token1.
func NewPair(cfg Config) (*Pair, error) {
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("pair address is zero")
	}
	if cfg.Token0 == (common.Address{}) || cfg.Token1 == (common.Address{}) {
		return nil, fmt.Errorf("token address is zero")
	}
	if cfg.Token0.Cmp(cfg.Token1) >= 0 {
		return nil, fmt.Errorf("tokens not sorted: %s >= %s", cfg.Token0.Hex(), cfg.Token1.Hex())
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pair{
		address:        cfg.Address,
		token0:         cfg.Token0,
		token1:         cfg.Token1,
		registry:       cfg.Registry,
		feeAccumulator: cfg.FeeAccumulator,
		logger:         logger.With(zap.String("pair", cfg.Address.Hex())),
		metrics:        cfg.Metrics,
		shares:         token.NewLedger(cfg.Address),
		unlocked:       true,
	}, nil
}

func (p *Pair) Address() common.Address        { return p.address }
func (p *Pair) Token0() common.Address         { return p.token0 }
func (p *Pair) Token1() common.Address         { return p.token1 }
func (p *Pair) FeeAccumulator() common.Address { return p.feeAccumulator }

// GetReserves returns the reserves and the block timestamp (mod 2^32) of the last update.
func (p *Pair) GetReserves() (*uint256.Int, *uint256.Int, uint32) {
	return new(uint256.Int).Set(&p.reserve0), new(uint256.Int).Set(&p.reserve1), p.blockTimestampLast
}

func (p *Pair) Price0CumulativeLast() fixedpoint.Cumulative { return p.price0CumulativeLast }
func (p *Pair) Price1CumulativeLast() fixedpoint.Cumulative { return p.price1CumulativeLast }

// KLast is reserve0*reserve1 as of the last liquidity event while the protocol fee was on.
func (p *Pair) KLast() *uint256.Int {
	return new(uint256.Int).Set(&p.kLast)
}

// Sync forces reserves to match the custodied balances.
func (p *Pair) Sync(call *chain.Call) error {
	if err := p.lock(call); err != nil {
		return err
	}
	defer p.unlock(call)

	balance0, balance1, err := p.balances(call)
	if err != nil {
		return err
	}
	return p.update(call, balance0, balance1, &p.reserve0, &p.reserve1)
}

// Skim sends any balance in excess of the reserves to to.
func (p *Pair) Skim(call *chain.Call, to common.Address) error {
	if err := p.lock(call); err != nil {
		return err
	}
	defer p.unlock(call)

	balance0, balance1, err := p.balances(call)
	if err != nil {
		return err
	}
	if balance0.Gt(&p.reserve0) {
		if err := p.transfer(call, p.token0, to, new(uint256.Int).Sub(balance0, &p.reserve0)); err != nil {
			return err
		}
	}
	if balance1.Gt(&p.reserve1) {
		if err := p.transfer(call, p.token1, to, new(uint256.Int).Sub(balance1, &p.reserve1)); err != nil {
			return err
		}
	}
	return nil
}

// update writes new reserves and advances the price accumulators using the reserves in
// force before this block.
func (p *Pair) update(call *chain.Call, balance0, balance1, reserve0, reserve1 *uint256.Int) error {
	if !fixedpoint.FitsUint112(balance0) || !fixedpoint.FitsUint112(balance1) {
		return errorsmod.Wrapf(ErrOverflow, "balances %s/%s exceed uint112", balance0, balance1)
	}
	j := call.Journal()

	blockTimestamp := uint32(call.Time)
	elapsed := blockTimestamp - p.blockTimestampLast
	if elapsed > 0 && !reserve0.IsZero() && !reserve1.IsZero() {
		price0, err := fixedpoint.Fraction(reserve1, reserve0)
		if err != nil {
			return err
		}
		price1, err := fixedpoint.Fraction(reserve0, reserve1)
		if err != nil {
			return err
		}
		chain.Set(j, &p.price0CumulativeLast, p.price0CumulativeLast.Advance(price0, elapsed))
		chain.Set(j, &p.price1CumulativeLast, p.price1CumulativeLast.Advance(price1, elapsed))
	}

	chain.Set(j, &p.reserve0, *balance0)
	chain.Set(j, &p.reserve1, *balance1)
	chain.Set(j, &p.blockTimestampLast, blockTimestamp)

	p.metrics.SetReserves(p.address.Hex(), toFloat(balance0), toFloat(balance1))
	return events.Emit(call, p.address, events.Sync, nil, events.Big(balance0), events.Big(balance1))
}

func (p *Pair) balances(call *chain.Call) (*uint256.Int, *uint256.Int, error) {
	tok0, err := token.At(call, p.token0)
	if err != nil {
		return nil, nil, err
	}
	tok1, err := token.At(call, p.token1)
	if err != nil {
		return nil, nil, err
	}
	return tok0.BalanceOf(p.address), tok1.BalanceOf(p.address), nil
}

// transfer sends tokens held by the pair.
func (p *Pair) transfer(call *chain.Call, tokenAddr, to common.Address, amount *uint256.Int) error {
	tok, err := token.At(call, tokenAddr)
	if err != nil {
		return err
	}
	return tok.Transfer(call.As(p.address), to, amount)
}

func toFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
