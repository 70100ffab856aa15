package amm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	errorsmod "cosmossdk.io/errors"

	"ilpswap/internal/chain"
	"ilpswap/internal/events"
)

// SwapOptions adjusts swap fee handling.
type SwapOptions struct {
	// BypassIlpFee skips the ILP fee. Only the pair's fee accumulator may set it.
	BypassIlpFee bool
}

// Swap sends the requested outputs to to and then verifies that the caller paid for
// them. Inputs must already sit in the pair or arrive during the flash-swap callback,
// which runs when data is non-empty.
func (p *Pair) Swap(call *chain.Call, amount0Out, amount1Out *uint256.Int, to common.Address, data []byte) error {
	return p.SwapWithOptions(call, amount0Out, amount1Out, to, data, SwapOptions{})
}

// SwapWithOptions is Swap with explicit fee options.
func (p *Pair) SwapWithOptions(call *chain.Call, amount0Out, amount1Out *uint256.Int, to common.Address, data []byte, opts SwapOptions) error {
	if amount0Out.IsZero() && amount1Out.IsZero() {
		return ErrInsufficientOutputAmount
	}
	if opts.BypassIlpFee && (p.feeAccumulator == (common.Address{}) || call.Sender != p.feeAccumulator) {
		return errorsmod.Wrapf(ErrForbidden, "%s may not bypass the ilp fee", call.Sender.Hex())
	}
	if err := p.lock(call); err != nil {
		return err
	}
	defer p.unlock(call)

	reserve0, reserve1, _ := p.GetReserves()
	if !amount0Out.Lt(reserve0) || !amount1Out.Lt(reserve1) {
		return ErrInsufficientLiquidity
	}
	if to == p.token0 || to == p.token1 {
		return ErrInvalidTo
	}

	// Optimistic transfer, then the flash-swap callback.
	if !amount0Out.IsZero() {
		if err := p.transfer(call, p.token0, to, amount0Out); err != nil {
			return err
		}
	}
	if !amount1Out.IsZero() {
		if err := p.transfer(call, p.token1, to, amount1Out); err != nil {
			return err
		}
	}
	if len(data) > 0 {
		if err := p.flashCallback(call, to, amount0Out, amount1Out, data); err != nil {
			return err
		}
	}

	balance0, balance1, err := p.balances(call)
	if err != nil {
		return err
	}
	amount0In := netInput(balance0, reserve0, amount0Out)
	amount1In := netInput(balance1, reserve1, amount1Out)
	if amount0In.IsZero() && amount1In.IsZero() {
		return ErrInsufficientInputAmount
	}
	gross0In := new(uint256.Int).Set(amount0In)
	gross1In := new(uint256.Int).Set(amount1In)

	if p.ilpFeeActive && !opts.BypassIlpFee {
		if err := p.chargeIlpFee(call, p.token0, p.ilpFeeRate0, balance0, amount0In); err != nil {
			return err
		}
		if err := p.chargeIlpFee(call, p.token1, p.ilpFeeRate1, balance1, amount1In); err != nil {
			return err
		}
	}

	adjusted0, err := feeAdjusted(balance0, amount0In)
	if err != nil {
		return err
	}
	adjusted1, err := feeAdjusted(balance1, amount1In)
	if err != nil {
		return err
	}
	lhs, err := mul(adjusted0, adjusted1)
	if err != nil {
		return err
	}
	rhs := new(uint256.Int).Mul(reserve0, reserve1)
	if rhs, err = mul(rhs, uint256.NewInt(FeeDenominator*FeeDenominator)); err != nil {
		return err
	}
	if lhs.Lt(rhs) {
		return ErrKInvariant
	}

	if err := p.update(call, balance0, balance1, reserve0, reserve1); err != nil {
		return err
	}

	side := "token0"
	if amount0In.IsZero() {
		side = "token1"
	}
	p.metrics.ObserveSwap(p.address.Hex(), side)
	p.logger.Debug("swap",
		zap.String("sender", call.Sender.Hex()),
		zap.String("to", to.Hex()),
		zap.Stringer("amount0_in", gross0In),
		zap.Stringer("amount1_in", gross1In),
		zap.Stringer("amount0_out", amount0Out),
		zap.Stringer("amount1_out", amount1Out),
	)
	return events.Emit(call, p.address, events.Swap,
		[]common.Hash{events.AddressTopic(call.Sender), events.AddressTopic(to)},
		events.Big(gross0In), events.Big(gross1In), events.Big(amount0Out), events.Big(amount1Out))
}

// chargeIlpFee moves rate basis points of amountIn to the fee accumulator and records
// the deposit. balance and amountIn are reduced in place by the fee.
func (p *Pair) chargeIlpFee(call *chain.Call, tokenAddr common.Address, rate uint64, balance, amountIn *uint256.Int) error {
	if rate == 0 || amountIn.IsZero() {
		return nil
	}
	fee, err := IlpFee(amountIn, rate)
	if err != nil {
		return err
	}
	if fee.IsZero() {
		return nil
	}
	sink, err := p.feeSink(call)
	if err != nil {
		return err
	}
	if err := p.transfer(call, tokenAddr, sink.Address(), fee); err != nil {
		return err
	}
	if err := sink.DepositFee(call.As(p.address), tokenAddr, fee); err != nil {
		return err
	}
	balance.Sub(balance, fee)
	amountIn.Sub(amountIn, fee)
	p.metrics.ObserveIlpFee(p.address.Hex())
	return nil
}

func (p *Pair) feeSink(call *chain.Call) (FeeSink, error) {
	if p.feeAccumulator == (common.Address{}) {
		return nil, ErrFeeAccumulatorNotConfigured
	}
	c, ok := call.Contract(p.feeAccumulator)
	if !ok {
		return nil, errorsmod.Wrapf(ErrFeeAccumulatorNotConfigured, "no code at %s", p.feeAccumulator.Hex())
	}
	sink, ok := c.(FeeSink)
	if !ok {
		return nil, errorsmod.Wrapf(ErrFeeAccumulatorNotConfigured, "%T does not accept fees", c)
	}
	return sink, nil
}

func (p *Pair) flashCallback(call *chain.Call, to common.Address, amount0Out, amount1Out *uint256.Int, data []byte) error {
	c, ok := call.Contract(to)
	if !ok {
		return errorsmod.Wrapf(ErrInvalidTo, "callback target %s has no code", to.Hex())
	}
	callee, ok := c.(Callee)
	if !ok {
		return errorsmod.Wrapf(ErrInvalidTo, "callback target %T is not a callee", c)
	}
	return callee.IlpSwapCall(call.As(p.address), call.Sender, amount0Out, amount1Out, data)
}

// netInput returns balance - (reserve - amountOut), floored at zero.
func netInput(balance, reserve, amountOut *uint256.Int) *uint256.Int {
	remaining := new(uint256.Int).Sub(reserve, amountOut)
	if !balance.Gt(remaining) {
		return new(uint256.Int)
	}
	return remaining.Sub(balance, remaining)
}

// feeAdjusted returns balance*10000 - amountIn*36.
func feeAdjusted(balance, amountIn *uint256.Int) (*uint256.Int, error) {
	scaled, err := mul(balance, feeDenominator)
	if err != nil {
		return nil, err
	}
	fee, err := mul(amountIn, lpFeeBps)
	if err != nil {
		return nil, err
	}
	return scaled.Sub(scaled, fee), nil
}
