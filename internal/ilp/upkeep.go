package ilp

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	errorsmod "cosmossdk.io/errors"

	"ilpswap/internal/amm"
	"ilpswap/internal/chain"
	"ilpswap/internal/token"
)

// Stage is the upkeep state machine position.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageEvaluating   Stage = "evaluating"
	StageRebalancing  Stage = "rebalancing"
	StageDistributing Stage = "distributing"
)

// Status is the outcome of an upkeep that did not fail.
type Status string

const (
	StatusSkipped    Status = "skipped"
	StatusRebalanced Status = "rebalanced"
)

// SkipReason explains why an upkeep abstained.
type SkipReason string

const (
	ReasonZeroFee        SkipReason = "zero_fee"
	ReasonZeroReserve    SkipReason = "zero_reserve"
	ReasonBelowThreshold SkipReason = "below_threshold"
)

// UpkeepResult describes what an upkeep evaluated and did. A skipped upkeep is a
// successful call that changed nothing.
type UpkeepResult struct {
	Pair   common.Address
	Status Status
	Reason SkipReason
	// Stage is the last stage reached.
	Stage Stage

	Fee0     *uint256.Int
	Fee1     *uint256.Int
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
	FeeValue *uint256.Int

	// SwapToken is the fee token sold in the self-swap; zero when no swap ran.
	SwapToken common.Address
	Swapped   *uint256.Int
	SwapOut   *uint256.Int
	// CarriedToken and Carried name an excess too small to swap. It stays in the ledger.
	CarriedToken common.Address
	Carried      *uint256.Int

	Amount0        *uint256.Int
	Amount1        *uint256.Int
	ProcessingFee0 *uint256.Int
	ProcessingFee1 *uint256.Int
	Liquidity      *uint256.Int
}

// Skipped reports whether the upkeep abstained.
func (r *UpkeepResult) Skipped() bool {
	return r != nil && r.Status == StatusSkipped
}

// CheckUpkeep evaluates the pair encoded in checkData without changing state and, when a
// rebalance is due, returns the perform data to pass to PerformUpkeep.
func (a *Accumulator) CheckUpkeep(call *chain.Call, checkData []byte) (bool, []byte, error) {
	pairAddr, err := DecodePerformData(checkData)
	if err != nil {
		return false, nil, err
	}
	p, err := a.pairAt(call, pairAddr)
	if err != nil {
		return false, nil, err
	}
	res, err := a.evaluate(p)
	if err != nil {
		return false, nil, err
	}
	if res.Skipped() {
		return false, nil, nil
	}
	return true, checkData, nil
}

// PerformUpkeep rebalances the accumulated fees of the pair encoded in performData and
// mints pool shares to the treasury. Only the configured upkeep caller may call it.
// Below-threshold and empty ledgers yield a skipped result, not an error. Any failure
// reverts the whole call, leaving the ledger intact for the next attempt.
func (a *Accumulator) PerformUpkeep(call *chain.Call, performData []byte) (*UpkeepResult, error) {
	if a.config.UpkeepCaller == (common.Address{}) || call.Sender != a.config.UpkeepCaller {
		return nil, errorsmod.Wrapf(ErrForbidden, "%s is not the upkeep caller", call.Sender.Hex())
	}
	pairAddr, err := DecodePerformData(performData)
	if err != nil {
		return nil, err
	}
	p, err := a.pairAt(call, pairAddr)
	if err != nil {
		return nil, err
	}

	res, err := a.evaluate(p)
	if err != nil {
		return nil, err
	}
	if res.Skipped() {
		res.Stage = StageIdle
		a.metrics.ObserveUpkeep(pairAddr.Hex(), string(res.Status))
		a.logger.Debug("upkeep skipped", zap.String("pair", pairAddr.Hex()), zap.String("reason", string(res.Reason)))
		return res, nil
	}

	treasury := a.config.Treasury
	if treasury == (common.Address{}) {
		return nil, errorsmod.Wrap(ErrInvalidConfig, "treasury not set")
	}

	// Consume the ledger before any transfer. A later failure reverts this too.
	token0, token1 := p.Token0(), p.Token1()
	a.consume(call, pairAddr, token0, res.Fee0)
	a.consume(call, pairAddr, token1, res.Fee1)

	res.Stage = StageRebalancing
	if err := a.rebalance(call, p, res); err != nil {
		return nil, err
	}

	res.Stage = StageDistributing
	if err := a.provision(call, p, treasury, res); err != nil {
		return nil, err
	}

	res.Stage = StageIdle
	res.Status = StatusRebalanced
	a.metrics.ObserveUpkeep(pairAddr.Hex(), string(res.Status))
	a.logger.Debug("upkeep rebalanced",
		zap.String("pair", pairAddr.Hex()),
		zap.Stringer("amount0", res.Amount0),
		zap.Stringer("amount1", res.Amount1),
		zap.Stringer("liquidity", res.Liquidity),
	)
	return res, nil
}

// evaluate reads the ledger and reserves and decides whether a rebalance is due.
func (a *Accumulator) evaluate(p Pair) (*UpkeepResult, error) {
	pairAddr := p.Address()
	reserve0, reserve1, _ := p.GetReserves()
	res := &UpkeepResult{
		Pair:     pairAddr,
		Stage:    StageEvaluating,
		Fee0:     a.Fees(pairAddr, p.Token0()),
		Fee1:     a.Fees(pairAddr, p.Token1()),
		Reserve0: reserve0,
		Reserve1: reserve1,
	}

	switch {
	case res.Fee0.IsZero() || res.Fee1.IsZero():
		res.Status, res.Reason = StatusSkipped, ReasonZeroFee
		return res, nil
	case reserve0.IsZero() || reserve1.IsZero():
		res.Status, res.Reason = StatusSkipped, ReasonZeroReserve
		return res, nil
	}

	value, err := mul(res.Fee1, reserve0)
	if err != nil {
		return nil, err
	}
	value.Div(value, reserve1)
	if _, overflow := value.AddOverflow(value, res.Fee0); overflow {
		return nil, errorsmod.Wrap(ErrOverflow, "fee value")
	}
	res.FeeValue = value
	if value.Lt(&a.config.Threshold) {
		res.Status, res.Reason = StatusSkipped, ReasonBelowThreshold
	}
	return res, nil
}

// rebalance sells the fee token in excess of the pool price for the other one, leaving
// res.Amount0 and res.Amount1 as the amounts to provision. An excess that would swap to
// zero output is credited back to the ledger and only the balanced part is provisioned.
func (a *Accumulator) rebalance(call *chain.Call, p Pair, res *UpkeepResult) error {
	fee0, fee1 := res.Fee0, res.Fee1
	reserve0, reserve1 := res.Reserve0, res.Reserve1
	res.Amount0 = new(uint256.Int).Set(fee0)
	res.Amount1 = new(uint256.Int).Set(fee1)

	lhs, err := mul(fee0, reserve1)
	if err != nil {
		return err
	}
	rhs, err := mul(fee1, reserve0)
	if err != nil {
		return err
	}

	switch lhs.Cmp(rhs) {
	case 1:
		optimal := new(uint256.Int).Div(rhs, reserve1)
		toSwap := new(uint256.Int).Sub(fee0, optimal)
		out, err := a.selfSwap(call, p, true, toSwap, reserve0, reserve1)
		if err != nil {
			return err
		}
		res.Amount0.Set(optimal)
		if out.IsZero() {
			a.carry(call, p.Address(), p.Token0(), toSwap, res)
			return nil
		}
		res.SwapToken, res.Swapped, res.SwapOut = p.Token0(), toSwap, out
		res.Amount1.Add(fee1, out)
	case -1:
		optimal := new(uint256.Int).Div(lhs, reserve0)
		toSwap := new(uint256.Int).Sub(fee1, optimal)
		out, err := a.selfSwap(call, p, false, toSwap, reserve1, reserve0)
		if err != nil {
			return err
		}
		res.Amount1.Set(optimal)
		if out.IsZero() {
			a.carry(call, p.Address(), p.Token1(), toSwap, res)
			return nil
		}
		res.SwapToken, res.Swapped, res.SwapOut = p.Token1(), toSwap, out
		res.Amount0.Add(fee0, out)
	}
	return nil
}

// carry returns an unswappable excess to the ledger for a later upkeep.
func (a *Accumulator) carry(call *chain.Call, pair, tok common.Address, amount *uint256.Int, res *UpkeepResult) {
	key := feeKey{pair: pair, token: tok}
	current := a.fees[key]
	current.Add(&current, amount)
	chain.SetMapValue(call.Journal(), a.fees, key, current)
	res.CarriedToken, res.Carried = tok, new(uint256.Int).Set(amount)
}

// selfSwap sells amountIn of one pair token for the other, with the output returned to
// the accumulator. A swap too small to yield any output is not executed.
func (a *Accumulator) selfSwap(call *chain.Call, p Pair, zeroForOne bool, amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	bypass := a.config.BypassIlpFeeOnRebalance
	var (
		out *uint256.Int
		err error
	)
	if !bypass && p.IsIlpFeeActive() {
		rate0, rate1 := p.IlpFeeRates()
		rate := rate1
		if zeroForOne {
			rate = rate0
		}
		out, err = amm.GetAmountOutWithIlpFee(amountIn, reserveIn, reserveOut, rate)
	} else {
		out, err = amm.GetAmountOut(amountIn, reserveIn, reserveOut)
	}
	if err != nil {
		return nil, err
	}
	if out.IsZero() {
		return out, nil
	}

	tokenIn := p.Token1()
	amount0Out, amount1Out := out, new(uint256.Int)
	if zeroForOne {
		tokenIn = p.Token0()
		amount0Out, amount1Out = new(uint256.Int), out
	}
	tok, err := token.At(call, tokenIn)
	if err != nil {
		return nil, err
	}
	self := call.As(a.address)
	if err := tok.Transfer(self, p.Address(), amountIn); err != nil {
		return nil, err
	}
	opts := amm.SwapOptions{BypassIlpFee: bypass}
	if err := p.SwapWithOptions(self, amount0Out, amount1Out, a.address, nil, opts); err != nil {
		return nil, err
	}
	return out, nil
}
