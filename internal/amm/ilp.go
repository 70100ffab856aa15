package amm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	errorsmod "cosmossdk.io/errors"

	"ilpswap/internal/chain"
	"ilpswap/internal/events"
)

// ToggleIlpFeeStatus switches the ILP fee on or off. Only the pair admin may call it.
func (p *Pair) ToggleIlpFeeStatus(call *chain.Call, active bool) error {
	if p.registry == nil || call.Sender != p.registry.PairAdmin(p.address) {
		return errorsmod.Wrapf(ErrForbidden, "%s is not the pair admin", call.Sender.Hex())
	}
	if active && p.feeAccumulator == (common.Address{}) {
		return ErrFeeAccumulatorNotConfigured
	}
	chain.Set(call.Journal(), &p.ilpFeeActive, active)
	p.logger.Debug("ilp fee status toggled", zap.Bool("active", active))
	return events.Emit(call, p.address, events.IlpFeeStatusToggled, nil, active)
}

// SetIlpFeeRates sets the ILP fee charged on token0 and token1 inputs, in basis points.
// Only the pair manager may call it.
func (p *Pair) SetIlpFeeRates(call *chain.Call, rate0, rate1 uint64) error {
	if p.registry == nil || call.Sender != p.registry.PairManager(p.address) {
		return errorsmod.Wrapf(ErrForbidden, "%s is not the pair manager", call.Sender.Hex())
	}
	if rate0 > MaxIlpFeeRate || rate1 > MaxIlpFeeRate {
		return errorsmod.Wrapf(ErrInvalidFeeRate, "rates %d/%d exceed %d", rate0, rate1, MaxIlpFeeRate)
	}
	chain.Set(call.Journal(), &p.ilpFeeRate0, rate0)
	chain.Set(call.Journal(), &p.ilpFeeRate1, rate1)
	p.logger.Debug("ilp fee rates set", zap.Uint64("rate0", rate0), zap.Uint64("rate1", rate1))
	return events.Emit(call, p.address, events.IlpFeeRatesSet, nil,
		events.Big(uint256.NewInt(rate0)), events.Big(uint256.NewInt(rate1)))
}

// IlpFeeRates returns the token0-in and token1-in ILP fee rates.
func (p *Pair) IlpFeeRates() (uint64, uint64) {
	return p.ilpFeeRate0, p.ilpFeeRate1
}

func (p *Pair) IsIlpFeeActive() bool {
	return p.ilpFeeActive
}
