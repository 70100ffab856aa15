package ilp

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	errorsmod "cosmossdk.io/errors"

	"ilpswap/internal/amm"
	"ilpswap/internal/auth"
	"ilpswap/internal/chain"
	"ilpswap/internal/events"
)

// Config keys reported in ConfigUpdated events.
const (
	KeyTreasury          = "treasury"
	KeyThreshold         = "threshold"
	KeyProcessingFeeRate = "processing_fee_rate"
	KeyUpkeepCaller      = "upkeep_caller"
	KeyBypassIlpFee      = "bypass_ilp_fee_on_rebalance"
)

// RebalanceConfig parameterizes upkeep.
type RebalanceConfig struct {
	// Threshold is the minimum combined fee value, in token0 units, that triggers a rebalance.
	Threshold uint256.Int
	// ProcessingFeeRate is the share of the balanced fees sent to the treasury, in basis points.
	ProcessingFeeRate uint64
	Treasury          common.Address
	UpkeepCaller      common.Address
	// BypassIlpFeeOnRebalance exempts the rebalancing self-swap from the pair's own ILP fee.
	BypassIlpFeeOnRebalance bool
}

// Config returns a copy of the current configuration.
func (a *Accumulator) Config() RebalanceConfig {
	return a.config
}

func (a *Accumulator) SetTreasury(call *chain.Call, treasury common.Address) error {
	if err := a.require(auth.RoleTreasuryAdmin, call.Sender); err != nil {
		return err
	}
	if treasury == (common.Address{}) {
		return errorsmod.Wrap(ErrInvalidConfig, "treasury is zero")
	}
	chain.Set(call.Journal(), &a.config.Treasury, treasury)
	return a.configUpdated(call, KeyTreasury, new(uint256.Int), treasury)
}

func (a *Accumulator) SetThreshold(call *chain.Call, threshold *uint256.Int) error {
	if err := a.require(auth.RoleThresholdAdmin, call.Sender); err != nil {
		return err
	}
	chain.Set(call.Journal(), &a.config.Threshold, *threshold)
	return a.configUpdated(call, KeyThreshold, threshold, common.Address{})
}

func (a *Accumulator) SetProcessingFeeRate(call *chain.Call, rate uint64) error {
	if err := a.require(auth.RoleProcessingFeeAdmin, call.Sender); err != nil {
		return err
	}
	if rate > amm.FeeDenominator {
		return errorsmod.Wrapf(ErrInvalidFeeRate, "processing fee rate %d exceeds %d", rate, amm.FeeDenominator)
	}
	chain.Set(call.Journal(), &a.config.ProcessingFeeRate, rate)
	return a.configUpdated(call, KeyProcessingFeeRate, uint256.NewInt(rate), common.Address{})
}

func (a *Accumulator) SetUpkeepCaller(call *chain.Call, caller common.Address) error {
	if err := a.require(auth.RoleUpkeepAdmin, call.Sender); err != nil {
		return err
	}
	chain.Set(call.Journal(), &a.config.UpkeepCaller, caller)
	return a.configUpdated(call, KeyUpkeepCaller, new(uint256.Int), caller)
}

func (a *Accumulator) SetBypassIlpFeeOnRebalance(call *chain.Call, bypass bool) error {
	if err := a.require(auth.RoleRebalanceAdmin, call.Sender); err != nil {
		return err
	}
	chain.Set(call.Journal(), &a.config.BypassIlpFeeOnRebalance, bypass)
	value := new(uint256.Int)
	if bypass {
		value.SetOne()
	}
	return a.configUpdated(call, KeyBypassIlpFee, value, common.Address{})
}

func (a *Accumulator) require(role auth.Role, account common.Address) error {
	if err := a.roles.Require(role, account); err != nil {
		return errorsmod.Wrap(ErrForbidden, err.Error())
	}
	return nil
}

func (a *Accumulator) configUpdated(call *chain.Call, key string, value *uint256.Int, account common.Address) error {
	a.logger.Debug("config updated",
		zap.String("key", key),
		zap.Stringer("value", value),
		zap.String("account", account.Hex()),
		zap.String("by", call.Sender.Hex()),
	)
	return events.Emit(call, a.address, events.ConfigUpdated, nil, key, events.Big(value), account)
}
