package amm

import errorsmod "cosmossdk.io/errors"

const codespace = "amm"

var (
	ErrInsufficientLiquidity       = errorsmod.Register(codespace, 2, "insufficient liquidity")
	ErrInsufficientInputAmount     = errorsmod.Register(codespace, 3, "insufficient input amount")
	ErrInsufficientOutputAmount    = errorsmod.Register(codespace, 4, "insufficient output amount")
	ErrKInvariant                  = errorsmod.Register(codespace, 5, "k invariant violation")
	ErrForbidden                   = errorsmod.Register(codespace, 6, "forbidden")
	ErrInvalidFeeRate              = errorsmod.Register(codespace, 7, "invalid fee rate")
	ErrLocked                      = errorsmod.Register(codespace, 8, "locked")
	ErrInsufficientLiquidityMinted = errorsmod.Register(codespace, 9, "insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = errorsmod.Register(codespace, 10, "insufficient liquidity burned")
	ErrOverflow                    = errorsmod.Register(codespace, 11, "overflow")
	ErrInvalidTo                   = errorsmod.Register(codespace, 12, "invalid to")
	ErrFeeAccumulatorNotConfigured = errorsmod.Register(codespace, 13, "fee accumulator not configured")
)
