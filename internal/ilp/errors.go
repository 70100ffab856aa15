package ilp

import errorsmod "cosmossdk.io/errors"

const codespace = "ilp"

var (
	ErrForbidden          = errorsmod.Register(codespace, 2, "forbidden")
	ErrSenderNotPair      = errorsmod.Register(codespace, 3, "sender not pair")
	ErrInvalidFeeRate     = errorsmod.Register(codespace, 4, "invalid fee rate")
	ErrInvalidConfig      = errorsmod.Register(codespace, 5, "invalid config")
	ErrInvalidPerformData = errorsmod.Register(codespace, 6, "invalid perform data")
	ErrOverflow           = errorsmod.Register(codespace, 7, "overflow")
)
