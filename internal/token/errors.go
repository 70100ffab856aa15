package token

import errorsmod "cosmossdk.io/errors"

const codespace = "token"

var (
	ErrInsufficientBalance   = errorsmod.Register(codespace, 2, "insufficient balance")
	ErrInsufficientAllowance = errorsmod.Register(codespace, 3, "insufficient allowance")
	ErrNotToken              = errorsmod.Register(codespace, 4, "no token deployed at address")
)
