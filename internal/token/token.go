package token

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	errorsmod "cosmossdk.io/errors"

	"ilpswap/internal/chain"
)

// ERC20 is the token surface the pair and accumulator move value through. The caller
// identity is the Sender of the call frame.
type ERC20 interface {
	chain.Contract
	TotalSupply() *uint256.Int
	BalanceOf(account common.Address) *uint256.Int
	Allowance(owner, spender common.Address) *uint256.Int
	Transfer(call *chain.Call, to common.Address, amount *uint256.Int) error
	TransferFrom(call *chain.Call, from, to common.Address, amount *uint256.Int) error
	Approve(call *chain.Call, spender common.Address, amount *uint256.Int) error
}

// At resolves the token deployed at addr.
func At(call *chain.Call, addr common.Address) (ERC20, error) {
	c, ok := call.Contract(addr)
	if !ok {
		return nil, errorsmod.Wrapf(ErrNotToken, "%s", addr.Hex())
	}
	tok, ok := c.(ERC20)
	if !ok {
		return nil, errorsmod.Wrapf(ErrNotToken, "%s is %T", addr.Hex(), c)
	}
	return tok, nil
}

// MemoryToken is a plain fungible token with an unrestricted faucet, used by the
// simulator and tests.
type MemoryToken struct {
	address  common.Address
	name     string
	symbol   string
	decimals uint8
	ledger   *Ledger
}

// NewMemoryToken builds a token at address. It still has to be deployed into the runtime.
func NewMemoryToken(address common.Address, name, symbol string, decimals uint8) *MemoryToken {
	return &MemoryToken{
		address:  address,
		name:     name,
		symbol:   symbol,
		decimals: decimals,
		ledger:   NewLedger(address),
	}
}

func (t *MemoryToken) Address() common.Address { return t.address }
func (t *MemoryToken) Name() string            { return t.name }
func (t *MemoryToken) Symbol() string          { return t.symbol }
func (t *MemoryToken) Decimals() uint8         { return t.decimals }

func (t *MemoryToken) TotalSupply() *uint256.Int {
	return t.ledger.TotalSupply()
}

func (t *MemoryToken) BalanceOf(account common.Address) *uint256.Int {
	return t.ledger.BalanceOf(account)
}

func (t *MemoryToken) Allowance(owner, spender common.Address) *uint256.Int {
	return t.ledger.Allowance(owner, spender)
}

func (t *MemoryToken) Transfer(call *chain.Call, to common.Address, amount *uint256.Int) error {
	return t.ledger.Transfer(call, call.Sender, to, amount)
}

func (t *MemoryToken) TransferFrom(call *chain.Call, from, to common.Address, amount *uint256.Int) error {
	return t.ledger.TransferFrom(call, call.Sender, from, to, amount)
}

func (t *MemoryToken) Approve(call *chain.Call, spender common.Address, amount *uint256.Int) error {
	return t.ledger.Approve(call, call.Sender, spender, amount)
}

// Mint credits amount to account.
func (t *MemoryToken) Mint(call *chain.Call, to common.Address, amount *uint256.Int) error {
	return t.ledger.Mint(call, to, amount)
}
