package token

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	errorsmod "cosmossdk.io/errors"

	"ilpswap/internal/chain"
	"ilpswap/internal/events"
)

// Ledger is a journaled balance and allowance book. It backs both plain tokens and
// pool shares; every mutation is recorded in the enclosing call's journal.
type Ledger struct {
	owner       common.Address
	totalSupply uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
}

// NewLedger builds an empty ledger whose events are attributed to owner.
func NewLedger(owner common.Address) *Ledger {
	return &Ledger{
		owner:      owner,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (l *Ledger) TotalSupply() *uint256.Int {
	return new(uint256.Int).Set(&l.totalSupply)
}

func (l *Ledger) BalanceOf(account common.Address) *uint256.Int {
	if bal, ok := l.balances[account]; ok {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}

func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	if inner, ok := l.allowances[owner]; ok {
		if v, ok := inner[spender]; ok {
			return new(uint256.Int).Set(v)
		}
	}
	return new(uint256.Int)
}

// Mint credits amount to account out of thin air.
func (l *Ledger) Mint(call *chain.Call, to common.Address, amount *uint256.Int) error {
	supply, overflow := new(uint256.Int).AddOverflow(&l.totalSupply, amount)
	if overflow {
		return errorsmod.Wrap(ErrInsufficientBalance, "total supply overflow")
	}
	chain.Set(call.Journal(), &l.totalSupply, *supply)
	l.setBalance(call, to, new(uint256.Int).Add(l.BalanceOf(to), amount))
	return events.EmitTransfer(call, l.owner, common.Address{}, to, amount)
}

// Burn destroys amount held by from.
func (l *Ledger) Burn(call *chain.Call, from common.Address, amount *uint256.Int) error {
	bal := l.BalanceOf(from)
	if bal.Lt(amount) {
		return errorsmod.Wrapf(ErrInsufficientBalance, "burn %s from %s holding %s", amount, from.Hex(), bal)
	}
	l.setBalance(call, from, bal.Sub(bal, amount))
	chain.Set(call.Journal(), &l.totalSupply, *new(uint256.Int).Sub(&l.totalSupply, amount))
	return events.EmitTransfer(call, l.owner, from, common.Address{}, amount)
}

// Transfer moves amount between two accounts.
func (l *Ledger) Transfer(call *chain.Call, from, to common.Address, amount *uint256.Int) error {
	bal := l.BalanceOf(from)
	if bal.Lt(amount) {
		return errorsmod.Wrapf(ErrInsufficientBalance, "transfer %s from %s holding %s", amount, from.Hex(), bal)
	}
	l.setBalance(call, from, bal.Sub(bal, amount))
	l.setBalance(call, to, new(uint256.Int).Add(l.BalanceOf(to), amount))
	return events.EmitTransfer(call, l.owner, from, to, amount)
}

// Approve sets the allowance of spender over owner's balance.
func (l *Ledger) Approve(call *chain.Call, owner, spender common.Address, amount *uint256.Int) error {
	inner, ok := l.allowances[owner]
	if !ok {
		inner = make(map[common.Address]*uint256.Int)
		chain.SetMapValue(call.Journal(), l.allowances, owner, inner)
	}
	chain.SetMapValue(call.Journal(), inner, spender, new(uint256.Int).Set(amount))
	return events.EmitApproval(call, l.owner, owner, spender, amount)
}

// SpendAllowance consumes amount of spender's allowance. An allowance of 2^256-1 is
// treated as infinite and left untouched.
func (l *Ledger) SpendAllowance(call *chain.Call, owner, spender common.Address, amount *uint256.Int) error {
	current := l.Allowance(owner, spender)
	if amount.IsZero() || current.Eq(maxAllowance) {
		return nil
	}
	if current.Lt(amount) {
		return errorsmod.Wrapf(ErrInsufficientAllowance, "spender %s has %s, needs %s", spender.Hex(), current, amount)
	}
	chain.SetMapValue(call.Journal(), l.allowances[owner], spender, current.Sub(current, amount))
	return nil
}

// TransferFrom moves amount from from to to using the caller's allowance.
func (l *Ledger) TransferFrom(call *chain.Call, spender, from, to common.Address, amount *uint256.Int) error {
	if spender != from {
		if err := l.SpendAllowance(call, from, spender, amount); err != nil {
			return err
		}
	}
	return l.Transfer(call, from, to, amount)
}

func (l *Ledger) setBalance(call *chain.Call, account common.Address, value *uint256.Int) {
	chain.SetMapValue(call.Journal(), l.balances, account, value)
}

var maxAllowance = new(uint256.Int).SetAllOne()

// MaxAllowance returns the infinite allowance value.
func MaxAllowance() *uint256.Int {
	return new(uint256.Int).Set(maxAllowance)
}
