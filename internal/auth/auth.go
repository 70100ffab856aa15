// Package auth holds role assignments checked by contract entry points.
package auth

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	errorsmod "cosmossdk.io/errors"
)

// Role names a capability.
type Role string

const (
	RoleTreasuryAdmin      Role = "treasury_admin"
	RoleThresholdAdmin     Role = "threshold_admin"
	RoleProcessingFeeAdmin Role = "processing_fee_admin"
	RoleUpkeepAdmin        Role = "upkeep_admin"
	RoleRebalanceAdmin     Role = "rebalance_admin"
)

var ErrForbidden = errorsmod.Register("auth", 2, "forbidden")

// Table maps roles to the accounts holding them.
type Table struct {
	mu      sync.RWMutex
	holders map[Role]map[common.Address]struct{}
}

func NewTable() *Table {
	return &Table{holders: make(map[Role]map[common.Address]struct{})}
}

// Grant assigns role to account.
func (t *Table) Grant(role Role, account common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.holders[role]
	if !ok {
		set = make(map[common.Address]struct{})
		t.holders[role] = set
	}
	set[account] = struct{}{}
}

// Revoke removes role from account.
func (t *Table) Revoke(role Role, account common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.holders[role], account)
}

// Has reports whether account holds role.
func (t *Table) Has(role Role, account common.Address) bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.holders[role][account]
	return ok
}

// Require fails with ErrForbidden unless account holds role.
func (t *Table) Require(role Role, account common.Address) error {
	if !t.Has(role, account) {
		return errorsmod.Wrapf(ErrForbidden, "%s lacks role %s", account.Hex(), role)
	}
	return nil
}

// Holders lists the accounts holding role in address order.
func (t *Table) Holders(role Role) []common.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]common.Address, 0, len(t.holders[role]))
	for addr := range t.holders[role] {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}
