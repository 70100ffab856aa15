package amm

import "ilpswap/internal/chain"

// lock acquires the reentrancy guard for the rest of the call. Pair with a deferred unlock.
func (p *Pair) lock(call *chain.Call) error {
	if !p.unlocked {
		return ErrLocked
	}
	chain.Set(call.Journal(), &p.unlocked, false)
	return nil
}

func (p *Pair) unlock(call *chain.Call) {
	chain.Set(call.Journal(), &p.unlocked, true)
}
