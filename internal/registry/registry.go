// Package registry is an in-memory pair registry: token pair to pair address lookup,
// the protocol fee recipient and the per-pair admin and manager identities.
package registry

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SortTokens orders two token addresses the way pairs store them.
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address, error) {
	if tokenA == tokenB {
		return common.Address{}, common.Address{}, fmt.Errorf("identical addresses: %s", tokenA.Hex())
	}
	token0, token1 := tokenA, tokenB
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		token0, token1 = tokenB, tokenA
	}
	if token0 == (common.Address{}) {
		return common.Address{}, common.Address{}, fmt.Errorf("zero address")
	}
	return token0, token1, nil
}

// PairAddress derives the address of the pair for two sorted tokens.
func PairAddress(token0, token1 common.Address) common.Address {
	return common.BytesToAddress(crypto.Keccak256(token0.Bytes(), token1.Bytes())[12:])
}

type pairKey struct {
	token0 common.Address
	token1 common.Address
}

// MemoryRegistry tracks created pairs and their governance identities.
type MemoryRegistry struct {
	mu       sync.RWMutex
	pairs    map[pairKey]common.Address
	all      []common.Address
	feeTo    common.Address
	admins   map[common.Address]common.Address
	managers map[common.Address]common.Address
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		pairs:    make(map[pairKey]common.Address),
		admins:   make(map[common.Address]common.Address),
		managers: make(map[common.Address]common.Address),
	}
}

// CreatePair registers the pair for tokenA and tokenB and returns its address along
// with the sorted tokens. The caller deploys the pair contract at that address.
func (r *MemoryRegistry) CreatePair(tokenA, tokenB common.Address) (pair, token0, token1 common.Address, err error) {
	token0, token1, err = SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, common.Address{}, common.Address{}, fmt.Errorf("create pair: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{token0: token0, token1: token1}
	if existing, ok := r.pairs[key]; ok {
		return common.Address{}, common.Address{}, common.Address{}, fmt.Errorf("create pair: pair exists at %s", existing.Hex())
	}
	pair = PairAddress(token0, token1)
	r.pairs[key] = pair
	r.all = append(r.all, pair)
	return pair, token0, token1, nil
}

// GetPair returns the pair for the two tokens in either order, or the zero address.
func (r *MemoryRegistry) GetPair(tokenA, tokenB common.Address) common.Address {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pairs[pairKey{token0: token0, token1: token1}]
}

// AllPairs lists pairs in creation order.
func (r *MemoryRegistry) AllPairs() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, len(r.all))
	copy(out, r.all)
	return out
}

// FeeTo returns the protocol fee recipient; the zero address disables the protocol fee.
func (r *MemoryRegistry) FeeTo() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeTo
}

func (r *MemoryRegistry) SetFeeTo(feeTo common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeTo = feeTo
}

// PairAdmin returns the account allowed to toggle the pair's ILP fee.
func (r *MemoryRegistry) PairAdmin(pair common.Address) common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admins[pair]
}

func (r *MemoryRegistry) SetPairAdmin(pair, admin common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admins[pair] = admin
}

// PairManager returns the account allowed to set the pair's ILP fee rates.
func (r *MemoryRegistry) PairManager(pair common.Address) common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.managers[pair]
}

func (r *MemoryRegistry) SetPairManager(pair, manager common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[pair] = manager
}
