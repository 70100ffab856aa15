package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"ilpswap/internal/model"
	"ilpswap/internal/storage"
)

// PairMetaCache stores pair metadata keyed by pair address.
type PairMetaCache struct {
	mu    sync.RWMutex
	pairs map[common.Address]model.PairMeta
}

func NewPairMetaCache() *PairMetaCache {
	return &PairMetaCache{pairs: make(map[common.Address]model.PairMeta)}
}

func (c *PairMetaCache) Get(address common.Address) (model.PairMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.pairs[address]
	return meta, ok
}

func (c *PairMetaCache) Set(address common.Address, meta model.PairMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs[address] = meta
}

// Len returns the number of cached pairs.
func (c *PairMetaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pairs)
}

type pairMetaLine struct {
	Address string `json:"address"`
	model.PairMeta
}

// WriteJSONL dumps the cache, one pair per line, ordered by address.
func (c *PairMetaCache) WriteJSONL(path string) error {
	c.mu.RLock()
	addrs := make([]common.Address, 0, len(c.pairs))
	for addr := range c.pairs {
		addrs = append(addrs, addr)
	}
	c.mu.RUnlock()
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Cmp(addrs[j]) < 0 })

	w, err := storage.NewJSONLWriter(path, false)
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		meta, _ := c.Get(addr)
		if err := w.Write(pairMetaLine{Address: addr.Hex(), PairMeta: meta}); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// LoadPairMeta reads a file written by WriteJSONL.
func LoadPairMeta(path string) (*PairMetaCache, error) {
	cache := NewPairMetaCache()
	err := storage.ReadJSONL(path, func(line []byte) error {
		var entry pairMetaLine
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("parse pair meta: %w", err)
		}
		if !common.IsHexAddress(entry.Address) {
			return fmt.Errorf("parse pair meta: invalid address %q", entry.Address)
		}
		cache.Set(common.HexToAddress(entry.Address), entry.PairMeta)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cache, nil
}
