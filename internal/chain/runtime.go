package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Contract is anything deployed into the runtime.
type Contract interface {
	Address() common.Address
}

// Runtime executes contract calls one at a time. Each top-level call either commits
// every mutation it made or none of them.
type Runtime struct {
	mu        sync.Mutex
	journal   Journal
	clock     Clock
	logger    *zap.Logger
	contracts map[common.Address]Contract
	logs      []types.Log

	chainID     uint64
	blockNumber uint64
	blockTimes  map[uint64]uint64
	nonces      map[common.Address]uint64
}

// DefaultChainID is reported by runtimes that were not given one.
const DefaultChainID = 31337

// NewRuntime builds a runtime driven by the given block clock.
func NewRuntime(clock Clock, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Runtime{
		clock:      clock,
		logger:     logger,
		contracts:  make(map[common.Address]Contract),
		chainID:    DefaultChainID,
		blockTimes: make(map[uint64]uint64),
		nonces:     make(map[common.Address]uint64),
	}
}

// NextAddress derives a fresh contract address for deployer, CREATE style.
func (r *Runtime) NextAddress(deployer common.Address) common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	nonce := r.nonces[deployer]
	r.nonces[deployer] = nonce + 1
	return crypto.CreateAddress(deployer, nonce)
}

// Deploy registers code at the contract's address.
func (r *Runtime) Deploy(c Contract) error {
	if c == nil {
		return fmt.Errorf("contract is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	addr := c.Address()
	if addr == (common.Address{}) {
		return fmt.Errorf("deploy: zero address")
	}
	if _, ok := r.contracts[addr]; ok {
		return fmt.Errorf("deploy: code already present at %s", addr.Hex())
	}
	r.contracts[addr] = c
	r.logger.Debug("contract deployed", zap.String("address", addr.Hex()), zap.String("type", fmt.Sprintf("%T", c)))
	return nil
}

// Execute runs fn as a single transaction sent by sender. Any error returned by fn, or a
// panic, rolls back every journaled mutation and every log emitted during the call.
func (r *Runtime) Execute(ctx context.Context, sender common.Address, fn func(*Call) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now, err := r.clock.Now(ctx)
	if err != nil {
		return fmt.Errorf("block time: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.blockNumber++
	r.blockTimes[r.blockNumber] = now
	call := r.newCall(sender, now)
	snap := r.journal.Snapshot()

	defer func() {
		if p := recover(); p != nil {
			r.journal.RevertToSnapshot(snap)
			panic(p)
		}
		if err != nil {
			r.journal.RevertToSnapshot(snap)
			r.logger.Debug("call reverted",
				zap.String("sender", sender.Hex()),
				zap.Uint64("block", call.BlockNumber),
				zap.Error(err),
			)
			return
		}
		r.journal.Commit()
	}()

	return fn(call)
}

// View runs fn against current state without opening a transaction. Mutations made by
// fn are always rolled back.
func (r *Runtime) View(ctx context.Context, fn func(*Call) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	now, err := r.clock.Now(ctx)
	if err != nil {
		return fmt.Errorf("block time: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	call := r.newCall(common.Address{}, now)
	snap := r.journal.Snapshot()
	defer r.journal.RevertToSnapshot(snap)
	return fn(call)
}

// Logs returns a copy of every committed log.
func (r *Runtime) Logs() []types.Log {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Log, len(r.logs))
	copy(out, r.logs)
	return out
}

// FilterLogs returns committed logs emitted in blocks [from, to]. Empty address or topic0
// filters match everything.
func (r *Runtime) FilterLogs(from, to uint64, addresses []common.Address, topic0 []common.Hash) []types.Log {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Log
	for _, log := range r.logs {
		if log.BlockNumber < from || log.BlockNumber > to {
			continue
		}
		if len(addresses) > 0 && !containsAddress(addresses, log.Address) {
			continue
		}
		if len(topic0) > 0 && (len(log.Topics) == 0 || !containsHash(topic0, log.Topics[0])) {
			continue
		}
		out = append(out, log)
	}
	return out
}

// BlockTimestamp returns the timestamp a block was executed at.
func (r *Runtime) BlockTimestamp(number uint64) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.blockTimes[number]
	return ts, ok
}

// ChainID identifies the runtime in exported records.
func (r *Runtime) ChainID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chainID
}

func (r *Runtime) SetChainID(id uint64) {
	r.mu.Lock()
	r.chainID = id
	r.mu.Unlock()
}

// BlockNumber returns the number of the last executed block.
func (r *Runtime) BlockNumber() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blockNumber
}

func (r *Runtime) newCall(sender common.Address, now uint64) *Call {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], r.blockNumber)
	binary.BigEndian.PutUint64(buf[8:], now)
	blockHash := crypto.Keccak256Hash(buf[:8])
	return &Call{
		rt:          r,
		BlockHash:   blockHash,
		Sender:      sender,
		Origin:      sender,
		Time:        now,
		BlockNumber: r.blockNumber,
		TxHash:      crypto.Keccak256Hash(buf[:], sender.Bytes()),
	}
}

func (r *Runtime) contract(addr common.Address) (Contract, bool) {
	c, ok := r.contracts[addr]
	return c, ok
}

func (r *Runtime) emit(log types.Log) {
	log.Index = uint(len(r.logs))
	r.logs = append(r.logs, log)
	n := len(r.logs) - 1
	r.journal.Append(func() { r.logs = r.logs[:n] })
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, h common.Hash) bool {
	for _, x := range list {
		if x == h {
			return true
		}
	}
	return false
}
