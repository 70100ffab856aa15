package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Call is the execution frame a contract method runs in.
type Call struct {
	rt *Runtime

	// Sender is the immediate caller (msg.sender).
	Sender common.Address
	// Origin is the account that opened the transaction.
	Origin      common.Address
	Time        uint64
	BlockNumber uint64
	BlockHash   common.Hash
	TxHash      common.Hash
	depth       int
}

// As returns a nested frame in which self is the caller, used when a contract calls
// another contract.
func (c *Call) As(self common.Address) *Call {
	nested := *c
	nested.Sender = self
	nested.depth = c.depth + 1
	return &nested
}

// Depth returns the nesting level of the frame; top-level calls have depth 0.
func (c *Call) Depth() int {
	return c.depth
}

// Journal returns the undo log of the enclosing transaction.
func (c *Call) Journal() *Journal {
	return &c.rt.journal
}

// HasCode reports whether a contract is deployed at addr.
func (c *Call) HasCode(addr common.Address) bool {
	_, ok := c.rt.contract(addr)
	return ok
}

// Contract resolves the contract deployed at addr.
func (c *Call) Contract(addr common.Address) (Contract, bool) {
	return c.rt.contract(addr)
}

// Emit appends a log attributed to the emitting contract. Logs are discarded when the
// transaction reverts.
func (c *Call) Emit(emitter common.Address, topics []common.Hash, data []byte) {
	c.rt.emit(types.Log{
		Address:     emitter,
		Topics:      topics,
		Data:        data,
		BlockNumber: c.BlockNumber,
		BlockHash:   c.BlockHash,
		TxHash:      c.TxHash,
	})
}
