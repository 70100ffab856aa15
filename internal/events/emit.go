package events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ilpswap/internal/chain"
)

// Encode builds the topics and data of a log for the named event. indexed holds the
// indexed argument topics in declaration order; args holds the non-indexed values.
func Encode(name string, indexed []common.Hash, args ...interface{}) ([]common.Hash, []byte, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, nil, err
	}
	event, ok := parsed.Events[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown event: %s", name)
	}
	if want := len(indexedArguments(event.Inputs)); len(indexed) != want {
		return nil, nil, fmt.Errorf("%s: expected %d indexed topics, got %d", name, want, len(indexed))
	}
	data, err := event.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		return nil, nil, fmt.Errorf("pack %s: %w", name, err)
	}
	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, event.ID)
	topics = append(topics, indexed...)
	return topics, data, nil
}

// Emit encodes the event and appends it to the call's logs.
func Emit(call *chain.Call, emitter common.Address, name string, indexed []common.Hash, args ...interface{}) error {
	topics, data, err := Encode(name, indexed, args...)
	if err != nil {
		return err
	}
	call.Emit(emitter, topics, data)
	return nil
}

// AddressTopic left-pads an address into an indexed topic.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// Big converts an engine amount for ABI packing.
func Big(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

// EmitTransfer emits an ERC20 Transfer.
func EmitTransfer(call *chain.Call, emitter, from, to common.Address, value *uint256.Int) error {
	return Emit(call, emitter, Transfer, []common.Hash{AddressTopic(from), AddressTopic(to)}, Big(value))
}

// EmitApproval emits an ERC20 Approval.
func EmitApproval(call *chain.Call, emitter, owner, spender common.Address, value *uint256.Int) error {
	return Emit(call, emitter, Approval, []common.Hash{AddressTopic(owner), AddressTopic(spender)}, Big(value))
}
