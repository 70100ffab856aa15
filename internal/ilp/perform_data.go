package ilp

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	errorsmod "cosmossdk.io/errors"
)

var performDataArgs = func() abi.Arguments {
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Name: "pair", Type: addressType}}
}()

// EncodePerformData ABI-encodes the pair address an upkeep acts on.
func EncodePerformData(pair common.Address) ([]byte, error) {
	return performDataArgs.Pack(pair)
}

// DecodePerformData extracts the pair address from upkeep perform data.
func DecodePerformData(data []byte) (common.Address, error) {
	values, err := performDataArgs.Unpack(data)
	if err != nil {
		return common.Address{}, errorsmod.Wrap(ErrInvalidPerformData, err.Error())
	}
	if len(values) != 1 {
		return common.Address{}, errorsmod.Wrapf(ErrInvalidPerformData, "unexpected values: %d", len(values))
	}
	pair, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, errorsmod.Wrapf(ErrInvalidPerformData, "unsupported address type %T", values[0])
	}
	if pair == (common.Address{}) {
		return common.Address{}, errorsmod.Wrap(ErrInvalidPerformData, "zero pair")
	}
	return pair, nil
}
