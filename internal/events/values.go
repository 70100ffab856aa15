package events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// reader pulls typed values out of an unpacked argument map, keeping the first error.
type reader struct {
	values map[string]interface{}
	err    error
}

func (r *reader) lookup(key string) (interface{}, bool) {
	v, ok := r.values[key]
	if !ok && r.err == nil {
		r.err = fmt.Errorf("missing argument %q", key)
	}
	return v, ok
}

func (r *reader) address(key string) string {
	v, ok := r.lookup(key)
	if !ok {
		return ""
	}
	addr, err := asAddress(v)
	if err != nil {
		r.fail(key, err)
		return ""
	}
	return addr.Hex()
}

func (r *reader) amount(key string) string {
	v, ok := r.lookup(key)
	if !ok {
		return ""
	}
	n, err := asBigInt(v)
	if err != nil {
		r.fail(key, err)
		return ""
	}
	return n.String()
}

func (r *reader) boolean(key string) bool {
	v, ok := r.lookup(key)
	if !ok {
		return false
	}
	b, isBool := v.(bool)
	if !isBool {
		r.fail(key, fmt.Errorf("unsupported bool type %T", v))
	}
	return b
}

func (r *reader) text(key string) string {
	v, ok := r.lookup(key)
	if !ok {
		return ""
	}
	s, isString := v.(string)
	if !isString {
		r.fail(key, fmt.Errorf("unsupported string type %T", v))
	}
	return s
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
