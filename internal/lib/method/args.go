package method

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
)

// Args are decoded, normalized method arguments.
type Args []any

func (a Args) at(i int) (any, error) {
	if i < 0 || i >= len(a) {
		return nil, fmt.Errorf("%w: missing argument %d", ErrInvalidPayload, i)
	}
	return a[i], nil
}

func (a Args) Address(i int) (types.Address, error) {
	v, err := a.at(i)
	if err != nil {
		return types.Address{}, err
	}
	return AsAddress(v)
}

func (a Args) Uint256(i int) (*uint256.Int, error) {
	v, err := a.at(i)
	if err != nil {
		return nil, err
	}
	return AsUint256(v)
}

func (a Args) Uint64(i int) (uint64, error) {
	v, err := a.at(i)
	if err != nil {
		return 0, err
	}
	return AsUint64(v)
}

func (a Args) Bool(i int) (bool, error) {
	v, err := a.at(i)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: argument %d is %T, not bool", ErrInvalidPayload, i, v)
	}
	return b, nil
}

func (a Args) Bytes(i int) ([]byte, error) {
	v, err := a.at(i)
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: argument %d is %T, not bytes", ErrInvalidPayload, i, v)
	}
	return b, nil
}

func (a Args) List(i int) ([]any, error) {
	v, err := a.at(i)
	if err != nil {
		return nil, err
	}
	return AsList(v)
}

func AsAddress(v any) (types.Address, error) {
	addr, ok := v.(types.Address)
	if !ok {
		return types.Address{}, fmt.Errorf("%w: %T is not an address", ErrInvalidPayload, v)
	}
	return addr, nil
}

func AsUint256(v any) (*uint256.Int, error) {
	switch val := v.(type) {
	case *uint256.Int:
		return val, nil
	case uint64:
		return uint256.NewInt(val), nil
	}
	return nil, fmt.Errorf("%w: %T is not a uint256", ErrInvalidPayload, v)
}

func AsUint64(v any) (uint64, error) {
	switch val := v.(type) {
	case uint64:
		return val, nil
	case uint32:
		return uint64(val), nil
	case uint16:
		return uint64(val), nil
	case uint8:
		return uint64(val), nil
	}
	return 0, fmt.Errorf("%w: %T is not a uint64", ErrInvalidPayload, v)
}

func AsList(v any) ([]any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a list", ErrInvalidPayload, v)
	}
	return list, nil
}

func AsSelectors(v any) ([]Selector, error) {
	list, err := AsList(v)
	if err != nil {
		return nil, err
	}
	sels := make([]Selector, 0, len(list))
	for _, elem := range list {
		raw, ok := elem.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: selector element is %T", ErrInvalidPayload, elem)
		}
		sel, err := SelectorFromBytes(raw)
		if err != nil {
			return nil, err
		}
		sels = append(sels, sel)
	}
	return sels, nil
}

func AsAddresses(v any) ([]types.Address, error) {
	list, err := AsList(v)
	if err != nil {
		return nil, err
	}
	addrs := make([]types.Address, 0, len(list))
	for _, elem := range list {
		addr, err := AsAddress(elem)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
