package method

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/abi"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
)

const voidReturn = "void"

// Method is a parsed ARC-4 method signature, ie: "deposit(uint64,uint256)void", along w/ the abi types needed
// to encode/decode its argument payload and return value.
type Method struct {
	abi.Method

	selector Selector
	argTypes []string
	args     *abi.Type
	ret      *abi.Type
}

func Parse(signature string) (Method, error) {
	m, err := abi.MethodFromSignature(signature)
	if err != nil {
		return Method{}, fmt.Errorf("%w: %s: %v", ErrInvalidSignature, signature, err)
	}
	parsed := Method{Method: m}
	copy(parsed.selector[:], m.GetSelector())

	for _, arg := range m.Args {
		parsed.argTypes = append(parsed.argTypes, arg.Type)
	}
	if len(parsed.argTypes) > 0 {
		tupleType, err := abi.TypeOf("(" + strings.Join(parsed.argTypes, ",") + ")")
		if err != nil {
			return Method{}, fmt.Errorf("%w: %s: %v", ErrInvalidSignature, signature, err)
		}
		parsed.args = &tupleType
	}
	if m.Returns.Type != voidReturn {
		retType, err := abi.TypeOf(m.Returns.Type)
		if err != nil {
			return Method{}, fmt.Errorf("%w: %s: %v", ErrInvalidSignature, signature, err)
		}
		parsed.ret = &retType
	}
	return parsed, nil
}

// MustParse is Parse for package level method tables - panics on an invalid signature.
func MustParse(signature string) Method {
	m, err := Parse(signature)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Method) Selector() Selector { return m.selector }

func (m Method) Signature() string { return m.GetSignature() }

func (m Method) String() string { return m.GetSignature() }

// Encode builds full call input - selector followed by the encoded argument tuple.
func (m Method) Encode(args ...any) ([]byte, error) {
	if len(args) != len(m.argTypes) {
		return nil, fmt.Errorf("%w: %s takes %d args, got %d", ErrInvalidPayload, m.Name, len(m.argTypes), len(args))
	}
	input := append([]byte{}, m.selector[:]...)
	if m.args == nil {
		return input, nil
	}
	values := make([]any, len(args))
	for i, arg := range args {
		values[i] = toABI(arg)
	}
	payload, err := m.args.Encode(values)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s args: %v", ErrInvalidPayload, m.Name, err)
	}
	return append(input, payload...), nil
}

// DecodeArgs decodes an argument payload (the input past the selector) into normalized go values.
func (m Method) DecodeArgs(payload []byte) (Args, error) {
	if m.args == nil {
		if len(payload) != 0 {
			return nil, fmt.Errorf("%w: %s takes no args but payload has %d bytes", ErrInvalidPayload, m.Name, len(payload))
		}
		return Args{}, nil
	}
	decoded, err := m.args.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s args: %v", ErrInvalidPayload, m.Name, err)
	}
	values, ok := decoded.([]any)
	if !ok || len(values) != len(m.argTypes) {
		return nil, fmt.Errorf("%w: %s args decoded to %T", ErrInvalidPayload, m.Name, decoded)
	}
	args := make(Args, len(values))
	for i, v := range values {
		if args[i], err = fromABI(m.argTypes[i], v); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// EncodeReturn encodes a handler's return value. Void methods return no bytes.
func (m Method) EncodeReturn(value any) ([]byte, error) {
	if m.ret == nil {
		return nil, nil
	}
	out, err := m.ret.Encode(toABI(value))
	if err != nil {
		return nil, fmt.Errorf("%w: encoding %s return: %v", ErrInvalidPayload, m.Name, err)
	}
	return out, nil
}

// DecodeReturn decodes return bytes into normalized go values (nil for void methods).
func (m Method) DecodeReturn(out []byte) (any, error) {
	if m.ret == nil {
		return nil, nil
	}
	decoded, err := m.ret.Decode(out)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s return: %v", ErrInvalidPayload, m.Name, err)
	}
	return fromABI(m.Returns.Type, decoded)
}

// toABI converts our domain types into the forms the abi encoder accepts.
func toABI(value any) any {
	switch v := value.(type) {
	case types.Address:
		return v[:]
	case *uint256.Int:
		if v == nil {
			return new(big.Int)
		}
		return v.ToBig()
	case uint256.Int:
		return v.ToBig()
	case Selector:
		return v[:]
	case []Selector:
		out := make([]any, len(v))
		for i, sel := range v {
			sel := sel
			out[i] = sel[:]
		}
		return out
	case []types.Address:
		out := make([]any, len(v))
		for i, addr := range v {
			addr := addr
			out[i] = addr[:]
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = toABI(elem)
		}
		return out
	default:
		return value
	}
}

// fromABI normalizes decoded abi values based on the abi type string: addresses become types.Address, uints
// wider than 64 bits become *uint256.Int, byte arrays become []byte and tuples/arrays become []any.
func fromABI(abiType string, value any) (any, error) {
	switch {
	case abiType == "address":
		raw, err := byteSlice(value)
		if err != nil || len(raw) != len(types.Address{}) {
			return nil, fmt.Errorf("%w: bad address value %T", ErrInvalidPayload, value)
		}
		var addr types.Address
		copy(addr[:], raw)
		return addr, nil
	case strings.HasSuffix(abiType, "]"):
		elemType := abiType[:strings.LastIndexByte(abiType, '[')]
		if elemType == "byte" {
			return byteSlice(value)
		}
		elems, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected array for %s, got %T", ErrInvalidPayload, abiType, value)
		}
		out := make([]any, len(elems))
		for i, elem := range elems {
			var err error
			if out[i], err = fromABI(elemType, elem); err != nil {
				return nil, err
			}
		}
		return out, nil
	case strings.HasPrefix(abiType, "("):
		childTypes := splitTuple(abiType)
		elems, ok := value.([]any)
		if !ok || len(elems) != len(childTypes) {
			return nil, fmt.Errorf("%w: expected %d-tuple for %s, got %T", ErrInvalidPayload, len(childTypes), abiType, value)
		}
		out := make([]any, len(elems))
		for i, elem := range elems {
			var err error
			if out[i], err = fromABI(childTypes[i], elem); err != nil {
				return nil, err
			}
		}
		return out, nil
	case strings.HasPrefix(abiType, "uint"):
		bits, err := strconv.Atoi(strings.TrimPrefix(abiType, "uint"))
		if err != nil || bits <= 64 {
			return value, nil
		}
		bigVal, ok := value.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("%w: expected big int for %s, got %T", ErrInvalidPayload, abiType, value)
		}
		val, overflow := uint256.FromBig(bigVal)
		if overflow {
			return nil, fmt.Errorf("%w: %s value overflows 256 bits", ErrInvalidPayload, abiType)
		}
		return val, nil
	default:
		return value, nil
	}
}

func byteSlice(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case []any:
		out := make([]byte, len(v))
		for i, elem := range v {
			b, ok := elem.(byte)
			if !ok {
				return nil, fmt.Errorf("%w: expected byte element, got %T", ErrInvalidPayload, elem)
			}
			out[i] = b
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: expected bytes, got %T", ErrInvalidPayload, value)
}

// splitTuple splits "(a,(b,c)[],d)" into its top-level child types.
func splitTuple(tupleType string) []string {
	inner := tupleType[1:strings.LastIndexByte(tupleType, ')')]
	if inner == "" {
		return nil
	}
	var (
		children []string
		depth    int
		start    int
	)
	for i, ch := range inner {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				children = append(children, inner[start:i])
				start = i + 1
			}
		}
	}
	return append(children, inner[start:])
}
