package method

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// Selector identifies one callable operation - the first 4 bytes of the hash of its signature.
type Selector [4]byte

func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// ParseSelector parses the hex form (w/ or w/out 0x prefix) of a selector.
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(raw) != len(sel) {
		return sel, fmt.Errorf("%w: bad selector %q", ErrInvalidPayload, s)
	}
	copy(sel[:], raw)
	return sel, nil
}

// SelectorFromBytes converts a decoded byte[4] value.
func SelectorFromBytes(b []byte) (Selector, error) {
	var sel Selector
	if len(b) != len(sel) {
		return sel, fmt.Errorf("%w: selector must be %d bytes, got %d", ErrInvalidPayload, len(sel), len(b))
	}
	copy(sel[:], b)
	return sel, nil
}

// SplitInput separates call input into its selector and the argument payload that follows.
func SplitInput(input []byte) (Selector, []byte, error) {
	var sel Selector
	if len(input) < len(sel) {
		return sel, nil, fmt.Errorf("%w: input of %d bytes has no selector", ErrInvalidPayload, len(input))
	}
	copy(sel[:], input)
	return sel, input[len(sel):], nil
}

// InterfaceID is the XOR of the selectors of every method making up an interface (ERC-165 style).
func InterfaceID(methods ...Method) Selector {
	var id Selector
	for _, m := range methods {
		sel := m.Selector()
		for i := range id {
			id[i] ^= sel[i]
		}
	}
	return id
}

// SortSelectors orders selectors bytewise, for stable output.
func SortSelectors(sels []Selector) {
	slices.SortFunc(sels, func(a, b Selector) int { return bytes.Compare(a[:], b[:]) })
}
