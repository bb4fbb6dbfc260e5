package chain

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// SignedCall is a call envelope signed by the ed25519 key behind From.
type SignedCall struct {
	From      types.Address
	To        types.Address
	Nonce     uint64
	Input     []byte
	Signature []byte
}

// SigningBytes is the message covered by the signature: from | to | nonce | input.
func (sc SignedCall) SigningBytes() []byte {
	msg := make([]byte, 0, len(sc.From)+len(sc.To)+8+len(sc.Input))
	msg = append(msg, sc.From[:]...)
	msg = append(msg, sc.To[:]...)
	msg = binary.BigEndian.AppendUint64(msg, sc.Nonce)
	return append(msg, sc.Input...)
}

// Submit verifies a signed call and executes it. The sender's nonce is consumed whether or not the call
// itself succeeds.
func (c *Chain) Submit(ctx context.Context, call SignedCall) (*Receipt, error) {
	if !crypto.VerifyBytes(call.From[:], call.SigningBytes(), call.Signature) {
		return nil, fmt.Errorf("%w: from %s", ErrBadSignature, call.From)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if expected := c.nonces[call.From]; call.Nonce != expected {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrBadNonce, call.Nonce, expected)
	}
	c.nonces[call.From]++
	return c.execute(ctx, call.From, call.To, call.Input, true)
}
