package method

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
)

// Backend sends calls to contracts on behalf of one account.
type Backend interface {
	From() types.Address
	// Transact runs a state changing call.
	Transact(ctx context.Context, to types.Address, input []byte) (*chain.Receipt, error)
	// Call runs a read-only call, discarding any effects.
	Call(ctx context.Context, to types.Address, input []byte) ([]byte, error)
}

// Transact encodes args and sends a state changing call of m to the contract at to.
func (m Method) Transact(ctx context.Context, backend Backend, to types.Address, args ...any) (*chain.Receipt, error) {
	input, err := m.Encode(args...)
	if err != nil {
		return nil, err
	}
	return backend.Transact(ctx, to, input)
}

// Query makes a read-only call of m and returns its decoded return value.
func (m Method) Query(ctx context.Context, backend Backend, to types.Address, args ...any) (any, error) {
	input, err := m.Encode(args...)
	if err != nil {
		return nil, err
	}
	out, err := backend.Call(ctx, to, input)
	if err != nil {
		return nil, err
	}
	return m.DecodeReturn(out)
}
