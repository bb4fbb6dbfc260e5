package signer

import (
	"context"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
)

// Backend sends calls from one account to a chain, signing every state changing call w/ the account's key.
type Backend struct {
	chain  *chain.Chain
	from   types.Address
	signer CallSigner

	// serializes nonce assignment
	mu sync.Mutex
}

func NewBackend(c *chain.Chain, from types.Address, signer CallSigner) *Backend {
	return &Backend{chain: c, from: from, signer: signer}
}

func (b *Backend) From() types.Address { return b.from }

// Transact signs input w/ the account's next nonce and submits it.
func (b *Backend) Transact(ctx context.Context, to types.Address, input []byte) (*chain.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	call, err := b.signer.SignCall(ctx, chain.SignedCall{
		From:  b.from,
		To:    to,
		Nonce: b.chain.Nonce(b.from),
		Input: input,
	})
	if err != nil {
		return nil, err
	}
	return b.chain.Submit(ctx, call)
}

// Call runs a read-only call. Reads aren't signed.
func (b *Backend) Call(ctx context.Context, to types.Address, input []byte) ([]byte, error) {
	return b.chain.View(ctx, b.from, to, input)
}
