package chain

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Session makes unsigned calls on a chain as a fixed sender. Used by in-process callers (deployment, tests)
// that already own the chain.
type Session struct {
	chain *Chain
	from  types.Address
}

func (c *Chain) Session(from types.Address) *Session {
	return &Session{chain: c, from: from}
}

func (s *Session) From() types.Address { return s.from }

func (s *Session) Transact(ctx context.Context, to types.Address, input []byte) (*Receipt, error) {
	return s.chain.Execute(ctx, s.from, to, input)
}

func (s *Session) Call(ctx context.Context, to types.Address, input []byte) ([]byte, error) {
	return s.chain.View(ctx, s.from, to, input)
}
