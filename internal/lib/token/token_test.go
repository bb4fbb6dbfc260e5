package token

import (
	"context"
	"errors"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
)

var errHookRejected = errors.New("hook rejected transfer")

// recordingHook remembers every transfer notification, optionally rejecting them.
type recordingHook struct {
	reject bool
	seen   []string
}

func (h *recordingHook) Kind() string { return "test.hook" }

func (h *recordingHook) Invoke(_ context.Context, _ *chain.Env, msg chain.Message) ([]byte, error) {
	sel, payload, err := method.SplitInput(msg.Input)
	if err != nil {
		return nil, err
	}
	if sel != MethodOnTokenTransfer.Selector() {
		return nil, errors.New("unexpected call")
	}
	if h.reject {
		return nil, errHookRejected
	}
	args, err := MethodOnTokenTransfer.DecodeArgs(payload)
	if err != nil {
		return nil, err
	}
	amount, err := args.Uint256(2)
	if err != nil {
		return nil, err
	}
	h.seen = append(h.seen, amount.Dec())
	return nil, nil
}

func eth(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

type fixture struct {
	chain *chain.Chain
	owner *Client
	alice *Client
	bob   *Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := chain.New(misc.DiscardLogger())
	owner := c.Session(crypto.GenerateAccount().Address)
	addr, err := c.Deploy(context.Background(), New("Want Token", "WANT", 18, owner.From()))
	require.NoError(t, err)
	return &fixture{
		chain: c,
		owner: NewClient(owner, addr),
		alice: NewClient(c.Session(crypto.GenerateAccount().Address), addr),
		bob:   NewClient(c.Session(crypto.GenerateAccount().Address), addr),
	}
}

func (f *fixture) balance(t *testing.T, addr types.Address) *uint256.Int {
	t.Helper()
	balance, err := f.owner.BalanceOf(context.Background(), addr)
	require.NoError(t, err)
	return balance
}

func TestMetadata(t *testing.T) {
	f := newFixture(t)
	symbol, err := f.alice.Symbol(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "WANT", symbol)

	ret, err := MethodDecimals.Query(context.Background(), f.alice.backend, f.alice.Address())
	require.NoError(t, err)
	decimals, err := method.AsUint64(ret)
	require.NoError(t, err)
	assert.Equal(t, uint64(18), decimals)
}

func TestMint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.alice.backend.From()

	_, err := f.alice.Mint(ctx, alice, eth(1))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.owner.Mint(ctx, types.Address{}, eth(1))
	assert.ErrorIs(t, err, ErrZeroAddress)

	receipt, err := f.owner.Mint(ctx, alice, eth(100))
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, "Transfer", receipt.Events[0].Name)

	assert.Equal(t, eth(100), f.balance(t, alice))
	supply, err := f.owner.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, eth(100), supply)

	max := new(uint256.Int).SetAllOne()
	_, err = f.owner.Mint(ctx, alice, max)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.alice.backend.From(), f.bob.backend.From()
	_, err := f.owner.Mint(ctx, alice, eth(10))
	require.NoError(t, err)

	_, err = f.alice.Transfer(ctx, bob, eth(4))
	require.NoError(t, err)
	assert.Equal(t, eth(6), f.balance(t, alice))
	assert.Equal(t, eth(4), f.balance(t, bob))

	_, err = f.bob.Transfer(ctx, alice, eth(5))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, eth(4), f.balance(t, bob))

	_, err = f.bob.Transfer(ctx, types.Address{}, eth(1))
	assert.ErrorIs(t, err, ErrZeroAddress)
}

func TestTransferFrom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.alice.backend.From(), f.bob.backend.From()
	_, err := f.owner.Mint(ctx, alice, eth(10))
	require.NoError(t, err)

	_, err = MethodTransferFrom.Transact(ctx, f.bob.backend, f.bob.Address(), alice, bob, eth(1))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	_, err = f.alice.Approve(ctx, bob, eth(3))
	require.NoError(t, err)
	allowed, err := f.alice.Allowance(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, eth(3), allowed)

	_, err = MethodTransferFrom.Transact(ctx, f.bob.backend, f.bob.Address(), alice, bob, eth(2))
	require.NoError(t, err)
	assert.Equal(t, eth(8), f.balance(t, alice))
	assert.Equal(t, eth(2), f.balance(t, bob))

	allowed, err = f.alice.Allowance(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, eth(1), allowed)

	_, err = MethodTransferFrom.Transact(ctx, f.bob.backend, f.bob.Address(), alice, bob, eth(2))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
}

func TestTransferHook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.alice.backend.From(), f.bob.backend.From()
	hook := &recordingHook{}
	hookAddr, err := f.chain.Deploy(ctx, hook)
	require.NoError(t, err)

	_, err = f.alice.SetTransferHook(ctx, hookAddr)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.owner.SetTransferHook(ctx, hookAddr)
	require.NoError(t, err)

	_, err = f.owner.Mint(ctx, alice, eth(2))
	require.NoError(t, err)
	_, err = f.alice.Transfer(ctx, bob, eth(1))
	require.NoError(t, err)
	assert.Equal(t, []string{eth(2).Dec(), eth(1).Dec()}, hook.seen)

	// a failing hook reverts the transfer
	hook.reject = true
	_, err = f.alice.Transfer(ctx, bob, eth(1))
	assert.ErrorIs(t, err, errHookRejected)
	assert.Equal(t, eth(1), f.balance(t, alice))
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.alice.backend.From()

	_, err := f.alice.TransferOwnership(ctx, alice)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.owner.TransferOwnership(ctx, alice)
	require.NoError(t, err)

	_, err = f.alice.Mint(ctx, alice, eth(1))
	require.NoError(t, err)
	_, err = f.owner.Mint(ctx, alice, eth(1))
	assert.ErrorIs(t, err, ErrUnauthorized)
}
