package chain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
)

var errCounterFail = errors.New("counter: asked to fail")

const (
	opIncr byte = iota + 1
	opIncrThenFail
	opCallSwallow
	opCallPropagate
	opRecurse
)

// counter is a tiny stateful contract driven by single byte opcodes.
type counter struct {
	value uint64
}

func (c *counter) Kind() string { return "test.counter" }

func (c *counter) Invoke(ctx context.Context, env *Env, msg Message) ([]byte, error) {
	if len(msg.Input) == 0 {
		return binary.BigEndian.AppendUint64(nil, c.value), nil
	}
	switch msg.Input[0] {
	case opIncr:
		c.value++
		env.Emit(msg.To, "Incremented", map[string]string{"by": msg.From.String()})
	case opIncrThenFail:
		c.value++
		return nil, errCounterFail
	case opCallSwallow, opCallPropagate:
		c.value++
		var target types.Address
		copy(target[:], msg.Input[1:])
		_, err := env.Call(ctx, msg.To, target, []byte{opIncrThenFail})
		if msg.Input[0] == opCallPropagate {
			return nil, err
		}
	case opRecurse:
		_, err := env.Call(ctx, msg.To, msg.To, msg.Input)
		return nil, err
	}
	return nil, nil
}

func (c *counter) Snapshot() any                 { return c.value }
func (c *counter) Restore(snapshot any)           { c.value = snapshot.(uint64) }
func (c *counter) MarshalState() ([]byte, error)  { return EncodeGob(c.value) }
func (c *counter) UnmarshalState(data []byte) error { return DecodeGob(data, &c.value) }

func init() {
	RegisterKind("test.counter", func() Contract { return &counter{} })
}

func deployCounters(t *testing.T, c *Chain, n int) ([]types.Address, []*counter) {
	t.Helper()
	var (
		addrs    []types.Address
		counters []*counter
	)
	for i := 0; i < n; i++ {
		ctr := &counter{}
		addr, err := c.Deploy(context.Background(), ctr)
		require.NoError(t, err)
		addrs = append(addrs, addr)
		counters = append(counters, ctr)
	}
	return addrs, counters
}

func TestExecuteCommitsAndMines(t *testing.T) {
	c := New(misc.DiscardLogger())
	addrs, ctrs := deployCounters(t, c, 1)
	user := crypto.GenerateAccount().Address
	start := c.Height()

	receipt, err := c.Execute(context.Background(), user, addrs[0], []byte{opIncr})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ctrs[0].value)
	assert.Equal(t, start+1, receipt.Block)
	assert.Equal(t, start+1, c.Height())
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, "Incremented", receipt.Events[0].Name)
	assert.Equal(t, user.String(), receipt.Events[0].Fields["by"])
}

func TestExecuteRollsBackOnFailure(t *testing.T) {
	c := New(misc.DiscardLogger())
	addrs, ctrs := deployCounters(t, c, 2)
	user := crypto.GenerateAccount().Address
	start := c.Height()

	_, err := c.Execute(context.Background(), user, addrs[0], []byte{opIncrThenFail})
	assert.ErrorIs(t, err, errCounterFail)
	assert.Zero(t, ctrs[0].value)
	assert.Equal(t, start, c.Height(), "failed calls don't mine")

	// outer increments then nested call fails and is propagated
	input := append([]byte{opCallPropagate}, addrs[1][:]...)
	_, err = c.Execute(context.Background(), user, addrs[0], input)
	assert.ErrorIs(t, err, errCounterFail)
	assert.Zero(t, ctrs[0].value)
	assert.Zero(t, ctrs[1].value)
}

func TestSwallowedNestedFailureStillFails(t *testing.T) {
	c := New(misc.DiscardLogger())
	addrs, ctrs := deployCounters(t, c, 2)
	user := crypto.GenerateAccount().Address

	input := append([]byte{opCallSwallow}, addrs[1][:]...)
	_, err := c.Execute(context.Background(), user, addrs[0], input)
	assert.ErrorIs(t, err, errCounterFail)
	assert.Zero(t, ctrs[0].value)
}

func TestCallDepthLimit(t *testing.T) {
	c := New(misc.DiscardLogger())
	addrs, _ := deployCounters(t, c, 1)
	_, err := c.Execute(context.Background(), crypto.GenerateAccount().Address, addrs[0], []byte{opRecurse})
	assert.ErrorIs(t, err, ErrCallDepth)
}

func TestCallToEmptyAddress(t *testing.T) {
	c := New(misc.DiscardLogger())
	_, err := c.Execute(context.Background(), crypto.GenerateAccount().Address, crypto.GenerateAccount().Address, nil)
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestViewDiscardsEffects(t *testing.T) {
	c := New(misc.DiscardLogger())
	addrs, ctrs := deployCounters(t, c, 1)
	height := c.Height()

	_, err := c.View(context.Background(), crypto.GenerateAccount().Address, addrs[0], []byte{opIncr})
	require.NoError(t, err)
	assert.Zero(t, ctrs[0].value)
	assert.Equal(t, height, c.Height())
}

func TestSubmitVerifiesSignatureAndNonce(t *testing.T) {
	c := New(misc.DiscardLogger())
	addrs, ctrs := deployCounters(t, c, 1)
	acct := crypto.GenerateAccount()

	call := SignedCall{From: acct.Address, To: addrs[0], Nonce: 0, Input: []byte{opIncr}}
	sig, err := crypto.SignBytes(acct.PrivateKey, call.SigningBytes())
	require.NoError(t, err)
	call.Signature = sig

	_, err = c.Submit(context.Background(), call)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ctrs[0].value)
	assert.Equal(t, uint64(1), c.Nonce(acct.Address))

	// replay
	_, err = c.Submit(context.Background(), call)
	assert.ErrorIs(t, err, ErrBadNonce)

	// tampered input
	call.Nonce = 1
	_, err = c.Submit(context.Background(), call)
	assert.ErrorIs(t, err, ErrBadSignature)

	// a reverted call still consumes the nonce
	failing := SignedCall{From: acct.Address, To: addrs[0], Nonce: 1, Input: []byte{opIncrThenFail}}
	failing.Signature, err = crypto.SignBytes(acct.PrivateKey, failing.SigningBytes())
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), failing)
	assert.ErrorIs(t, err, errCounterFail)
	assert.Equal(t, uint64(2), c.Nonce(acct.Address))
}

func TestBoltStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chain.db")
	store, err := OpenBoltStore(dbPath, time.Second)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(misc.DiscardLogger())
	assert.ErrorIs(t, err, ErrEmptyStore)

	c := New(misc.DiscardLogger())
	addrs, _ := deployCounters(t, c, 2)
	user := crypto.GenerateAccount().Address
	for i := 0; i < 3; i++ {
		_, err = c.Execute(context.Background(), user, addrs[1], []byte{opIncr})
		require.NoError(t, err)
	}
	c.Mine(10)
	require.NoError(t, store.Save(c))

	loaded, err := store.Load(misc.DiscardLogger())
	require.NoError(t, err)
	assert.Equal(t, c.Height(), loaded.Height())
	assert.Equal(t, c.Accounts(), loaded.Accounts())

	out, err := loaded.View(context.Background(), user, addrs[1], nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), binary.BigEndian.Uint64(out))

	// new deployments continue from the persisted app id
	next, err := loaded.Deploy(context.Background(), &counter{})
	require.NoError(t, err)
	assert.NotContains(t, addrs, next)
}

func TestRevertReason(t *testing.T) {
	assert.Equal(t, "", RevertReason(nil))
	assert.Equal(t, ErrNoCode.Error(), RevertReason(fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrNoCode))))
}

func TestRevertReasonFollowsFirstOfMultiWrap(t *testing.T) {
	err := fmt.Errorf("%w: app 1234: %w", ErrBadNonce, errCounterFail)
	assert.Equal(t, ErrBadNonce.Error(), RevertReason(err))
}
