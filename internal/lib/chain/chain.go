package chain

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
)

const (
	// MaxCallDepth limits nesting of contract to contract calls.
	MaxCallDepth = 64

	// first application id handed out, so deployed addresses never collide w/ tiny test ids
	firstAppID = 1000
)

// Contract is deployed code reachable at an address.
type Contract interface {
	// Kind names the code so persisted accounts can be re-created via the kind catalog.
	Kind() string
	Invoke(ctx context.Context, env *Env, msg Message) ([]byte, error)
}

// Stateful is a contract w/ persistent storage. Snapshot must return a deep copy that Restore can later
// swap back in.
type Stateful interface {
	Contract
	Snapshot() any
	Restore(snapshot any)
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}

type Message struct {
	From  types.Address
	To    types.Address
	Input []byte
}

type Event struct {
	Address types.Address
	Name    string
	Fields  map[string]string
}

type Receipt struct {
	Block  uint64
	Return []byte
	Events []Event
}

// Chain hosts deployed contracts and runs calls against them. Every top-level call is serialized and is
// all-or-nothing: any failure, at any nesting depth, restores every contract's storage to what it was
// before the call started.
type Chain struct {
	logger *slog.Logger

	mu        sync.Mutex
	height    uint64
	nextAppID uint64
	accounts  map[types.Address]Contract
	nonces    map[types.Address]uint64
}

func New(logger *slog.Logger) *Chain {
	return &Chain{
		logger:    logger,
		nextAppID: firstAppID,
		accounts:  map[types.Address]Contract{},
		nonces:    map[types.Address]uint64{},
	}
}

// Deploy installs contract code at a fresh address (derived from the next application id) and mines a block.
func (c *Chain) Deploy(ctx context.Context, contract Contract) (types.Address, error) {
	if err := ctx.Err(); err != nil {
		return types.Address{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	appID := c.nextAppID
	c.nextAppID++
	addr := crypto.GetApplicationAddress(appID)
	c.accounts[addr] = contract
	c.height++
	promHeight.Set(float64(c.height))
	misc.Debugf(c.logger, "deployed %s at %s (app id:%d)", contract.Kind(), addr, appID)
	return addr, nil
}

// Execute runs a single top-level call from an external account, committing its effects and mining a block
// only if every part of it succeeded.
func (c *Chain) Execute(ctx context.Context, from, to types.Address, input []byte) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.execute(ctx, from, to, input, true)
}

// View runs a call and always discards its effects - for reads.
func (c *Chain) View(ctx context.Context, from, to types.Address, input []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, err := c.execute(ctx, from, to, input, false)
	if err != nil {
		return nil, err
	}
	return receipt.Return, nil
}

func (c *Chain) execute(ctx context.Context, from, to types.Address, input []byte, commit bool) (*Receipt, error) {
	snapshot := c.snapshot()
	env := &Env{chain: c, origin: from, block: c.height}
	if commit {
		// calls execute in the block being built
		env.block = c.height + 1
	}
	out, err := env.call(ctx, from, to, input)
	if err == nil && env.failure != nil {
		// a nested call failed but the caller swallowed the error - the call as a whole still fails
		err = env.failure
	}
	if err != nil {
		c.restore(snapshot)
		if commit {
			promCalls.WithLabelValues("reverted").Inc()
			promReverts.WithLabelValues(RevertReason(err)).Inc()
			misc.Debugf(c.logger, "call from:%s to:%s reverted: %v", from, to, err)
		}
		return nil, err
	}
	if !commit {
		c.restore(snapshot)
		return &Receipt{Block: c.height, Return: out}, nil
	}
	c.height++
	promHeight.Set(float64(c.height))
	promCalls.WithLabelValues("committed").Inc()
	return &Receipt{Block: c.height, Return: out, Events: env.events}, nil
}

func (c *Chain) snapshot() map[types.Address]any {
	snaps := make(map[types.Address]any, len(c.accounts))
	for addr, contract := range c.accounts {
		if stateful, ok := contract.(Stateful); ok {
			snaps[addr] = stateful.Snapshot()
		}
	}
	return snaps
}

func (c *Chain) restore(snaps map[types.Address]any) {
	for addr, snap := range snaps {
		c.accounts[addr].(Stateful).Restore(snap)
	}
}

// Mine advances the chain by n empty blocks.
func (c *Chain) Mine(n uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += n
	promHeight.Set(float64(c.height))
	return c.height
}

func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *Chain) Nonce(addr types.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[addr]
}

// CodeAt returns the contract deployed at addr.
func (c *Chain) CodeAt(addr types.Address) (Contract, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	contract, ok := c.accounts[addr]
	return contract, ok
}

// Accounts returns the addresses of all deployed contracts, sorted.
func (c *Chain) Accounts() []types.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]types.Address, 0, len(c.accounts))
	for addr := range c.accounts {
		keys = append(keys, addr)
	}
	slices.SortFunc(keys, func(a, b types.Address) int {
		return slices.Compare(a[:], b[:])
	})
	return keys
}

// Env is the execution environment handed to contracts for the duration of one top-level call.
type Env struct {
	chain   *Chain
	origin  types.Address
	block   uint64
	depth   int
	failure error
	events  []Event
}

// Call makes a nested call from one contract into another. A failure here fails the enclosing top-level
// call even if the caller goes on to ignore the returned error.
func (e *Env) Call(ctx context.Context, from, to types.Address, input []byte) ([]byte, error) {
	out, err := e.call(ctx, from, to, input)
	if err != nil && e.failure == nil {
		e.failure = err
	}
	return out, err
}

func (e *Env) call(ctx context.Context, from, to types.Address, input []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.depth >= MaxCallDepth {
		return nil, ErrCallDepth
	}
	contract, ok := e.chain.accounts[to]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCode, to)
	}
	e.depth++
	defer func() { e.depth-- }()
	return contract.Invoke(ctx, e, Message{From: from, To: to, Input: input})
}

// CodeAt returns the code deployed at addr, without locking - only valid while a call is executing.
func (e *Env) CodeAt(addr types.Address) (Contract, bool) {
	contract, ok := e.chain.accounts[addr]
	return contract, ok
}

// BlockHeight is the height of the block the call executes in.
func (e *Env) BlockHeight() uint64 { return e.block }

// Origin is the external account that started the top-level call.
func (e *Env) Origin() types.Address { return e.origin }

func (e *Env) Emit(addr types.Address, name string, fields map[string]string) {
	e.events = append(e.events, Event{Address: addr, Name: name, Fields: fields})
}

func (e *Env) Logger() *slog.Logger { return e.chain.logger }
