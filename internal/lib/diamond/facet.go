package diamond

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
)

// Call is the context a facet function runs in: the chain environment, the original sender of the call to
// the router, the router's own address and the router's storage.
type Call struct {
	Env     *chain.Env
	Sender  types.Address
	Self    types.Address
	Storage *Storage
}

// Handler implements one facet function against the delegating router's storage.
type Handler func(ctx context.Context, call *Call, args method.Args) (any, error)

type Function struct {
	Method  method.Method
	Handler Handler
}

// Facet is contract code that only runs on behalf of a router.
type Facet interface {
	chain.Contract
	// Delegate runs the function for sel w/ the router's storage.
	Delegate(ctx context.Context, call *Call, sel method.Selector, payload []byte) ([]byte, error)
	Selectors() []method.Selector
}

// FunctionTable is a facet's dispatch table.
type FunctionTable struct {
	order []Function
	bySel map[method.Selector]Function
}

func NewFunctionTable(fns ...Function) *FunctionTable {
	table := &FunctionTable{bySel: make(map[method.Selector]Function, len(fns))}
	for _, fn := range fns {
		if _, dup := table.bySel[fn.Method.Selector()]; dup {
			panic(fmt.Sprintf("duplicate function %s in table", fn.Method))
		}
		table.order = append(table.order, fn)
		table.bySel[fn.Method.Selector()] = fn
	}
	return table
}

func (t *FunctionTable) Lookup(sel method.Selector) (Function, bool) {
	fn, ok := t.bySel[sel]
	return fn, ok
}

// Selectors returns the table's selectors in declaration order.
func (t *FunctionTable) Selectors() []method.Selector {
	sels := make([]method.Selector, 0, len(t.order))
	for _, fn := range t.order {
		sels = append(sels, fn.Method.Selector())
	}
	return sels
}

func (t *FunctionTable) Methods() []method.Method {
	methods := make([]method.Method, 0, len(t.order))
	for _, fn := range t.order {
		methods = append(methods, fn.Method)
	}
	return methods
}

// Dispatch decodes payload for the function matching sel, runs it and encodes its return value.
func (t *FunctionTable) Dispatch(ctx context.Context, call *Call, sel method.Selector, payload []byte) ([]byte, error) {
	fn, ok := t.bySel[sel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSelectorNotFound, sel)
	}
	args, err := fn.Method.DecodeArgs(payload)
	if err != nil {
		return nil, err
	}
	ret, err := fn.Handler(ctx, call, args)
	if err != nil {
		return nil, err
	}
	return fn.Method.EncodeReturn(ret)
}

// FacetBase implements Facet for a stateless facet described by a function table. Embed it and register the
// kind w/ chain.RegisterKind.
type FacetBase struct {
	kind  string
	table *FunctionTable
}

func NewFacetBase(kind string, table *FunctionTable) FacetBase {
	return FacetBase{kind: kind, table: table}
}

func (f FacetBase) Kind() string { return f.kind }

// Invoke handles a call made directly to the facet's own address, which has no storage to run against.
func (f FacetBase) Invoke(_ context.Context, _ *chain.Env, msg chain.Message) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s called directly at %s", ErrNoStorage, f.kind, msg.To)
}

func (f FacetBase) Delegate(ctx context.Context, call *Call, sel method.Selector, payload []byte) ([]byte, error) {
	return f.table.Dispatch(ctx, call, sel, payload)
}

func (f FacetBase) Selectors() []method.Selector { return f.table.Selectors() }

func (f FacetBase) Methods() []method.Method { return f.table.Methods() }

// RequireOwner fails w/ ErrUnauthorized unless the sender is the router's owner.
func (c *Call) RequireOwner() error {
	if c.Sender != c.Storage.Owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, c.Sender)
	}
	return nil
}

// Lock takes the router's reentrancy lock, failing w/ ErrReentrantCall if a call already holds it.
func (c *Call) Lock() (unlock func(), err error) {
	if c.Storage.Locked {
		return nil, ErrReentrantCall
	}
	c.Storage.Locked = true
	return func() { c.Storage.Locked = false }, nil
}

// CallContract makes an external call w/ the router as sender.
func (c *Call) CallContract(ctx context.Context, to types.Address, input []byte) ([]byte, error) {
	return c.Env.Call(ctx, c.Self, to, input)
}

// Transact encodes and makes an external call of m w/ the router as sender, decoding the return value.
func (c *Call) Transact(ctx context.Context, to types.Address, m method.Method, args ...any) (any, error) {
	input, err := m.Encode(args...)
	if err != nil {
		return nil, err
	}
	out, err := c.CallContract(ctx, to, input)
	if err != nil {
		return nil, err
	}
	return m.DecodeReturn(out)
}

// Delegate runs input on the facet at target against this call's storage.
func (c *Call) Delegate(ctx context.Context, target types.Address, input []byte) ([]byte, error) {
	code, ok := c.Env.CodeAt(target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCode, target)
	}
	facet, ok := code.(Facet)
	if !ok {
		return nil, fmt.Errorf("%w: %s holds %s, not a facet", ErrNoCode, target, code.Kind())
	}
	sel, payload, err := method.SplitInput(input)
	if err != nil {
		return nil, err
	}
	return facet.Delegate(ctx, c, sel, payload)
}

func (c *Call) Emit(name string, fields map[string]string) {
	c.Env.Emit(c.Self, name, fields)
}

func (c *Call) Logger() *slog.Logger { return c.Env.Logger() }
