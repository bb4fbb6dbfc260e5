package diamond

import (
	"context"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
)

const CutFacetKind = "diamond.cut"

type CutAction uint8

const (
	Add CutAction = iota
	Replace
	Remove
)

func (a CutAction) String() string {
	switch a {
	case Add:
		return "add"
	case Replace:
		return "replace"
	case Remove:
		return "remove"
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseCutAction parses the lowercase name of an action.
func ParseCutAction(s string) (CutAction, error) {
	switch strings.ToLower(s) {
	case "add":
		return Add, nil
	case "replace":
		return Replace, nil
	case "remove":
		return Remove, nil
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidCutAction, s)
}

// FacetCut is one entry of a cut batch.
type FacetCut struct {
	Facet     types.Address
	Action    CutAction
	Selectors []method.Selector
}

var MethodDiamondCut = method.MustParse("diamondCut((address,uint8,byte[4][])[],address,byte[])void")

var cutFunctions = NewFunctionTable(
	Function{MethodDiamondCut, cutDiamondCut},
)

// CutFacet is the upgrade controller: the only way to change a router's registry.
type CutFacet struct {
	FacetBase
}

func NewCutFacet() *CutFacet {
	return &CutFacet{FacetBase: NewFacetBase(CutFacetKind, cutFunctions)}
}

func cutDiamondCut(ctx context.Context, call *Call, args method.Args) (any, error) {
	if err := call.RequireOwner(); err != nil {
		return nil, err
	}
	batch, err := decodeCuts(args[0])
	if err != nil {
		return nil, err
	}
	initAddr, err := args.Address(1)
	if err != nil {
		return nil, err
	}
	calldata, err := args.Bytes(2)
	if err != nil {
		return nil, err
	}
	if err := applyCut(ctx, call, batch, initAddr, calldata); err != nil {
		return nil, err
	}
	call.Emit("DiamondCut", map[string]string{
		"cuts":     describeCuts(batch),
		"init":     initAddr.String(),
		"calldata": fmt.Sprintf("%x", calldata),
	})
	misc.Infof(call.Logger(), "router %s cut applied: %s", call.Self, describeCuts(batch))
	return nil, nil
}

// applyCut validates and applies the batch to a copy of the registry, swaps the copy in and then runs the
// init call. The previous registry is put back if the init call fails.
func applyCut(ctx context.Context, call *Call, batch []FacetCut, initAddr types.Address, calldata []byte) error {
	if err := validateInit(call.Env, initAddr, calldata); err != nil {
		return err
	}
	staged := call.Storage.Registry.Clone()
	for i, cut := range batch {
		if err := applyFacetCut(call, staged, cut); err != nil {
			return fmt.Errorf("cut %d (%s %s): %w", i, cut.Action, cut.Facet, err)
		}
	}
	previous := call.Storage.Registry
	call.Storage.Registry = staged
	if initAddr.IsZero() {
		return nil
	}
	if _, err := call.Delegate(ctx, initAddr, calldata); err != nil {
		call.Storage.Registry = previous
		return fmt.Errorf("%w: %s: %w", ErrInitFailed, initAddr, err)
	}
	return nil
}

func validateInit(env *chain.Env, initAddr types.Address, calldata []byte) error {
	switch {
	case initAddr.IsZero() && len(calldata) > 0:
		return fmt.Errorf("%w: init is zero address but calldata is not empty", ErrInvalidCutAction)
	case initAddr.IsZero():
		return nil
	case len(calldata) == 0:
		return fmt.Errorf("%w: calldata is empty but init is not zero address", ErrInvalidCutAction)
	}
	if _, ok := env.CodeAt(initAddr); !ok {
		return fmt.Errorf("%w: init %s", ErrNoCode, initAddr)
	}
	return nil
}

func applyFacetCut(call *Call, reg *Registry, cut FacetCut) error {
	if len(cut.Selectors) == 0 {
		return fmt.Errorf("%w: no selectors in facet to cut", ErrInvalidCutAction)
	}
	switch cut.Action {
	case Add:
		if err := requireFacetCode(call, cut.Facet); err != nil {
			return err
		}
		for _, sel := range cut.Selectors {
			if err := checkSelfRoute(call, cut.Facet, sel); err != nil {
				return err
			}
			if err := reg.Register(sel, cut.Facet); err != nil {
				return err
			}
		}
	case Replace:
		if err := requireFacetCode(call, cut.Facet); err != nil {
			return err
		}
		for _, sel := range cut.Selectors {
			if err := checkSelfRoute(call, cut.Facet, sel); err != nil {
				return err
			}
			current, ok := reg.Resolve(sel)
			switch {
			case !ok:
				return fmt.Errorf("%w: can't replace function %s that doesn't exist", ErrInvalidCutAction, sel)
			case current == call.Self:
				return fmt.Errorf("%w: %s", ErrImmutableFunction, sel)
			case current == cut.Facet:
				return fmt.Errorf("%w: can't replace function %s with same function", ErrInvalidCutAction, sel)
			}
			if err := reg.Unregister(sel); err != nil {
				return err
			}
			if err := reg.Register(sel, cut.Facet); err != nil {
				return err
			}
		}
	case Remove:
		if !cut.Facet.IsZero() {
			return fmt.Errorf("%w: remove facet address must be zero address", ErrInvalidCutAction)
		}
		for _, sel := range cut.Selectors {
			current, ok := reg.Resolve(sel)
			switch {
			case !ok:
				return fmt.Errorf("%w: can't remove function %s that doesn't exist", ErrInvalidCutAction, sel)
			case current == call.Self:
				return fmt.Errorf("%w: %s", ErrImmutableFunction, sel)
			}
			if err := reg.Unregister(sel); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidCutAction, cut.Action)
	}
	return nil
}

// checkSelfRoute allows routing a selector to the router itself only for the router's built-in functions,
// which are then immutable.
func checkSelfRoute(call *Call, facet types.Address, sel method.Selector) error {
	if facet != call.Self {
		return nil
	}
	if _, builtin := loupeFunctions.Lookup(sel); !builtin {
		return fmt.Errorf("%w: router has no built-in function %s", ErrInvalidCutAction, sel)
	}
	return nil
}

func requireFacetCode(call *Call, facet types.Address) error {
	if facet.IsZero() {
		return fmt.Errorf("%w: facet to cut", ErrZeroAddress)
	}
	if _, ok := call.Env.CodeAt(facet); !ok {
		return fmt.Errorf("%w: facet %s", ErrNoCode, facet)
	}
	return nil
}

func decodeCuts(v any) ([]FacetCut, error) {
	list, err := method.AsList(v)
	if err != nil {
		return nil, err
	}
	batch := make([]FacetCut, 0, len(list))
	for _, elem := range list {
		fields, err := method.AsList(elem)
		if err != nil {
			return nil, err
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: facet cut has %d fields", method.ErrInvalidPayload, len(fields))
		}
		facet, err := method.AsAddress(fields[0])
		if err != nil {
			return nil, err
		}
		action, err := method.AsUint64(fields[1])
		if err != nil {
			return nil, err
		}
		sels, err := method.AsSelectors(fields[2])
		if err != nil {
			return nil, err
		}
		batch = append(batch, FacetCut{Facet: facet, Action: CutAction(action), Selectors: sels})
	}
	return batch, nil
}

func encodeCuts(batch []FacetCut) []any {
	out := make([]any, 0, len(batch))
	for _, cut := range batch {
		out = append(out, []any{cut.Facet, uint8(cut.Action), cut.Selectors})
	}
	return out
}

func describeCuts(batch []FacetCut) string {
	parts := make([]string, 0, len(batch))
	for _, cut := range batch {
		parts = append(parts, fmt.Sprintf("%s %s:%d", cut.Action, cut.Facet, len(cut.Selectors)))
	}
	return strings.Join(parts, ", ")
}

// CutClient submits cuts to a router.
type CutClient struct {
	backend method.Backend
	router  types.Address
}

func NewCutClient(backend method.Backend, router types.Address) *CutClient {
	return &CutClient{backend: backend, router: router}
}

// DiamondCut applies batch and, if initAddr is non-zero, delegates calldata to it in the same call.
func (c *CutClient) DiamondCut(ctx context.Context, batch []FacetCut, initAddr types.Address, calldata []byte) (*chain.Receipt, error) {
	if calldata == nil {
		calldata = []byte{}
	}
	return MethodDiamondCut.Transact(ctx, c.backend, c.router, encodeCuts(batch), initAddr, calldata)
}

// CutFor builds an Add cut of every selector a facet serves.
func CutFor(facetAddr types.Address, facet Facet) FacetCut {
	return FacetCut{Facet: facetAddr, Action: Add, Selectors: facet.Selectors()}
}
