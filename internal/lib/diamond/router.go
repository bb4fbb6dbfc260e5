package diamond

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
)

const RouterKind = "diamond.router"

// ERC-165 interface ids of the standard router functionality.
var (
	InterfaceERC165       = method.InterfaceID(MethodSupportsInterface)
	InterfaceDiamondCut   = method.InterfaceID(MethodDiamondCut)
	InterfaceDiamondLoupe = method.InterfaceID(MethodFacets, MethodFacetFunctionSelectors, MethodFacetAddresses, MethodFacetAddress)
	InterfaceERC173       = method.InterfaceID(MethodOwner, MethodTransferOwnership)
)

// Router is the stable entry point of a diamond. It owns the persistent storage and forwards each call to the
// facet its selector is routed to, which then runs against that storage.
type Router struct {
	logger  *slog.Logger
	storage *Storage
}

// NewRouter creates a router owned by owner w/ the diamondCut function routed to cutFacet, so the rest of
// the registry can be built w/ cuts.
func NewRouter(logger *slog.Logger, owner, cutFacet types.Address) (*Router, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("%w: owner", ErrZeroAddress)
	}
	storage := NewStorage(owner)
	if err := storage.Registry.Register(MethodDiamondCut.Selector(), cutFacet); err != nil {
		return nil, err
	}
	return &Router{logger: logger, storage: storage}, nil
}

func (r *Router) Kind() string { return RouterKind }

// Storage returns the router's committed storage. Not safe to use while a call is executing on the chain.
func (r *Router) Storage() *Storage { return r.storage }

func (r *Router) Invoke(ctx context.Context, env *chain.Env, msg chain.Message) ([]byte, error) {
	sel, payload, err := method.SplitInput(msg.Input)
	if err != nil {
		return nil, err
	}
	call := &Call{Env: env, Sender: msg.From, Self: msg.To, Storage: r.storage}
	facet, ok := r.storage.Registry.Resolve(sel)
	if !ok || facet == msg.To {
		if _, builtin := loupeFunctions.Lookup(sel); builtin {
			return loupeFunctions.Dispatch(ctx, call, sel, payload)
		}
		misc.Debugf(r.logger, "router %s: no facet for selector %s (from %s)", msg.To, sel, msg.From)
		return nil, fmt.Errorf("%w: %s", ErrSelectorNotFound, sel)
	}
	return call.Delegate(ctx, facet, msg.Input)
}

func (r *Router) Snapshot() any { return r.storage.Clone() }

func (r *Router) Restore(snapshot any) { r.storage = snapshot.(*Storage) }

func (r *Router) MarshalState() ([]byte, error) {
	return chain.EncodeGob(r.storage)
}

func (r *Router) UnmarshalState(data []byte) error {
	var storage Storage
	if err := chain.DecodeGob(data, &storage); err != nil {
		return fmt.Errorf("decoding router storage: %w", err)
	}
	// gob drops empty maps
	if storage.Registry == nil {
		storage.Registry = NewRegistry()
	}
	if storage.Registry.Routes == nil {
		storage.Registry.Routes = map[method.Selector]types.Address{}
	}
	if storage.Registry.ByFacet == nil {
		storage.Registry.ByFacet = map[types.Address][]method.Selector{}
	}
	if storage.Interfaces == nil {
		storage.Interfaces = map[method.Selector]bool{}
	}
	if storage.Namespaces == nil {
		storage.Namespaces = map[string]Namespace{}
	}
	r.storage = &storage
	return nil
}

func init() {
	chain.RegisterKind(RouterKind, func() chain.Contract {
		return &Router{logger: slog.Default(), storage: NewStorage(types.Address{})}
	})
	chain.RegisterKind(CutFacetKind, func() chain.Contract { return NewCutFacet() })
	chain.RegisterKind(LoupeFacetKind, func() chain.Contract { return NewLoupeFacet() })
	chain.RegisterKind(OwnershipFacetKind, func() chain.Contract { return NewOwnershipFacet() })
}
