package diamond

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
)

const LoupeFacetKind = "diamond.loupe"

var (
	MethodFacets                 = method.MustParse("facets()(address,byte[4][])[]")
	MethodFacetFunctionSelectors = method.MustParse("facetFunctionSelectors(address)byte[4][]")
	MethodFacetAddresses         = method.MustParse("facetAddresses()address[]")
	MethodFacetAddress           = method.MustParse("facetAddress(byte[4])address")
	MethodSupportsInterface      = method.MustParse("supportsInterface(byte[4])bool")
)

// loupeFunctions are served by the loupe facet and, while no facet is routed for them, by the router itself.
var loupeFunctions = NewFunctionTable(
	Function{MethodFacets, loupeFacets},
	Function{MethodFacetFunctionSelectors, loupeFacetFunctionSelectors},
	Function{MethodFacetAddresses, loupeFacetAddresses},
	Function{MethodFacetAddress, loupeFacetAddress},
	Function{MethodSupportsInterface, loupeSupportsInterface},
)

// LoupeFacet answers read-only questions about a router's registry.
type LoupeFacet struct {
	FacetBase
}

func NewLoupeFacet() *LoupeFacet {
	return &LoupeFacet{FacetBase: NewFacetBase(LoupeFacetKind, loupeFunctions)}
}

func loupeFacets(_ context.Context, call *Call, _ method.Args) (any, error) {
	entries := call.Storage.Registry.Facets()
	out := make([]any, 0, len(entries))
	for _, entry := range entries {
		out = append(out, []any{entry.Facet, entry.Selectors})
	}
	return out, nil
}

func loupeFacetFunctionSelectors(_ context.Context, call *Call, args method.Args) (any, error) {
	facet, err := args.Address(0)
	if err != nil {
		return nil, err
	}
	return call.Storage.Registry.FacetSelectors(facet), nil
}

func loupeFacetAddresses(_ context.Context, call *Call, _ method.Args) (any, error) {
	return call.Storage.Registry.FacetAddresses(), nil
}

// absent selectors report the zero address
func loupeFacetAddress(_ context.Context, call *Call, args method.Args) (any, error) {
	sel, err := argSelector(args, 0)
	if err != nil {
		return nil, err
	}
	facet, _ := call.Storage.Registry.Resolve(sel)
	return facet, nil
}

func loupeSupportsInterface(_ context.Context, call *Call, args method.Args) (any, error) {
	id, err := argSelector(args, 0)
	if err != nil {
		return nil, err
	}
	return call.Storage.Interfaces[id], nil
}

func argSelector(args method.Args, i int) (method.Selector, error) {
	raw, err := args.Bytes(i)
	if err != nil {
		return method.Selector{}, err
	}
	return method.SelectorFromBytes(raw)
}

// LoupeClient queries a router's registry.
type LoupeClient struct {
	backend method.Backend
	router  types.Address
}

func NewLoupeClient(backend method.Backend, router types.Address) *LoupeClient {
	return &LoupeClient{backend: backend, router: router}
}

func (c *LoupeClient) Facets(ctx context.Context) ([]FacetEntry, error) {
	ret, err := MethodFacets.Query(ctx, c.backend, c.router)
	if err != nil {
		return nil, err
	}
	list, err := method.AsList(ret)
	if err != nil {
		return nil, err
	}
	entries := make([]FacetEntry, 0, len(list))
	for _, elem := range list {
		pair, err := method.AsList(elem)
		if err != nil {
			return nil, err
		}
		facet, err := method.AsAddress(pair[0])
		if err != nil {
			return nil, err
		}
		sels, err := method.AsSelectors(pair[1])
		if err != nil {
			return nil, err
		}
		entries = append(entries, FacetEntry{Facet: facet, Selectors: sels})
	}
	return entries, nil
}

func (c *LoupeClient) FacetFunctionSelectors(ctx context.Context, facet types.Address) ([]method.Selector, error) {
	ret, err := MethodFacetFunctionSelectors.Query(ctx, c.backend, c.router, facet)
	if err != nil {
		return nil, err
	}
	return method.AsSelectors(ret)
}

func (c *LoupeClient) FacetAddresses(ctx context.Context) ([]types.Address, error) {
	ret, err := MethodFacetAddresses.Query(ctx, c.backend, c.router)
	if err != nil {
		return nil, err
	}
	return method.AsAddresses(ret)
}

// FacetAddress returns the facet routed for sel, or the zero address.
func (c *LoupeClient) FacetAddress(ctx context.Context, sel method.Selector) (types.Address, error) {
	ret, err := MethodFacetAddress.Query(ctx, c.backend, c.router, sel)
	if err != nil {
		return types.Address{}, err
	}
	return method.AsAddress(ret)
}

func (c *LoupeClient) SupportsInterface(ctx context.Context, id method.Selector) (bool, error) {
	ret, err := MethodSupportsInterface.Query(ctx, c.backend, c.router, id)
	if err != nil {
		return false, err
	}
	supported, _ := ret.(bool)
	return supported, nil
}
