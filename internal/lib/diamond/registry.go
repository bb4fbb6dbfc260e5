package diamond

import (
	"fmt"
	"maps"
	"slices"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
)

// FacetEntry is one facet and the selectors currently routed to it.
type FacetEntry struct {
	Facet     types.Address
	Selectors []method.Selector
}

// Registry maps selectors to the facet that implements them. A selector is routed to at most one facet, and
// a facet is listed only while it holds at least one selector. Fields are exported for gob persistence only.
//
// Listing order is stable between cuts: facets in the order they first got a selector, each w/ its selectors
// in the order they were routed to it. A replaced selector moves to the end of its new facet's list, and a
// facet that loses all its selectors and later gets new ones is listed last.
type Registry struct {
	Routes map[method.Selector]types.Address

	// facets in the order they were first added, w/ their selectors in registration order
	Order   []types.Address
	ByFacet map[types.Address][]method.Selector
}

func NewRegistry() *Registry {
	return &Registry{
		Routes:  map[method.Selector]types.Address{},
		ByFacet: map[types.Address][]method.Selector{},
	}
}

// Resolve returns the facet a selector is routed to.
func (r *Registry) Resolve(sel method.Selector) (types.Address, bool) {
	facet, ok := r.Routes[sel]
	return facet, ok
}

// Register routes sel to facet. The selector must not already be routed anywhere.
func (r *Registry) Register(sel method.Selector, facet types.Address) error {
	if facet.IsZero() {
		return fmt.Errorf("%w: facet for selector %s", ErrZeroAddress, sel)
	}
	if existing, ok := r.Routes[sel]; ok {
		return fmt.Errorf("%w: %s (on facet %s)", ErrDuplicateSelector, sel, existing)
	}
	r.Routes[sel] = facet
	if _, ok := r.ByFacet[facet]; !ok {
		r.Order = append(r.Order, facet)
	}
	r.ByFacet[facet] = append(r.ByFacet[facet], sel)
	return nil
}

// Unregister removes the route for sel, dropping its facet from the listing once it has no selectors left.
func (r *Registry) Unregister(sel method.Selector) error {
	facet, ok := r.Routes[sel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSelectorNotFound, sel)
	}
	delete(r.Routes, sel)
	sels := slices.DeleteFunc(r.ByFacet[facet], func(s method.Selector) bool { return s == sel })
	if len(sels) > 0 {
		r.ByFacet[facet] = sels
		return nil
	}
	delete(r.ByFacet, facet)
	r.Order = slices.DeleteFunc(r.Order, func(a types.Address) bool { return a == facet })
	return nil
}

// FacetAddresses returns every facet holding at least one selector.
func (r *Registry) FacetAddresses() []types.Address {
	return slices.Clone(r.Order)
}

// FacetSelectors returns the selectors routed to facet (empty if it has none).
func (r *Registry) FacetSelectors(facet types.Address) []method.Selector {
	return slices.Clone(r.ByFacet[facet])
}

func (r *Registry) Facets() []FacetEntry {
	entries := make([]FacetEntry, 0, len(r.Order))
	for _, facet := range r.Order {
		entries = append(entries, FacetEntry{Facet: facet, Selectors: r.FacetSelectors(facet)})
	}
	return entries
}

// Len is the number of routed selectors.
func (r *Registry) Len() int { return len(r.Routes) }

func (r *Registry) Clone() *Registry {
	clone := &Registry{
		Routes:  maps.Clone(r.Routes),
		Order:   slices.Clone(r.Order),
		ByFacet: make(map[types.Address][]method.Selector, len(r.ByFacet)),
	}
	if clone.Routes == nil {
		clone.Routes = map[method.Selector]types.Address{}
	}
	for facet, sels := range r.ByFacet {
		clone.ByFacet[facet] = slices.Clone(sels)
	}
	return clone
}
