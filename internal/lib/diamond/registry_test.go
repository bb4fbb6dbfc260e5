package diamond

import (
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
)

// replace moves sel to facet the way a Replace cut does.
func replace(t *testing.T, r *Registry, sel method.Selector, facet types.Address) {
	t.Helper()
	require.NoError(t, r.Unregister(sel))
	require.NoError(t, r.Register(sel, facet))
}

func TestRegistryOrdering(t *testing.T) {
	s1, s2, s3, s4 := method.Selector{1}, method.Selector{2}, method.Selector{3}, method.Selector{4}
	a, b := crypto.GenerateAccount().Address, crypto.GenerateAccount().Address

	r := NewRegistry()
	require.NoError(t, r.Register(s1, a))
	require.NoError(t, r.Register(s2, a))
	require.NoError(t, r.Register(s3, b))
	assert.Equal(t, []types.Address{a, b}, r.FacetAddresses())

	replace(t, r, s1, b)
	assert.Equal(t, []types.Address{a, b}, r.FacetAddresses())
	assert.Equal(t, []method.Selector{s2}, r.FacetSelectors(a))
	assert.Equal(t, []method.Selector{s3, s1}, r.FacetSelectors(b))

	// emptied facets drop out of the listing
	replace(t, r, s2, b)
	assert.Equal(t, []types.Address{b}, r.FacetAddresses())
	assert.Empty(t, r.FacetSelectors(a))
	assert.Equal(t, []method.Selector{s3, s1, s2}, r.FacetSelectors(b))

	// and come back at the end
	require.NoError(t, r.Register(s4, a))
	assert.Equal(t, []FacetEntry{
		{Facet: b, Selectors: []method.Selector{s3, s1, s2}},
		{Facet: a, Selectors: []method.Selector{s4}},
	}, r.Facets())
	assert.Equal(t, 4, r.Len())
}

func TestRegistryCloneIsIndependent(t *testing.T) {
	sel := method.Selector{1}
	a, b := crypto.GenerateAccount().Address, crypto.GenerateAccount().Address

	r := NewRegistry()
	require.NoError(t, r.Register(sel, a))
	clone := r.Clone()
	replace(t, clone, sel, b)

	facet, ok := r.Resolve(sel)
	require.True(t, ok)
	assert.Equal(t, a, facet)
	assert.Equal(t, []types.Address{a}, r.FacetAddresses())
	assert.Equal(t, []types.Address{b}, clone.FacetAddresses())
}

func TestRegistryRejects(t *testing.T) {
	sel := method.Selector{1}
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(sel, types.Address{}), ErrZeroAddress)
	require.NoError(t, r.Register(sel, crypto.GenerateAccount().Address))
	assert.ErrorIs(t, r.Register(sel, crypto.GenerateAccount().Address), ErrDuplicateSelector)
	assert.ErrorIs(t, r.Unregister(method.Selector{2}), ErrSelectorNotFound)
}
