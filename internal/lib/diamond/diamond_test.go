package diamond

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
)

var (
	methodIncrement = method.MustParse("increment()void")
	methodCount     = method.MustParse("count()uint64")
	methodFail      = method.MustParse("failAfterIncrement()void")
	methodSetCount  = method.MustParse("setCount(uint64)void")

	errTestFacet = errors.New("test facet failure")
)

type counterState struct {
	Count uint64
}

func (s *counterState) Clone() Namespace {
	clone := *s
	return &clone
}

func counterOf(call *Call) *counterState {
	return Load(call.Storage, "test.counter", func() *counterState { return &counterState{} })
}

func newCounterFacet() *FacetBase {
	base := NewFacetBase("test.counterFacet", NewFunctionTable(
		Function{methodIncrement, func(_ context.Context, call *Call, _ method.Args) (any, error) {
			counterOf(call).Count++
			return nil, nil
		}},
		Function{methodCount, func(_ context.Context, call *Call, _ method.Args) (any, error) {
			return counterOf(call).Count, nil
		}},
		Function{methodFail, func(_ context.Context, call *Call, _ method.Args) (any, error) {
			counterOf(call).Count++
			return nil, errTestFacet
		}},
		Function{methodSetCount, func(_ context.Context, call *Call, args method.Args) (any, error) {
			count, err := args.Uint64(0)
			if err != nil {
				return nil, err
			}
			counterOf(call).Count = count
			return nil, nil
		}},
	))
	return &base
}

func newCounterV2Facet() *FacetBase {
	base := NewFacetBase("test.counterFacetV2", NewFunctionTable(
		Function{methodCount, func(_ context.Context, call *Call, _ method.Args) (any, error) {
			return counterOf(call).Count * 2, nil
		}},
	))
	return &base
}

type fixture struct {
	chain     *chain.Chain
	owner     *chain.Session
	stranger  *chain.Session
	router    types.Address
	cutFacet  types.Address
	loupe     types.Address
	ownership types.Address
	counter   types.Address
	counterV2 types.Address
}

func (f *fixture) cut(t *testing.T, batch []FacetCut, init types.Address, calldata []byte) error {
	t.Helper()
	_, err := NewCutClient(f.owner, f.router).DiamondCut(context.Background(), batch, init, calldata)
	return err
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	c := chain.New(misc.DiscardLogger())
	f := &fixture{
		chain:    c,
		owner:    c.Session(crypto.GenerateAccount().Address),
		stranger: c.Session(crypto.GenerateAccount().Address),
	}
	deploy := func(contract chain.Contract) types.Address {
		addr, err := c.Deploy(ctx, contract)
		require.NoError(t, err)
		return addr
	}
	f.cutFacet = deploy(NewCutFacet())
	router, err := NewRouter(misc.DiscardLogger(), f.owner.From(), f.cutFacet)
	require.NoError(t, err)
	f.router = deploy(router)
	f.loupe = deploy(NewLoupeFacet())
	f.ownership = deploy(NewOwnershipFacet())
	f.counter = deploy(newCounterFacet())
	f.counterV2 = deploy(newCounterV2Facet())

	require.NoError(t, f.cut(t, []FacetCut{
		CutFor(f.loupe, NewLoupeFacet()),
		CutFor(f.ownership, NewOwnershipFacet()),
	}, types.Address{}, nil))
	return f
}

func (f *fixture) count(t *testing.T) uint64 {
	t.Helper()
	ret, err := methodCount.Query(context.Background(), f.stranger, f.router)
	require.NoError(t, err)
	count, err := method.AsUint64(ret)
	require.NoError(t, err)
	return count
}

func (f *fixture) facets(t *testing.T) []FacetEntry {
	t.Helper()
	entries, err := NewLoupeClient(f.stranger, f.router).Facets(context.Background())
	require.NoError(t, err)
	return entries
}

func TestLoupeReflectsCuts(t *testing.T) {
	f := newFixture(t)
	loupe := NewLoupeClient(f.stranger, f.router)
	ctx := context.Background()

	want := []FacetEntry{
		{Facet: f.cutFacet, Selectors: []method.Selector{MethodDiamondCut.Selector()}},
		{Facet: f.loupe, Selectors: NewLoupeFacet().Selectors()},
		{Facet: f.ownership, Selectors: NewOwnershipFacet().Selectors()},
	}
	if diff := cmp.Diff(want, f.facets(t)); diff != "" {
		t.Fatalf("facets mismatch (-want +got):\n%s", diff)
	}
	// repeated reads w/out a cut are identical
	if diff := cmp.Diff(f.facets(t), f.facets(t)); diff != "" {
		t.Fatalf("facets not idempotent:\n%s", diff)
	}

	addrs, err := loupe.FacetAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Address{f.cutFacet, f.loupe, f.ownership}, addrs)

	sels, err := loupe.FacetFunctionSelectors(ctx, f.ownership)
	require.NoError(t, err)
	assert.Equal(t, []method.Selector{MethodOwner.Selector(), MethodTransferOwnership.Selector()}, sels)

	facet, err := loupe.FacetAddress(ctx, MethodFacets.Selector())
	require.NoError(t, err)
	assert.Equal(t, f.loupe, facet)

	facet, err = loupe.FacetAddress(ctx, methodIncrement.Selector())
	require.NoError(t, err)
	assert.True(t, facet.IsZero())

	unknown, err := loupe.FacetFunctionSelectors(ctx, f.counter)
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestRouterAnswersLoupeBeforeLoupeFacetIsAdded(t *testing.T) {
	ctx := context.Background()
	c := chain.New(misc.DiscardLogger())
	owner := c.Session(crypto.GenerateAccount().Address)
	cutFacet, err := c.Deploy(ctx, NewCutFacet())
	require.NoError(t, err)
	router, err := NewRouter(misc.DiscardLogger(), owner.From(), cutFacet)
	require.NoError(t, err)
	routerAddr, err := c.Deploy(ctx, router)
	require.NoError(t, err)

	addrs, err := NewLoupeClient(owner, routerAddr).FacetAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Address{cutFacet}, addrs)

	_, err = MethodOwner.Query(ctx, owner, routerAddr)
	assert.ErrorIs(t, err, ErrSelectorNotFound)
}

func TestCutAddsAndDispatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.cut(t, []FacetCut{CutFor(f.counter, newCounterFacet())}, types.Address{}, nil))

	_, err := methodIncrement.Transact(ctx, f.stranger, f.router)
	require.NoError(t, err)
	_, err = methodIncrement.Transact(ctx, f.stranger, f.router)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.count(t))

	// a failing facet function rolls back its own writes
	_, err = methodFail.Transact(ctx, f.stranger, f.router)
	assert.ErrorIs(t, err, errTestFacet)
	assert.Equal(t, uint64(2), f.count(t))
}

func TestReplaceKeepsStorage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cut(t, []FacetCut{CutFor(f.counter, newCounterFacet())}, f.counter,
		mustEncode(t, methodSetCount, uint64(21))))
	assert.Equal(t, uint64(21), f.count(t))

	require.NoError(t, f.cut(t, []FacetCut{
		{Facet: f.counterV2, Action: Replace, Selectors: []method.Selector{methodCount.Selector()}},
	}, types.Address{}, nil))
	assert.Equal(t, uint64(42), f.count(t), "replaced logic reads the same storage")

	entries := f.facets(t)
	require.Len(t, entries, 5)
	assert.Equal(t, f.counterV2, entries[4].Facet)
	assert.NotContains(t, entries[3].Selectors, methodCount.Selector())
}

func TestRemoveDropsFacet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.cut(t, []FacetCut{
		{Facet: f.counterV2, Action: Add, Selectors: []method.Selector{methodCount.Selector()}},
	}, types.Address{}, nil))
	require.NoError(t, f.cut(t, []FacetCut{
		{Action: Remove, Selectors: []method.Selector{methodCount.Selector()}},
	}, types.Address{}, nil))

	addrs, err := NewLoupeClient(f.stranger, f.router).FacetAddresses(ctx)
	require.NoError(t, err)
	assert.NotContains(t, addrs, f.counterV2)

	_, err = methodCount.Query(ctx, f.stranger, f.router)
	assert.ErrorIs(t, err, ErrSelectorNotFound)
}

func TestCutValidation(t *testing.T) {
	missing := crypto.GenerateAccount().Address
	tests := []struct {
		name    string
		batch   func(f *fixture) []FacetCut
		wantErr error
	}{
		{
			name: "duplicate selector in batch",
			batch: func(f *fixture) []FacetCut {
				return []FacetCut{
					{Facet: f.counter, Action: Add, Selectors: []method.Selector{methodCount.Selector()}},
					{Facet: f.counterV2, Action: Add, Selectors: []method.Selector{methodCount.Selector()}},
				}
			},
			wantErr: ErrDuplicateSelector,
		},
		{
			name: "add existing selector",
			batch: func(f *fixture) []FacetCut {
				return []FacetCut{{Facet: f.counter, Action: Add, Selectors: []method.Selector{MethodOwner.Selector()}}}
			},
			wantErr: ErrDuplicateSelector,
		},
		{
			name: "empty selectors",
			batch: func(f *fixture) []FacetCut {
				return []FacetCut{{Facet: f.counter, Action: Add}}
			},
			wantErr: ErrInvalidCutAction,
		},
		{
			name: "zero facet address",
			batch: func(f *fixture) []FacetCut {
				return []FacetCut{{Action: Add, Selectors: []method.Selector{methodCount.Selector()}}}
			},
			wantErr: ErrZeroAddress,
		},
		{
			name: "facet without code",
			batch: func(f *fixture) []FacetCut {
				return []FacetCut{{Facet: missing, Action: Add, Selectors: []method.Selector{methodCount.Selector()}}}
			},
			wantErr: ErrNoCode,
		},
		{
			name: "replace with same facet",
			batch: func(f *fixture) []FacetCut {
				return []FacetCut{{Facet: f.ownership, Action: Replace, Selectors: []method.Selector{MethodOwner.Selector()}}}
			},
			wantErr: ErrInvalidCutAction,
		},
		{
			name: "replace missing selector",
			batch: func(f *fixture) []FacetCut {
				return []FacetCut{{Facet: f.counter, Action: Replace, Selectors: []method.Selector{methodCount.Selector()}}}
			},
			wantErr: ErrInvalidCutAction,
		},
		{
			name: "remove w/ non-zero facet",
			batch: func(f *fixture) []FacetCut {
				return []FacetCut{{Facet: f.ownership, Action: Remove, Selectors: []method.Selector{MethodOwner.Selector()}}}
			},
			wantErr: ErrInvalidCutAction,
		},
		{
			name: "remove missing selector",
			batch: func(f *fixture) []FacetCut {
				return []FacetCut{{Action: Remove, Selectors: []method.Selector{methodCount.Selector()}}}
			},
			wantErr: ErrInvalidCutAction,
		},
		{
			name: "unknown action",
			batch: func(f *fixture) []FacetCut {
				return []FacetCut{{Facet: f.counter, Action: CutAction(7), Selectors: []method.Selector{methodCount.Selector()}}}
			},
			wantErr: ErrInvalidCutAction,
		},
		{
			name: "route non built-in to router",
			batch: func(f *fixture) []FacetCut {
				return []FacetCut{{Facet: f.router, Action: Add, Selectors: []method.Selector{methodCount.Selector()}}}
			},
			wantErr: ErrInvalidCutAction,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			before := f.facets(t)
			// a valid add ahead of the bad entry must not survive either
			batch := append([]FacetCut{
				{Facet: f.counter, Action: Add, Selectors: []method.Selector{methodIncrement.Selector()}},
			}, tt.batch(f)...)
			err := f.cut(t, batch, types.Address{}, nil)
			assert.ErrorIs(t, err, tt.wantErr)
			if diff := cmp.Diff(before, f.facets(t)); diff != "" {
				t.Errorf("registry changed by failed cut (-before +after):\n%s", diff)
			}
		})
	}
}

func TestCutRequiresOwner(t *testing.T) {
	f := newFixture(t)
	_, err := NewCutClient(f.stranger, f.router).DiamondCut(context.Background(),
		[]FacetCut{CutFor(f.counter, newCounterFacet())}, types.Address{}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Len(t, f.facets(t), 3)
}

func TestCutInit(t *testing.T) {
	f := newFixture(t)
	setCount := mustEncode(t, methodSetCount, uint64(5))

	err := f.cut(t, nil, types.Address{}, setCount)
	assert.ErrorIs(t, err, ErrInvalidCutAction, "zero init w/ calldata")

	err = f.cut(t, nil, f.counter, nil)
	assert.ErrorIs(t, err, ErrInvalidCutAction, "init w/out calldata")

	err = f.cut(t, nil, crypto.GenerateAccount().Address, setCount)
	assert.ErrorIs(t, err, ErrNoCode)

	err = f.cut(t, []FacetCut{CutFor(f.counter, newCounterFacet())}, f.counter, mustEncode(t, methodFail))
	assert.ErrorIs(t, err, ErrInitFailed)
	assert.ErrorIs(t, err, errTestFacet)
	assert.Len(t, f.facets(t), 3, "add is discarded when init fails")

	// init-only cut is pure reconfiguration
	require.NoError(t, f.cut(t, []FacetCut{CutFor(f.counter, newCounterFacet())}, types.Address{}, nil))
	require.NoError(t, f.cut(t, nil, f.counter, setCount))
	assert.Equal(t, uint64(5), f.count(t))
	assert.Len(t, f.facets(t), 4)
}

func TestCutEmitsEvent(t *testing.T) {
	f := newFixture(t)
	receipt, err := NewCutClient(f.owner, f.router).DiamondCut(context.Background(),
		[]FacetCut{CutFor(f.counter, newCounterFacet())}, types.Address{}, nil)
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, "DiamondCut", receipt.Events[0].Name)
	assert.Equal(t, f.router, receipt.Events[0].Address)
}

func TestImmutableFunctions(t *testing.T) {
	f := newFixture(t)
	facetsSel := MethodFacets.Selector()
	require.NoError(t, f.cut(t, []FacetCut{
		{Action: Remove, Selectors: []method.Selector{facetsSel}},
	}, types.Address{}, nil))
	require.NoError(t, f.cut(t, []FacetCut{
		{Facet: f.router, Action: Add, Selectors: []method.Selector{facetsSel}},
	}, types.Address{}, nil))

	// still answered, now by the router itself
	assert.NotEmpty(t, f.facets(t))

	err := f.cut(t, []FacetCut{{Action: Remove, Selectors: []method.Selector{facetsSel}}}, types.Address{}, nil)
	assert.ErrorIs(t, err, ErrImmutableFunction)
	assert.ErrorIs(t, err, ErrInvalidCutAction)

	err = f.cut(t, []FacetCut{{Facet: f.loupe, Action: Replace, Selectors: []method.Selector{facetsSel}}}, types.Address{}, nil)
	assert.ErrorIs(t, err, ErrImmutableFunction)
}

func TestUnknownSelector(t *testing.T) {
	f := newFixture(t)
	_, err := methodIncrement.Transact(context.Background(), f.stranger, f.router)
	assert.ErrorIs(t, err, ErrSelectorNotFound)

	_, err = f.stranger.Transact(context.Background(), f.router, []byte{1, 2})
	assert.ErrorIs(t, err, method.ErrInvalidPayload)
}

func TestFacetCalledDirectly(t *testing.T) {
	f := newFixture(t)
	_, err := MethodOwner.Query(context.Background(), f.stranger, f.ownership)
	assert.ErrorIs(t, err, ErrNoStorage)
}

func TestOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ownership := NewOwnershipClient(f.owner, f.router)

	owner, err := ownership.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.owner.From(), owner)

	_, err = NewOwnershipClient(f.stranger, f.router).TransferOwnership(ctx, f.stranger.From())
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = ownership.TransferOwnership(ctx, types.Address{})
	assert.ErrorIs(t, err, ErrZeroAddress)

	receipt, err := ownership.TransferOwnership(ctx, f.stranger.From())
	require.NoError(t, err)
	require.Len(t, receipt.Events, 1)
	assert.Equal(t, f.stranger.From().String(), receipt.Events[0].Fields["newOwner"])

	owner, err = ownership.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.stranger.From(), owner)

	// the guard is re-checked on every call
	err = f.cut(t, []FacetCut{CutFor(f.counter, newCounterFacet())}, types.Address{}, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNewRouterRequiresOwner(t *testing.T) {
	_, err := NewRouter(misc.DiscardLogger(), types.Address{}, crypto.GenerateAccount().Address)
	assert.ErrorIs(t, err, ErrZeroAddress)
}

func TestReentrancyLock(t *testing.T) {
	storage := NewStorage(crypto.GenerateAccount().Address)
	call := &Call{Storage: storage}
	unlock, err := call.Lock()
	require.NoError(t, err)
	_, err = call.Lock()
	assert.ErrorIs(t, err, ErrReentrantCall)
	unlock()
	unlock, err = call.Lock()
	require.NoError(t, err)
	unlock()
}

func TestRouterPersists(t *testing.T) {
	f := newFixture(t)
	store, err := chain.OpenBoltStore(filepath.Join(t.TempDir(), "chain.db"), time.Second)
	require.NoError(t, err)
	defer store.Close()

	// a separate chain w/out the test facets, whose kinds aren't in the catalog
	persisted := chain.New(misc.DiscardLogger())
	cutFacet, err := persisted.Deploy(context.Background(), NewCutFacet())
	require.NoError(t, err)
	router, err := NewRouter(misc.DiscardLogger(), f.owner.From(), cutFacet)
	require.NoError(t, err)
	routerAddr, err := persisted.Deploy(context.Background(), router)
	require.NoError(t, err)
	loupeAddr, err := persisted.Deploy(context.Background(), NewLoupeFacet())
	require.NoError(t, err)
	_, err = NewCutClient(persisted.Session(f.owner.From()), routerAddr).DiamondCut(context.Background(),
		[]FacetCut{CutFor(loupeAddr, NewLoupeFacet())}, types.Address{}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(persisted))

	loaded, err := store.Load(misc.DiscardLogger())
	require.NoError(t, err)
	entries, err := NewLoupeClient(loaded.Session(f.owner.From()), routerAddr).Facets(context.Background())
	require.NoError(t, err)
	want := []FacetEntry{
		{Facet: cutFacet, Selectors: []method.Selector{MethodDiamondCut.Selector()}},
		{Facet: loupeAddr, Selectors: NewLoupeFacet().Selectors()},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("loaded registry mismatch (-want +got):\n%s", diff)
	}
}

func TestInterfaceIDs(t *testing.T) {
	ids := []method.Selector{InterfaceERC165, InterfaceDiamondCut, InterfaceDiamondLoupe, InterfaceERC173}
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			assert.NotEqual(t, ids[i], ids[j])
		}
	}
	assert.Equal(t, MethodSupportsInterface.Selector(), InterfaceERC165)
}

func mustEncode(t *testing.T, m method.Method, args ...any) []byte {
	t.Helper()
	input, err := m.Encode(args...)
	require.NoError(t, err)
	return input
}
