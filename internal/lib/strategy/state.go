package strategy

import (
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"

	"github.com/TxnLab/autofarm-diamond/internal/lib/diamond"
)

const (
	// Namespace names the strategy's tables in router storage.
	Namespace = "stratx2"

	EntranceFeeFactorMax = 10000
	// EntranceFeeFactorLL is the lowest allowed factor - a 0.5% fee.
	EntranceFeeFactorLL = 9950
)

// State is the strategy's namespace in router storage. Fields are exported for gob persistence.
type State struct {
	Farm              types.Address
	Want              types.Address
	WantLockedTotal   uint256.Int
	SharesTotal       uint256.Int
	EntranceFeeFactor uint64
	Paused            bool
}

func newState() *State {
	return &State{EntranceFeeFactor: EntranceFeeFactorMax}
}

func (s *State) Clone() diamond.Namespace {
	clone := *s
	return &clone
}

// previewDeposit is the shares minted for want. The first deposit mints 1:1, later ones are proportional to
// the existing shares less the entrance fee.
func (s *State) previewDeposit(want *uint256.Int) *uint256.Int {
	if s.SharesTotal.IsZero() || s.WantLockedTotal.IsZero() {
		return want.Clone()
	}
	shares, _ := new(uint256.Int).MulDivOverflow(want, &s.SharesTotal, &s.WantLockedTotal)
	shares, _ = shares.MulDivOverflow(shares, uint256.NewInt(s.EntranceFeeFactor), uint256.NewInt(EntranceFeeFactorMax))
	return shares
}

// previewRedeem is the want returned for burning shares.
func (s *State) previewRedeem(shares *uint256.Int) *uint256.Int {
	if s.SharesTotal.IsZero() {
		return new(uint256.Int)
	}
	want, _ := new(uint256.Int).MulDivOverflow(shares, &s.WantLockedTotal, &s.SharesTotal)
	return want
}

// StateOf returns the strategy tables of a router's storage, creating them w/ defaults on first use.
func StateOf(storage *diamond.Storage) *State {
	return diamond.Load(storage, Namespace, newState)
}

// Initialize binds the strategy to the farm router allowed to call it and the token it holds. Run through a
// cut's init call.
func Initialize(storage *diamond.Storage, farm, want types.Address) *State {
	state := StateOf(storage)
	state.Farm = farm
	state.Want = want
	return state
}

func init() {
	diamond.RegisterNamespace(&State{})
}
