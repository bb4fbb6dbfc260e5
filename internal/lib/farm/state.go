package farm

import (
	"maps"
	"slices"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/holiman/uint256"

	"github.com/TxnLab/autofarm-diamond/internal/lib/diamond"
)

const (
	// Namespace names the farm's tables in router storage.
	Namespace = "autofarm.v2"

	DefaultOwnerRewardPerMille = 138
)

var (
	// accumulated reward per share is scaled by 1e12
	accPrecision = uint256.NewInt(1e12)

	// DefaultRewardMaxSupply is 80,000 reward tokens (18 decimals).
	DefaultRewardMaxSupply = new(uint256.Int).Mul(uint256.NewInt(80_000), uint256.NewInt(1e18))
)

// Pool is one stakeable token slot. Pools are never removed - a pool's index is its id.
type Pool struct {
	Want              types.Address
	AllocPoint        uint256.Int
	LastRewardBlock   uint64
	AccRewardPerShare uint256.Int
	// Strat is the companion router running the strategy facet, or zero for pools the ledger holds itself.
	Strat types.Address

	// SharesTotal is the sum of every position's shares.
	SharesTotal uint256.Int
}

type PositionKey struct {
	Pool uint64
	User types.Address
}

type Position struct {
	Shares     uint256.Int
	RewardDebt uint256.Int
}

// State is the farm's namespace in router storage. Fields are exported for gob persistence.
type State struct {
	RewardToken         types.Address
	RewardPerBlock      uint256.Int
	OwnerRewardPerMille uint64
	RewardMaxSupply     uint256.Int
	StartBlock          uint64
	TotalAllocPoint     uint256.Int
	Pools               []Pool
	Positions           map[PositionKey]Position
}

func newState() *State {
	return &State{
		OwnerRewardPerMille: DefaultOwnerRewardPerMille,
		RewardMaxSupply:     *DefaultRewardMaxSupply,
		Positions:           map[PositionKey]Position{},
	}
}

func (s *State) Clone() diamond.Namespace {
	clone := *s
	clone.Pools = slices.Clone(s.Pools)
	clone.Positions = maps.Clone(s.Positions)
	if clone.Positions == nil {
		clone.Positions = map[PositionKey]Position{}
	}
	return &clone
}

func (s *State) pool(pid uint64) (*Pool, error) {
	if pid >= uint64(len(s.Pools)) {
		return nil, poolNotFound(pid)
	}
	return &s.Pools[pid], nil
}

func (s *State) position(pid uint64, user types.Address) Position {
	return s.Positions[PositionKey{Pool: pid, User: user}]
}

func (s *State) setPosition(pid uint64, user types.Address, pos Position) {
	if s.Positions == nil {
		s.Positions = map[PositionKey]Position{}
	}
	s.Positions[PositionKey{Pool: pid, User: user}] = pos
}

// StateOf returns the farm tables of a router's storage, creating them w/ defaults on first use.
func StateOf(storage *diamond.Storage) *State {
	return diamond.Load(storage, Namespace, newState)
}

// Initialize sets the reward token and default reward parameters. Run through a cut's init call.
func Initialize(storage *diamond.Storage, rewardToken types.Address) *State {
	state := StateOf(storage)
	state.RewardToken = rewardToken
	state.OwnerRewardPerMille = DefaultOwnerRewardPerMille
	state.RewardMaxSupply = *DefaultRewardMaxSupply
	state.RewardPerBlock.Clear()
	return state
}

func init() {
	diamond.RegisterNamespace(&State{})
}

// custodyOwed is how much of tok the ledger holds for stakers of pools w/out a strategy.
func (s *State) custodyOwed(tok types.Address) *uint256.Int {
	owed := new(uint256.Int)
	for i := range s.Pools {
		if s.Pools[i].Strat.IsZero() && s.Pools[i].Want == tok {
			owed.Add(owed, &s.Pools[i].SharesTotal)
		}
	}
	return owed
}
