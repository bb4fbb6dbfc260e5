package farm

import "errors"

var (
	ErrPoolNotFound       = errors.New("farm: pool not found")
	ErrInsufficientShares = errors.New("farm: withdraw exceeds held shares")
	ErrInvalidAmount      = errors.New("farm: amount must be greater than zero")
	ErrZeroAddress        = errors.New("farm: zero address")
	ErrStrategyMismatch   = errors.New("farm: strategy result differs from preview")
	ErrRewardToken        = errors.New("farm: can't move the reward token")
	ErrCustodyFunds       = errors.New("farm: can't move tokens staked in the farm")
	ErrNoStrategyCode     = errors.New("farm: no strategy code at address")
)
