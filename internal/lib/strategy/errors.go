package strategy

import "errors"

var (
	ErrNotFarm            = errors.New("strategy: caller is not the farm")
	ErrPaused             = errors.New("strategy: paused")
	ErrInvalidAmount      = errors.New("strategy: amount must be greater than zero")
	ErrInsufficientShares = errors.New("strategy: redeem exceeds total shares")
	ErrInvalidFee         = errors.New("strategy: entrance fee factor out of range")
)
