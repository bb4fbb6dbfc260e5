package diamond

import (
	"errors"
	"fmt"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
)

var (
	ErrUnauthorized      = errors.New("diamond: caller is not the owner")
	ErrSelectorNotFound  = errors.New("diamond: function does not exist")
	ErrDuplicateSelector = errors.New("diamond: can't add function that already exists")
	ErrInvalidCutAction  = errors.New("diamond: invalid cut action")
	ErrZeroAddress       = errors.New("diamond: zero address")
	ErrInitFailed        = errors.New("diamond: init function reverted")
	ErrNoStorage         = errors.New("diamond: facet must be called through a router")
	ErrReentrantCall     = errors.New("diamond: reentrant call")

	// ErrNoCode is the chain's error, re-exported so facet callers need only this package.
	ErrNoCode = chain.ErrNoCode

	ErrImmutableFunction = fmt.Errorf("%w: can't change immutable function", ErrInvalidCutAction)
)
