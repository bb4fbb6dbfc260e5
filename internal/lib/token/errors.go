package token

import "errors"

var (
	ErrUnauthorized          = errors.New("token: caller is not the owner")
	ErrZeroAddress           = errors.New("token: zero address")
	ErrInsufficientBalance   = errors.New("token: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrOverflow              = errors.New("token: amount overflows")
	ErrUnknownMethod         = errors.New("token: unknown method")
	ErrBadAmount             = errors.New("token: malformed amount")
)
