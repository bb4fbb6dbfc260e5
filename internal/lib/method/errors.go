package method

import "errors"

var (
	ErrInvalidSignature = errors.New("method: invalid signature")
	ErrInvalidPayload   = errors.New("method: invalid payload")
)
