package signer

import "errors"

var (
	ErrKeyNotFound  = errors.New("signer: no key for account")
	ErrWrongAccount = errors.New("signer: call is not from the signing account")
)
