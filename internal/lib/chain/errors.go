package chain

import "errors"

var (
	ErrNoCode       = errors.New("chain: no contract code at address")
	ErrCallDepth    = errors.New("chain: max call depth exceeded")
	ErrBadSignature = errors.New("chain: call signature invalid")
	ErrBadNonce     = errors.New("chain: call nonce mismatch")
	ErrUnknownKind  = errors.New("chain: unknown contract kind")
)

// RevertReason returns the innermost error of a wrapped chain, following the first error of a multi-wrap.
// For our sentinel errors this is a small, fixed set of strings which is safe to use as a metric label.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	for {
		var next error
		switch wrapped := err.(type) {
		case interface{ Unwrap() error }:
			next = wrapped.Unwrap()
		case interface{ Unwrap() []error }:
			if errs := wrapped.Unwrap(); len(errs) > 0 {
				next = errs[0]
			}
		}
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
