/*
 * Copyright (c) 2021. TxnLab Inc.
 * All Rights reserved.
 */

package signer

import (
	"context"
	"fmt"

	"golang.org/x/crypto/ed25519"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
)

type CallSigner interface {
	// SignCall returns call w/ its signature set.
	SignCall(ctx context.Context, call chain.SignedCall) (chain.SignedCall, error)
}

type MultipleWalletSigner interface {
	HasAccount(address types.Address) bool
	Accounts() []types.Address
	SignWithAccount(ctx context.Context, call chain.SignedCall, address types.Address) (chain.SignedCall, error)
}

func SignWithKey(privateKey ed25519.PrivateKey) CallSigner {
	return &skSigner{sk: privateKey}
}

// SignWithAccount signs using the key manager's key for address.
func SignWithAccount(keyManager MultipleWalletSigner, address types.Address) CallSigner {
	return &walletSigner{keyManager: keyManager, address: address}
}

type skSigner struct {
	sk ed25519.PrivateKey
}

func (s *skSigner) SignCall(_ context.Context, call chain.SignedCall) (chain.SignedCall, error) {
	return signCall(s.sk, call)
}

type walletSigner struct {
	keyManager MultipleWalletSigner
	address    types.Address
}

func (w *walletSigner) SignCall(ctx context.Context, call chain.SignedCall) (chain.SignedCall, error) {
	if call.From != w.address {
		return chain.SignedCall{}, fmt.Errorf("%w: call from %s, signer %s", ErrWrongAccount, call.From, w.address)
	}
	return w.keyManager.SignWithAccount(ctx, call, w.address)
}

func signCall(sk ed25519.PrivateKey, call chain.SignedCall) (chain.SignedCall, error) {
	sig, err := crypto.SignBytes(sk, call.SigningBytes())
	if err != nil {
		return chain.SignedCall{}, fmt.Errorf("signing call from %s: %w", call.From, err)
	}
	call.Signature = sig
	return call, nil
}
