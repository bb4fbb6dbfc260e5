/*
 * Copyright (c) 2022. TxnLab Inc.
 * All Rights reserved.
 */

package signer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"golang.org/x/crypto/ed25519"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/chain"
	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
)

// MnemonicEnvPrefix starts the name of every environment variable holding an account mnemonic.
const MnemonicEnvPrefix = "FARM_MNEMONIC"

// NewLocalKeyStore returns a key store holding every account whose mnemonic is set in a FARM_MNEMONIC*
// environment variable (which can come from .env files as well).
func NewLocalKeyStore(log *slog.Logger) (MultipleWalletSigner, error) {
	keyStore := &localKeyStore{
		log:  log,
		keys: map[types.Address]ed25519.PrivateKey{},
	}
	if err := keyStore.loadFromEnvironment(); err != nil {
		return nil, err
	}
	return keyStore, nil
}

type localKeyStore struct {
	log *slog.Logger

	keys map[types.Address]ed25519.PrivateKey
}

func (lk *localKeyStore) HasAccount(address types.Address) bool {
	_, found := lk.keys[address]
	return found
}

func (lk *localKeyStore) Accounts() []types.Address {
	accounts := make([]types.Address, 0, len(lk.keys))
	for addr := range lk.keys {
		accounts = append(accounts, addr)
	}
	slices.SortFunc(accounts, func(a, b types.Address) int { return strings.Compare(a.String(), b.String()) })
	return accounts
}

func (lk *localKeyStore) SignWithAccount(_ context.Context, call chain.SignedCall, address types.Address) (chain.SignedCall, error) {
	key, found := lk.keys[address]
	if !found {
		return chain.SignedCall{}, fmt.Errorf("%w: %s", ErrKeyNotFound, address)
	}
	return signCall(key, call)
}

// loadFromEnvironment adds the key of every FARM_MNEMONIC* environment variable, logging the number loaded and
// the address of each.
func (lk *localKeyStore) loadFromEnvironment() error {
	var numMnemonics int
	for _, envVal := range os.Environ() {
		if !strings.HasPrefix(envVal, MnemonicEnvPrefix) {
			continue
		}
		key := envVal[0:strings.IndexByte(envVal, '=')]
		envMnemonic := os.Getenv(key)
		if envMnemonic == "" {
			continue
		}
		if err := lk.addMnemonic(envMnemonic); err != nil {
			return fmt.Errorf("loading mnemonic from %s: %w", key, err)
		}
		numMnemonics++
	}
	misc.Infof(lk.log, "loaded %d mnemonics", numMnemonics)
	return nil
}

func (lk *localKeyStore) addMnemonic(mnemonicPhrase string) error {
	key, err := mnemonic.ToPrivateKey(mnemonicPhrase)
	if err != nil {
		return fmt.Errorf("failed to add mnemonic: %w", err)
	}
	account, err := crypto.AccountFromPrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to add mnemonic: %w", err)
	}
	lk.keys[account.Address] = key
	misc.Debugf(lk.log, "added key for account:%s", account.Address)
	return nil
}

// NewAccount generates a fresh account, returning its address and mnemonic.
func NewAccount() (types.Address, string, error) {
	account := crypto.GenerateAccount()
	phrase, err := mnemonic.FromPrivateKey(account.PrivateKey)
	if err != nil {
		return types.Address{}, "", fmt.Errorf("encoding mnemonic: %w", err)
	}
	return account.Address, phrase, nil
}
