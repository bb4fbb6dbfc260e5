package chain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"go.etcd.io/bbolt"
)

var (
	bucketAccounts = []byte("accounts")
	bucketNonces   = []byte("nonces")
	bucketMeta     = []byte("meta")

	keyHeight    = []byte("height")
	keyNextAppID = []byte("next_app_id")
)

// ErrEmptyStore is returned by Load when nothing has been saved yet.
var ErrEmptyStore = errors.New("chain: store has no saved chain")

type accountRecord struct {
	Kind  string
	State []byte
}

// BoltStore persists a Chain in a bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens or creates the database at dbPath. bbolt only allows a single process to hold the
// file, so opening fails w/ bbolt's timeout error if another process has it open for longer than timeout.
func OpenBoltStore(dbPath string, timeout time.Duration) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("chain: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("chain: open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAccounts, bucketNonces, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("chain: create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

// Save writes every account, nonce and the chain metadata in a single bbolt transaction. Accounts no
// longer present in the chain are not removed - contracts are never destroyed.
func (s *BoltStore) Save(c *Chain) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		accounts := tx.Bucket(bucketAccounts)
		for addr, contract := range c.accounts {
			rec := accountRecord{Kind: contract.Kind()}
			if stateful, ok := contract.(Stateful); ok {
				state, err := stateful.MarshalState()
				if err != nil {
					return fmt.Errorf("boltstore: marshal state of %s: %w", addr, err)
				}
				rec.State = state
			}
			data, err := EncodeGob(rec)
			if err != nil {
				return fmt.Errorf("boltstore: encode account %s: %w", addr, err)
			}
			if err := accounts.Put(addr[:], data); err != nil {
				return fmt.Errorf("boltstore: put account %s: %w", addr, err)
			}
		}
		nonces := tx.Bucket(bucketNonces)
		for addr, nonce := range c.nonces {
			if err := nonces.Put(addr[:], uint64Bytes(nonce)); err != nil {
				return fmt.Errorf("boltstore: put nonce %s: %w", addr, err)
			}
		}
		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(keyHeight, uint64Bytes(c.height)); err != nil {
			return fmt.Errorf("boltstore: put height: %w", err)
		}
		if err := meta.Put(keyNextAppID, uint64Bytes(c.nextAppID)); err != nil {
			return fmt.Errorf("boltstore: put next app id: %w", err)
		}
		return nil
	})
}

// Load rebuilds a chain from the store, re-creating each contract from the kind catalog.
func (s *BoltStore) Load(logger *slog.Logger) (*Chain, error) {
	c := New(logger)
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		nextID := meta.Get(keyNextAppID)
		if nextID == nil {
			return ErrEmptyStore
		}
		c.nextAppID = binary.BigEndian.Uint64(nextID)
		if height := meta.Get(keyHeight); height != nil {
			c.height = binary.BigEndian.Uint64(height)
		}
		err := tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			var (
				addr types.Address
				rec  accountRecord
			)
			copy(addr[:], k)
			if err := DecodeGob(v, &rec); err != nil {
				return fmt.Errorf("boltstore: decode account %s: %w", addr, err)
			}
			contract, err := newOfKind(rec.Kind)
			if err != nil {
				return err
			}
			if stateful, ok := contract.(Stateful); ok {
				if err := stateful.UnmarshalState(rec.State); err != nil {
					return fmt.Errorf("boltstore: unmarshal state of %s: %w", addr, err)
				}
			}
			c.accounts[addr] = contract
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketNonces).ForEach(func(k, v []byte) error {
			var addr types.Address
			copy(addr[:], k)
			c.nonces[addr] = binary.BigEndian.Uint64(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	promHeight.Set(float64(c.height))
	return c, nil
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
