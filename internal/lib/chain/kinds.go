package chain

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sync"
)

var (
	kindsMu sync.RWMutex
	kinds   = map[string]func() Contract{}
)

// RegisterKind adds a contract factory to the catalog used when loading persisted chains. Packages register
// their contract kinds from init().
func RegisterKind(kind string, factory func() Contract) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	if _, exists := kinds[kind]; exists {
		panic(fmt.Sprintf("contract kind '%s' already registered", kind))
	}
	slog.Debug("Registering contract kind.", "kind", kind)
	kinds[kind] = factory
}

func newOfKind(kind string) (Contract, error) {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	factory, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return factory(), nil
}

// EncodeGob serializes contract state using gob encoding.
func EncodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeGob deserializes gob-encoded contract state.
func DecodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
