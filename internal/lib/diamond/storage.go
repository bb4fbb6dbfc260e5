package diamond

import (
	"encoding/gob"
	"maps"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/TxnLab/autofarm-diamond/internal/lib/method"
)

// Namespace is a facet's own slice of router storage, kept under a fixed name so facets added by different
// cuts never collide.
type Namespace interface {
	// Clone returns a deep copy.
	Clone() Namespace
}

// RegisterNamespace makes a namespace type persistable. Call from init() of the package defining it.
func RegisterNamespace(ns Namespace) {
	gob.Register(ns)
}

// Storage is the router's persistent state. Every facet executes against the Storage of the router that
// delegated to it, never against any state of its own.
type Storage struct {
	Registry   *Registry
	Owner      types.Address
	Interfaces map[method.Selector]bool
	Locked     bool
	Namespaces map[string]Namespace
}

func NewStorage(owner types.Address) *Storage {
	return &Storage{
		Registry:   NewRegistry(),
		Owner:      owner,
		Interfaces: map[method.Selector]bool{},
		Namespaces: map[string]Namespace{},
	}
}

func (s *Storage) Clone() *Storage {
	clone := &Storage{
		Registry:   s.Registry.Clone(),
		Owner:      s.Owner,
		Interfaces: maps.Clone(s.Interfaces),
		Locked:     s.Locked,
		Namespaces: make(map[string]Namespace, len(s.Namespaces)),
	}
	if clone.Interfaces == nil {
		clone.Interfaces = map[method.Selector]bool{}
	}
	for name, ns := range s.Namespaces {
		clone.Namespaces[name] = ns.Clone()
	}
	return clone
}

// Load returns the namespace stored under name, creating it with create on first use.
func Load[T Namespace](s *Storage, name string, create func() T) T {
	if ns, ok := s.Namespaces[name].(T); ok {
		return ns
	}
	ns := create()
	s.Namespaces[name] = ns
	return ns
}

// Peek returns the namespace stored under name without creating it.
func Peek[T Namespace](s *Storage, name string) (T, bool) {
	ns, ok := s.Namespaces[name].(T)
	return ns, ok
}
