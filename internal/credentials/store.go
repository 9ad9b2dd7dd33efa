// Package credentials provides a two-tier token cache: an in-memory map in
// front of a persistent secure store.
package credentials

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultID is the identifier used when a caller does not namespace tokens.
const DefaultID = "default"

// Kind is the kind of token being stored.
type Kind int

const (
	Access Kind = iota
	Refresh
)

func (k Kind) String() string {
	switch k {
	case Access:
		return "access_token"
	case Refresh:
		return "refresh_token"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StoreError describes a failed persistent-tier operation.
type StoreError struct {
	Operation string
	ID        string
	Kind      Kind
	Cause     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("credentials %s %s for %q: %v", e.Operation, e.Kind, e.ID, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

type entry struct {
	kind Kind
	id   string
}

// Store caches tokens in memory and persists them to a SecureStore.
// Memory is a cache of the persistent tier: writes reach the persistent
// tier first and reads backfill memory on a persistent hit.
type Store struct {
	mu     sync.RWMutex
	memory map[entry]string
	secure SecureStore
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store backed by secure. A nil secure store keeps tokens in
// memory only.
func New(secure SecureStore, opts ...Option) *Store {
	s := &Store{
		memory: make(map[entry]string),
		secure: secure,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PersistentKey returns the key a token is filed under in the secure store.
func PersistentKey(kind Kind, id string) string {
	return normalizeID(id) + ":" + kind.String()
}

func normalizeID(id string) string {
	if id == "" {
		return DefaultID
	}
	return id
}

// Get returns the token for (kind, id). Persistent-tier errors are logged
// and reported as absent.
func (s *Store) Get(kind Kind, id string) (string, bool) {
	e := entry{kind: kind, id: normalizeID(id)}

	s.mu.RLock()
	v, ok := s.memory[e]
	s.mu.RUnlock()
	if ok {
		return v, true
	}
	if s.secure == nil {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have filled memory while we waited.
	if v, ok := s.memory[e]; ok {
		return v, true
	}

	v, err := s.secure.Get(PersistentKey(kind, e.id))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("credential read failed", "kind", kind.String(), "id", e.id, "error", err)
		}
		return "", false
	}
	s.memory[e] = v
	return v, true
}

// Set stores a token. The persistent tier is written first; if that fails
// the memory entry is evicted so the token reads as absent, and the error
// is returned.
func (s *Store) Set(kind Kind, id, value string) error {
	e := entry{kind: kind, id: normalizeID(id)}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.secure != nil {
		if err := s.secure.Set(PersistentKey(kind, e.id), value); err != nil {
			delete(s.memory, e)
			s.logger.Warn("credential write failed", "kind", kind.String(), "id", e.id, "error", err)
			return &StoreError{Operation: "set", ID: e.id, Kind: kind, Cause: err}
		}
	}
	s.memory[e] = value
	return nil
}

// Remove clears both token kinds for id from both tiers.
func (s *Store) Remove(id string) error {
	id = normalizeID(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, kind := range []Kind{Access, Refresh} {
		delete(s.memory, entry{kind: kind, id: id})
		if s.secure == nil {
			continue
		}
		if err := s.secure.Delete(PersistentKey(kind, id)); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, &StoreError{Operation: "delete", ID: id, Kind: kind, Cause: err})
		}
	}
	return errors.Join(errs...)
}

// RemoveAll clears every token from both tiers.
func (s *Store) RemoveAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.memory)
	if s.secure == nil {
		return nil
	}
	if err := s.secure.DeleteAll(); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("credentials delete all: %w", err)
	}
	return nil
}

