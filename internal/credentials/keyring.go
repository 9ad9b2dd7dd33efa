package credentials

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keyring service name tokens are filed under.
const DefaultService = "netkit"

// ErrNotFound is returned by a SecureStore when no secret exists for a key.
var ErrNotFound = errors.New("secret not found")

// ErrUnavailable is returned when the OS keyring cannot be used.
var ErrUnavailable = errors.New("system keyring unavailable")

// SecureStore is the persistent tier of the credential store.
type SecureStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	DeleteAll() error
}

// KeyringStore keeps secrets in the OS keyring (macOS Keychain, Windows
// Credential Manager, or Secret Service on Linux).
type KeyringStore struct {
	service  string
	disabled bool
}

// NewKeyringStore returns a keyring-backed store for service. When
// NETKIT_NO_KEYRING is set every operation fails with ErrUnavailable.
// There is no plaintext fallback.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultService
	}
	return &KeyringStore{
		service:  service,
		disabled: os.Getenv("NETKIT_NO_KEYRING") != "",
	}
}

// Service returns the keyring service name.
func (s *KeyringStore) Service() string {
	return s.service
}

// Available probes the keyring by writing and removing a test entry.
func (s *KeyringStore) Available() bool {
	if s.disabled {
		return false
	}
	probe := s.service + "::probe"
	if err := keyring.Set(s.service, probe, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(s.service, probe) // Best-effort cleanup
	return true
}

func (s *KeyringStore) Get(key string) (string, error) {
	if s.disabled {
		return "", ErrUnavailable
	}
	v, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %s: %w", key, err)
	}
	return v, nil
}

func (s *KeyringStore) Set(key, value string) error {
	if s.disabled {
		return ErrUnavailable
	}
	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}
	return nil
}

func (s *KeyringStore) Delete(key string) error {
	if s.disabled {
		return ErrUnavailable
	}
	err := keyring.Delete(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func (s *KeyringStore) DeleteAll() error {
	if s.disabled {
		return ErrUnavailable
	}
	return keyring.DeleteAll(s.service)
}
