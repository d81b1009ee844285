// Package securestore provides implementations of the core.SecretStore
// capability backed by the operating system keychain.
//
// Keychain entries survive ordinary application data resets, which is what
// makes them suitable for the credit balance mirror and the welcome-grant
// flag: clearing preferences or reinstalling does not clear them.
package securestore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// ErrServiceEmpty indicates the keyring service name is empty.
var ErrServiceEmpty = errors.New("service name cannot be empty")

// Keyring implements core.SecretStore on top of the OS keychain. Keys are
// scoped by a stable service name so that entries from different
// installations of the service do not collide.
type Keyring struct {
	service string
}

// NewKeyring creates a keychain-backed secret store scoped to the given
// service name.
func NewKeyring(service string) (*Keyring, error) {
	if service == "" {
		return nil, ErrServiceEmpty
	}

	return &Keyring{service: service}, nil
}

// Put stores value under key, replacing any existing entry.
func (k *Keyring) Put(key string, value []byte) error {
	err := keyring.Set(k.service, key, string(value))
	if err != nil {
		return fmt.Errorf("failed to write keychain entry '%s': %w", key, err)
	}

	return nil
}

// Get retrieves the value stored under key. A missing key is not an error;
// it is reported through the boolean so callers can rely on key existence
// as a truth value.
func (k *Keyring) Get(key string) ([]byte, bool, error) {
	value, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to read keychain entry '%s': %w", key, err)
	}

	return []byte(value), true, nil
}
