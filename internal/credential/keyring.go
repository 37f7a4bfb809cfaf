package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "patient-portal"

// tokenKey is the single well-known slot holding the gateway bearer token.
// The value is opaque; no versioning or migration applies.
const tokenKey = "gateway-token"

// ErrNotFound is returned by Load when no credential is stored.
var ErrNotFound = errors.New("no stored credential")

// Store is the durable, process-wide holder of the gateway bearer token.
// Save and Clear are the only mutators; Load is side-effect-free.
type Store interface {
	Save(token string) error
	Load() (string, error)
	Clear() error
}

// Keyring stores the token in the system keyring, falling back to an
// encrypted file backend where no native keychain is available.
type Keyring struct{}

var _ Store = (*Keyring)(nil)

// NewKeyring returns a keyring-backed credential store.
func NewKeyring() *Keyring {
	return &Keyring{}
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/patient-portal/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("patient-portal-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Save overwrites the stored token. At most one credential exists at a time.
func (k *Keyring) Save(token string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  tokenKey,
		Data: []byte(token),
	})
	if err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}

	return nil
}

// Load retrieves the stored token, or ErrNotFound when the slot is empty.
func (k *Keyring) Load() (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(tokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("loading credential: %w", err)
	}

	return string(item.Data), nil
}

// Clear removes the stored token. Clearing an empty slot is a no-op.
func (k *Keyring) Clear() error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(tokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("clearing credential: %w", err)
	}

	return nil
}
