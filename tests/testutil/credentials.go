package testutil

import (
	"sync"

	"github.com/nhle/patient-portal/internal/credential"
)

// MemoryCredentials is an in-memory credential.Store for tests.
type MemoryCredentials struct {
	mu    sync.Mutex
	token string
	set   bool
}

var _ credential.Store = (*MemoryCredentials)(nil)

// NewMemoryCredentials returns an empty in-memory credential store.
func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{}
}

// Save overwrites the stored token.
func (m *MemoryCredentials) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.set = true
	return nil
}

// Load returns the stored token or credential.ErrNotFound.
func (m *MemoryCredentials) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return "", credential.ErrNotFound
	}
	return m.token, nil
}

// Clear empties the slot; clearing an empty slot is a no-op.
func (m *MemoryCredentials) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.set = false
	return nil
}

// Has reports whether a token is currently stored.
func (m *MemoryCredentials) Has() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set
}
