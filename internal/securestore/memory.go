package securestore

import "sync"

// Memory is an in-process implementation of core.SecretStore. It backs tests
// and headless environments without an OS keychain.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemory creates an empty in-memory secret store.
func NewMemory() *Memory {
	return &Memory{
		mu:      sync.Mutex{},
		entries: make(map[string][]byte),
	}
}

// Put stores value under key, replacing any existing entry.
func (m *Memory) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = stored

	return nil
}

// Get retrieves the value stored under key.
func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}

	out := make([]byte, len(value))
	copy(out, value)

	return out, true, nil
}
