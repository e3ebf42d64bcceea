package storage

import "sync"

// Memory is an in-process KV. The zero value is ready to use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	// FailWrites makes Set return the given error (for tests).
	FailWrites error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get implements KV.
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements KV.
func (m *Memory) Set(key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}
