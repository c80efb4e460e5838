package credentials

import "sync"

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. Values do not survive a restart; it suits
// tests and short-lived tools.
type Memory struct {
	mu     sync.RWMutex
	values map[Key]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[Key]string)}
}

func (m *Memory) Get(key Key) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Set(key Key, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return true
}

func (m *Memory) Delete(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return true
}

func (m *Memory) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[Key]string)
}
