package preference

import (
	"sync"

	"github.com/Zachkp/portfolio/internal/apperr"
)

// Memory keeps preferences in process memory. Used when no database path is
// configured and in tests.
type Memory struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]map[string]string)}
}

func (m *Memory) Get(sessionID, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[sessionID][key]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(sessionID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[sessionID] == nil {
		m.values[sessionID] = make(map[string]string)
	}
	m.values[sessionID][key] = value
	return nil
}

func (m *Memory) Forget(sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.values[sessionID]))
	delete(m.values, sessionID)
	return n, nil
}

// Scoped binds a Store to one session. It satisfies viewstate.PreferenceStore.
type Scoped struct {
	store     Store
	sessionID string
}

// Scope returns the preferences of sessionID.
func Scope(store Store, sessionID string) Scoped {
	return Scoped{store: store, sessionID: sessionID}
}

func (s Scoped) Get(key string) (string, error) {
	return s.store.Get(s.sessionID, key)
}

func (s Scoped) Set(key, value string) error {
	return s.store.Set(s.sessionID, key, value)
}
