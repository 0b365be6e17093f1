package store

import (
	"sync"

	"permajournal/pkg/domain"
)

// MemoryStore keeps the directory and scoped collections in-process. It is
// the default backend when no database is configured and the double used by
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.UserRecord    // email -> record
	entries  map[string][]domain.JournalEntry // owner -> newest-first
	goals    map[string][]domain.Goal         // owner -> insertion order
	settings map[string]domain.Settings
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.UserRecord),
		entries:  make(map[string][]domain.JournalEntry),
		goals:    make(map[string][]domain.Goal),
		settings: make(map[string]domain.Settings),
	}
}

// SaveUser registers or replaces a directory record.
func (m *MemoryStore) SaveUser(u domain.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Email] = u
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[email]
	return ok, nil
}

// GetUserByEmail looks up a directory record.
func (m *MemoryStore) GetUserByEmail(email string) (domain.UserRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	return u, ok, nil
}

// UserCount returns number of registered users.
func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// AppendEntry prepends an entry to the owner's sequence.
func (m *MemoryStore) AppendEntry(owner string, entry domain.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[owner] = append([]domain.JournalEntry{entry}, m.entries[owner]...)
	return nil
}

// ListEntries returns the owner's entries, newest insertion first.
func (m *MemoryStore) ListEntries(owner string) ([]domain.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.JournalEntry, len(m.entries[owner]))
	copy(res, m.entries[owner])
	return res, nil
}

// SaveGoal stores or replaces one goal.
func (m *MemoryStore) SaveGoal(owner string, goal domain.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.goals[owner]
	for i, g := range list {
		if g.ID == goal.ID {
			list[i] = goal
			return nil
		}
	}
	m.goals[owner] = append(list, goal)
	return nil
}

// SaveGoals stores a batch of goals.
func (m *MemoryStore) SaveGoals(owner string, goals []domain.Goal) error {
	for _, g := range goals {
		if err := m.SaveGoal(owner, g); err != nil {
			return err
		}
	}
	return nil
}

// GetGoal retrieves one goal scoped to the owner.
func (m *MemoryStore) GetGoal(owner, id string) (domain.Goal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.goals[owner] {
		if g.ID == id {
			return g, true, nil
		}
	}
	return domain.Goal{}, false, nil
}

// ListGoals returns the owner's goals in insertion order.
func (m *MemoryStore) ListGoals(owner string) ([]domain.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Goal, len(m.goals[owner]))
	copy(res, m.goals[owner])
	return res, nil
}

// DeleteGoal removes a goal by id.
func (m *MemoryStore) DeleteGoal(owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.goals[owner]
	filtered := list[:0]
	for _, g := range list {
		if g.ID != id {
			filtered = append(filtered, g)
		}
	}
	m.goals[owner] = filtered
	return nil
}

// GetSettings returns the owner's settings record when present.
func (m *MemoryStore) GetSettings(owner string) (domain.Settings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[owner]
	return s, ok, nil
}

// SaveSettings replaces the owner's settings record.
func (m *MemoryStore) SaveSettings(owner string, settings domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[owner] = settings
	return nil
}
