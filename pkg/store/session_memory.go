package store

import (
	"sync"
	"time"

	"permajournal/internal/util"
)

// MemorySessionStore keeps token -> email mappings in-process with TTL.
type MemorySessionStore struct {
	mu   sync.RWMutex
	sess map[string]memorySession
	ttl  time.Duration
}

type memorySession struct {
	email     string
	expiresAt time.Time
}

// NewMemorySessionStore builds an in-process session token store. A zero TTL
// means tokens never expire.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{sess: make(map[string]memorySession), ttl: ttl}
}

// NewSession issues a token for the email.
func (s *MemorySessionStore) NewSession(email string) (string, error) {
	token := util.NewToken()
	var expires time.Time
	if s.ttl > 0 {
		expires = time.Now().Add(s.ttl)
	}
	s.mu.Lock()
	s.sess[token] = memorySession{email: email, expiresAt: expires}
	s.mu.Unlock()
	return token, nil
}

// GetEmailByToken resolves a token to the owning email.
func (s *MemorySessionStore) GetEmailByToken(token string) (string, bool, error) {
	s.mu.RLock()
	entry, ok := s.sess[token]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sess, token)
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.email, true, nil
}

// DeleteSession removes a token mapping.
func (s *MemorySessionStore) DeleteSession(token string) error {
	s.mu.Lock()
	delete(s.sess, token)
	s.mu.Unlock()
	return nil
}
