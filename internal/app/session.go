package app

import (
	"sync"

	"permajournal/pkg/domain"
)

// Session is the activated context of one logged-in user: the safe profile
// projection plus the three scoped collections loaded as a unit. All
// lifecycle mutations flow through the App, which owns the read-modify-
// write-then-persist sequence under the session lock.
type Session struct {
	mu       sync.Mutex
	user     domain.Profile
	entries  []domain.JournalEntry
	goals    []domain.Goal
	settings domain.Settings
}

// User returns the safe projection of the session's user.
func (s *Session) User() domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Entries returns the journal sequence, newest first.
func (s *Session) Entries() []domain.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]domain.JournalEntry, len(s.entries))
	copy(res, s.entries)
	return res
}

// Goals returns the goal collection in insertion order.
func (s *Session) Goals() []domain.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]domain.Goal, len(s.goals))
	copy(res, s.goals)
	return res
}

// ActiveGoals returns goals in the active state.
func (s *Session) ActiveGoals() []domain.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Goal
	for _, g := range s.goals {
		if g.Status == domain.GoalActive {
			res = append(res, g)
		}
	}
	return res
}

// Settings returns the committed settings.
func (s *Session) Settings() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}
