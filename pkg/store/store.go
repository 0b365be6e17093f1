package store

import (
	"errors"

	"permajournal/pkg/domain"
)

// ErrWrite wraps persistence failures so callers can distinguish "changes not
// saved" from lookup errors.
var ErrWrite = errors.New("store write failed")

// Store defines persistence for the user directory and the per-user scoped
// collections. Entries, goals and settings are each namespaced by the owning
// user's email; implementations decide the concrete keying.
type Store interface {
	// user directory
	SaveUser(domain.UserRecord) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.UserRecord, bool, error)
	UserCount() (int, error)

	// journal entries, newest-first by insertion order
	AppendEntry(owner string, entry domain.JournalEntry) error
	ListEntries(owner string) ([]domain.JournalEntry, error)

	// goals
	SaveGoal(owner string, goal domain.Goal) error
	SaveGoals(owner string, goals []domain.Goal) error
	GetGoal(owner, id string) (domain.Goal, bool, error)
	ListGoals(owner string) ([]domain.Goal, error)
	DeleteGoal(owner, id string) error

	// settings, one record per user
	GetSettings(owner string) (domain.Settings, bool, error)
	SaveSettings(owner string, settings domain.Settings) error
}

// SessionTokenStore maps bearer tokens to the owning user's email.
type SessionTokenStore interface {
	NewSession(email string) (string, error)
	GetEmailByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
