package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"permajournal/pkg/auth"
	"permajournal/pkg/domain"
	"permajournal/pkg/storage"
	"permajournal/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL     string
	SessionStrategy string // memory | redis | jwt
	SessionTTL      time.Duration
	RedisAddr       string
	RedisPassword   string
	JWTSecret       string

	Store      store.Store
	Tokens     store.SessionTokenStore
	Recordings storage.RecordingStore

	// OnThemeChange is invoked whenever committed settings load or change,
	// with true when the dark theme is active.
	OnThemeChange func(dark bool)
}

// App is the session manager: it authenticates against the user directory,
// owns the activated session contexts and routes every lifecycle mutation
// through a read-modify-write-then-persist sequence.
type App struct {
	store         store.Store
	tokens        store.SessionTokenStore
	recordings    storage.RecordingStore
	onThemeChange func(bool)

	mu     sync.Mutex
	active map[string]*Session // email -> activated session context
}

// New constructs the application with storage and session management.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			dataStore = store.NewMemoryStore()
		} else {
			var err error
			dataStore, err = store.NewGormStore(cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("init postgres store: %w", err)
			}
		}
	}

	tokenStore := cfg.Tokens
	if tokenStore == nil {
		switch cfg.SessionStrategy {
		case "redis":
			if strings.TrimSpace(cfg.RedisAddr) == "" {
				return nil, fmt.Errorf("redisAddr is required for redis session strategy")
			}
			tokenStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		case "jwt":
			var err error
			tokenStore, err = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL)
			if err != nil {
				return nil, fmt.Errorf("init jwt session store: %w", err)
			}
		default:
			tokenStore = store.NewMemorySessionStore(cfg.SessionTTL)
		}
	}

	onTheme := cfg.OnThemeChange
	if onTheme == nil {
		onTheme = func(bool) {}
	}

	return &App{
		store:         dataStore,
		tokens:        tokenStore,
		recordings:    cfg.Recordings,
		onThemeChange: onTheme,
		active:        make(map[string]*Session),
	}, nil
}

// Login matches credentials against the user directory. On success the
// session context is activated and a bearer token issued; on failure nothing
// changes.
func (a *App) Login(email, password string) (*Session, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}
	record, found, err := a.store.GetUserByEmail(email)
	if err != nil {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}
	if !found || !auth.CheckPassword(password, record.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}
	sess, err := a.activateSession(record)
	if err != nil {
		return nil, "", err
	}
	token, err := a.tokens.NewSession(email)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}
	return sess, token, nil
}

// Register appends a new directory record with onboarding incomplete and
// activates an empty session. Fails when the email already exists.
func (a *App) Register(username, email, password string) (*Session, string, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" {
		return nil, "", ErrUsernameRequired
	}
	if email == "" || password == "" {
		return nil, "", ErrEmailAndPasswordRequired
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return nil, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, "", ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	record := domain.UserRecord{
		Username:           username,
		Email:              email,
		PasswordHash:       hash,
		OnboardingComplete: false,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := a.store.SaveUser(record); err != nil {
		return nil, "", fmt.Errorf("save user: %w", err)
	}
	sess, err := a.activateSession(record)
	if err != nil {
		return nil, "", err
	}
	token, err := a.tokens.NewSession(email)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}
	return sess, token, nil
}

// Logout clears the session token and drops the in-memory context. Durable
// per-user collections are untouched and reload on next login.
func (a *App) Logout(token string) error {
	email, ok, err := a.tokens.GetEmailByToken(token)
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}
	if err := a.tokens.DeleteSession(token); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	if ok {
		a.mu.Lock()
		delete(a.active, email)
		a.mu.Unlock()
	}
	return nil
}

// SessionFromToken resolves a bearer token to its activated session context,
// rehydrating the context from storage when the process restarted since the
// token was issued.
func (a *App) SessionFromToken(token string) (*Session, bool, error) {
	email, ok, err := a.tokens.GetEmailByToken(token)
	if err != nil {
		return nil, false, fmt.Errorf("resolve token: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	a.mu.Lock()
	sess, found := a.active[email]
	a.mu.Unlock()
	if found {
		return sess, true, nil
	}
	record, found, err := a.store.GetUserByEmail(email)
	if err != nil {
		return nil, false, fmt.Errorf("lookup user: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	sess, err = a.activateSession(record)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// activateSession loads the user's three scoped collections as one unit:
// when any load fails the previous context is left untouched and no partial
// swap happens.
func (a *App) activateSession(record domain.UserRecord) (*Session, error) {
	entries, err := a.store.ListEntries(record.Email)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	goals, err := a.store.ListGoals(record.Email)
	if err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}
	settings, found, err := a.store.GetSettings(record.Email)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !found {
		settings = domain.DefaultSettings()
	} else if settings.Language == "" {
		// Legacy settings records predate the language field.
		settings.Language = domain.DefaultSettings().Language
	}

	sess := &Session{
		user:     record.Profile(),
		entries:  entries,
		goals:    goals,
		settings: settings,
	}
	a.mu.Lock()
	a.active[record.Email] = sess
	a.mu.Unlock()
	a.onThemeChange(settings.Theme == domain.ThemeDark)
	return sess, nil
}

// CompleteOnboarding marks onboarding done and attaches the purpose analysis
// and statement to both the session and the directory record. The stored
// credential is retained.
func (a *App) CompleteOnboarding(sess *Session, analysis, statement string) error {
	if sess == nil {
		return ErrNoSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	record, found, err := a.store.GetUserByEmail(sess.user.Email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if !found {
		return ErrNoSession
	}
	record.OnboardingComplete = true
	record.PurposeAnalysis = analysis
	record.PurposeStatement = statement
	record.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(record); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	sess.user = record.Profile()
	return nil
}

// AddEntry prepends a journal entry to the session's sequence and persists
// it. Entries are append-only; there is no update or delete.
func (a *App) AddEntry(sess *Session, entry domain.JournalEntry) (domain.JournalEntry, error) {
	if sess == nil {
		return domain.JournalEntry{}, ErrNoSession
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = deriveTimestamp(entry.Date)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := a.store.AppendEntry(sess.user.Email, entry); err != nil {
		return domain.JournalEntry{}, fmt.Errorf("%w: %v", store.ErrWrite, err)
	}
	sess.entries = append([]domain.JournalEntry{entry}, sess.entries...)
	return entry, nil
}

// AddGoalSuggestions ingests an AI suggestion batch: each goal gets an id and
// creation timestamp, status suggested and the AI-provenance flag.
func (a *App) AddGoalSuggestions(sess *Session, suggestions []domain.GoalSuggestion) ([]domain.Goal, error) {
	if sess == nil {
		return nil, ErrNoSession
	}
	now := time.Now().UnixMilli()
	goals := make([]domain.Goal, 0, len(suggestions))
	for _, s := range suggestions {
		goals = append(goals, domain.Goal{
			ID:            uuid.NewString(),
			Title:         s.Title,
			Description:   s.Description,
			Term:          s.Term,
			Domain:        s.Domain,
			Status:        domain.GoalSuggested,
			CreatedAt:     now,
			IsAIGenerated: true,
		})
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := a.store.SaveGoals(sess.user.Email, goals); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrWrite, err)
	}
	sess.goals = append(sess.goals, goals...)
	return goals, nil
}

// AddGoal creates a single user-authored goal, active from inception.
func (a *App) AddGoal(sess *Session, s domain.GoalSuggestion) (domain.Goal, error) {
	if sess == nil {
		return domain.Goal{}, ErrNoSession
	}
	goal := domain.Goal{
		ID:            uuid.NewString(),
		Title:         s.Title,
		Description:   s.Description,
		Term:          s.Term,
		Domain:        s.Domain,
		Status:        domain.GoalActive,
		CreatedAt:     time.Now().UnixMilli(),
		IsAIGenerated: false,
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := a.store.SaveGoal(sess.user.Email, goal); err != nil {
		return domain.Goal{}, fmt.Errorf("%w: %v", store.ErrWrite, err)
	}
	sess.goals = append(sess.goals, goal)
	return goal, nil
}

// ApproveGoal moves a suggested goal to active. The forward transition is
// irreversible; any other state, or an unknown id, is a no-op reported as
// false.
func (a *App) ApproveGoal(sess *Session, id string) (bool, error) {
	return a.transitionGoal(sess, id, func(g *domain.Goal) bool {
		if g.Status != domain.GoalSuggested {
			return false
		}
		g.Status = domain.GoalActive
		return true
	})
}

// ToggleGoalCompletion flips a goal between active and completed. Suggested
// goals and unknown ids are left unchanged.
func (a *App) ToggleGoalCompletion(sess *Session, id string) (bool, error) {
	return a.transitionGoal(sess, id, func(g *domain.Goal) bool {
		switch g.Status {
		case domain.GoalActive:
			g.Status = domain.GoalCompleted
		case domain.GoalCompleted:
			g.Status = domain.GoalActive
		default:
			return false
		}
		return true
	})
}

// DiscardGoal deletes a goal that is still in the suggested state. Approved
// goals cannot be discarded; the call reports false without error.
func (a *App) DiscardGoal(sess *Session, id string) (bool, error) {
	if sess == nil {
		return false, ErrNoSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for i, g := range sess.goals {
		if g.ID != id {
			continue
		}
		if g.Status != domain.GoalSuggested {
			return false, nil
		}
		if err := a.store.DeleteGoal(sess.user.Email, id); err != nil {
			return false, fmt.Errorf("%w: %v", store.ErrWrite, err)
		}
		sess.goals = append(sess.goals[:i], sess.goals[i+1:]...)
		return true, nil
	}
	return false, nil
}

func (a *App) transitionGoal(sess *Session, id string, apply func(*domain.Goal) bool) (bool, error) {
	if sess == nil {
		return false, ErrNoSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for i := range sess.goals {
		if sess.goals[i].ID != id {
			continue
		}
		updated := sess.goals[i]
		if !apply(&updated) {
			return false, nil
		}
		if err := a.store.SaveGoal(sess.user.Email, updated); err != nil {
			return false, fmt.Errorf("%w: %v", store.ErrWrite, err)
		}
		sess.goals[i] = updated
		return true, nil
	}
	return false, nil
}

// UpdateSettings commits a draft patch onto the committed settings: fields
// absent from the patch are retained, the result is persisted and the theme
// hook fires. Until this call, draft edits have zero effect.
func (a *App) UpdateSettings(sess *Session, patch domain.SettingsPatch) (domain.Settings, error) {
	if sess == nil {
		return domain.Settings{}, ErrNoSession
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	updated := sess.settings
	if patch.Theme != nil {
		updated.Theme = *patch.Theme
	}
	if patch.FontSize != nil {
		updated.FontSize = *patch.FontSize
	}
	if patch.Language != nil {
		updated.Language = *patch.Language
	}
	if err := a.store.SaveSettings(sess.user.Email, updated); err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", store.ErrWrite, err)
	}
	sess.settings = updated
	a.onThemeChange(updated.Theme == domain.ThemeDark)
	return updated, nil
}

// StoreRecording offloads a captured WAV blob to object storage and returns
// its key. Without a configured recording store the key is empty and callers
// keep the blob inline.
func (a *App) StoreRecording(ctx context.Context, sess *Session, wav []byte) (string, error) {
	if sess == nil {
		return "", ErrNoSession
	}
	if a.recordings == nil {
		return "", nil
	}
	key := fmt.Sprintf("recordings/%s/%s.wav", sess.User().Email, uuid.NewString())
	if err := a.recordings.Put(ctx, key, wav); err != nil {
		return "", fmt.Errorf("store recording: %w", err)
	}
	return key, nil
}

const recordingURLTTL = 15 * time.Minute

// RecordingURL resolves an offloaded recording key to a short-lived presigned
// URL for playback. Keys are namespaced per user; a key outside the session
// owner's prefix is reported as not found.
func (a *App) RecordingURL(ctx context.Context, sess *Session, key string) (string, error) {
	if sess == nil {
		return "", ErrNoSession
	}
	if a.recordings == nil || !a.ownsRecording(sess, key) {
		return "", ErrRecordingNotFound
	}
	url, err := a.recordings.PresignGet(ctx, key, recordingURLTTL)
	if err != nil {
		return "", fmt.Errorf("presign recording: %w", err)
	}
	return url, nil
}

// DeleteRecording removes an offloaded recording the user chose not to keep.
func (a *App) DeleteRecording(ctx context.Context, sess *Session, key string) error {
	if sess == nil {
		return ErrNoSession
	}
	if a.recordings == nil || !a.ownsRecording(sess, key) {
		return ErrRecordingNotFound
	}
	if err := a.recordings.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	return nil
}

func (a *App) ownsRecording(sess *Session, key string) bool {
	return strings.HasPrefix(key, fmt.Sprintf("recordings/%s/", sess.User().Email))
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// deriveTimestamp converts the user-chosen authoring date to unix millis,
// falling back to now when the date does not parse.
func deriveTimestamp(date string) int64 {
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.UnixMilli()
	}
	return time.Now().UnixMilli()
}
