package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"permajournal/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &EntryModel{}, &GoalModel{}, &SettingsModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a directory record.
func (s *GormStore) SaveUser(u domain.UserRecord) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "password_hash", "onboarding_complete", "purpose_analysis", "purpose_statement", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists in the directory.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a directory record.
func (s *GormStore) GetUserByEmail(email string) (domain.UserRecord, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.UserRecord{}, false, nil
		}
		return domain.UserRecord{}, false, err
	}
	return userFromModel(model), true, nil
}

// UserCount returns the number of registered users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// AppendEntry stores a new journal entry for the owner.
func (s *GormStore) AppendEntry(owner string, entry domain.JournalEntry) error {
	model := entryToModel(owner, entry)
	return s.db.Create(&model).Error
}

// ListEntries returns the owner's entries, newest insertion first.
func (s *GormStore) ListEntries(owner string) ([]domain.JournalEntry, error) {
	var models []EntryModel
	if err := s.db.Where("owner = ?", owner).Order("seq DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.JournalEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, entryFromModel(m))
	}
	return entries, nil
}

// SaveGoal stores or updates one goal.
func (s *GormStore) SaveGoal(owner string, goal domain.Goal) error {
	model := goalToModel(owner, goal)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "status", "updated_at"}),
	}).Create(&model).Error
}

// SaveGoals stores a batch of goals.
func (s *GormStore) SaveGoals(owner string, goals []domain.Goal) error {
	if len(goals) == 0 {
		return nil
	}
	models := make([]GoalModel, 0, len(goals))
	for _, g := range goals {
		models = append(models, goalToModel(owner, g))
	}
	return s.db.CreateInBatches(&models, 100).Error
}

// GetGoal retrieves one goal scoped to the owner.
func (s *GormStore) GetGoal(owner, id string) (domain.Goal, bool, error) {
	var model GoalModel
	if err := s.db.First(&model, "owner = ? AND id = ?", owner, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Goal{}, false, nil
		}
		return domain.Goal{}, false, err
	}
	return goalFromModel(model), true, nil
}

// ListGoals returns the owner's goals ordered by creation time, insertion
// sequence breaking ties within a suggestion batch.
func (s *GormStore) ListGoals(owner string) ([]domain.Goal, error) {
	var models []GoalModel
	if err := s.db.Where("owner = ?", owner).Order("created_at ASC, seq ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	goals := make([]domain.Goal, 0, len(models))
	for _, m := range models {
		goals = append(goals, goalFromModel(m))
	}
	return goals, nil
}

// DeleteGoal removes a goal scoped to the owner.
func (s *GormStore) DeleteGoal(owner, id string) error {
	return s.db.Delete(&GoalModel{}, "owner = ? AND id = ?", owner, id).Error
}

// GetSettings returns the owner's settings record when present. A legacy
// record with an empty language is returned as-is; backfill is the session
// manager's job.
func (s *GormStore) GetSettings(owner string) (domain.Settings, bool, error) {
	var model SettingsModel
	if err := s.db.First(&model, "owner = ?", owner).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Settings{}, false, nil
		}
		return domain.Settings{}, false, err
	}
	return settingsFromModel(model), true, nil
}

// SaveSettings upserts the owner's single settings record.
func (s *GormStore) SaveSettings(owner string, settings domain.Settings) error {
	model := settingsToModel(owner, settings)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}},
		DoUpdates: clause.AssignmentColumns([]string{"theme", "font_size", "language", "updated_at"}),
	}).Create(&model).Error
}

func userToModel(u domain.UserRecord) UserModel {
	return UserModel{
		Email:              u.Email,
		Username:           u.Username,
		PasswordHash:       u.PasswordHash,
		OnboardingComplete: u.OnboardingComplete,
		PurposeAnalysis:    u.PurposeAnalysis,
		PurposeStatement:   u.PurposeStatement,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.UserRecord {
	return domain.UserRecord{
		Email:              m.Email,
		Username:           m.Username,
		PasswordHash:       m.PasswordHash,
		OnboardingComplete: m.OnboardingComplete,
		PurposeAnalysis:    m.PurposeAnalysis,
		PurposeStatement:   m.PurposeStatement,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func entryToModel(owner string, e domain.JournalEntry) EntryModel {
	images, _ := json.Marshal(e.Images)
	profile, _ := json.Marshal(e.EmotionalProfile)
	return EntryModel{
		ID:               e.ID,
		Owner:            owner,
		Title:            e.Title,
		Date:             e.Date,
		Timestamp:        e.Timestamp,
		Personal:         e.Personal,
		Family:           e.Family,
		Professional:     e.Professional,
		Images:           datatypes.JSON(images),
		VoiceRecording:   e.VoiceRecording,
		RecordingKey:     e.RecordingKey,
		Sentiment:        e.Sentiment,
		SentimentSummary: e.SentimentSummary,
		EmotionalProfile: datatypes.JSON(profile),
		CreatedAt:        time.Now().UTC(),
	}
}

func entryFromModel(m EntryModel) domain.JournalEntry {
	var images []string
	if len(m.Images) > 0 {
		_ = json.Unmarshal(m.Images, &images)
	}
	var profile map[string]float64
	if len(m.EmotionalProfile) > 0 {
		_ = json.Unmarshal(m.EmotionalProfile, &profile)
	}
	return domain.JournalEntry{
		ID:               m.ID,
		Title:            m.Title,
		Date:             m.Date,
		Timestamp:        m.Timestamp,
		Personal:         m.Personal,
		Family:           m.Family,
		Professional:     m.Professional,
		Images:           images,
		VoiceRecording:   m.VoiceRecording,
		RecordingKey:     m.RecordingKey,
		Sentiment:        m.Sentiment,
		SentimentSummary: m.SentimentSummary,
		EmotionalProfile: profile,
	}
}

func goalToModel(owner string, g domain.Goal) GoalModel {
	return GoalModel{
		ID:            g.ID,
		Owner:         owner,
		Title:         g.Title,
		Description:   g.Description,
		Term:          string(g.Term),
		Domain:        string(g.Domain),
		Status:        string(g.Status),
		CreatedAt:     g.CreatedAt,
		IsAIGenerated: g.IsAIGenerated,
		UpdatedAt:     time.Now().UTC(),
	}
}

func goalFromModel(m GoalModel) domain.Goal {
	return domain.Goal{
		ID:            m.ID,
		Title:         m.Title,
		Description:   m.Description,
		Term:          domain.GoalTerm(m.Term),
		Domain:        domain.GoalDomain(m.Domain),
		Status:        domain.GoalStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		IsAIGenerated: m.IsAIGenerated,
	}
}

func settingsToModel(owner string, s domain.Settings) SettingsModel {
	return SettingsModel{
		Owner:     owner,
		Theme:     string(s.Theme),
		FontSize:  string(s.FontSize),
		Language:  string(s.Language),
		UpdatedAt: time.Now().UTC(),
	}
}

func settingsFromModel(m SettingsModel) domain.Settings {
	return domain.Settings{
		Theme:    domain.Theme(m.Theme),
		FontSize: domain.FontSize(m.FontSize),
		Language: domain.Language(m.Language),
	}
}
