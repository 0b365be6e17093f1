package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	Email              string `gorm:"primaryKey"`
	Username           string `gorm:"not null"`
	PasswordHash       string `gorm:"not null"`
	OnboardingComplete bool
	PurposeAnalysis    string `gorm:"type:text"`
	PurposeStatement   string
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time
}

// EntryModel keeps Seq so listing can honor insertion order rather than the
// user-chosen (possibly backdated) authoring date.
type EntryModel struct {
	Seq              int64  `gorm:"primaryKey;autoIncrement"`
	ID               string `gorm:"uniqueIndex;not null"`
	Owner            string `gorm:"not null;index"`
	Title            string
	Date             string
	Timestamp        int64
	Personal         string `gorm:"type:text"`
	Family           string `gorm:"type:text"`
	Professional     string `gorm:"type:text"`
	Images           datatypes.JSON
	VoiceRecording   string `gorm:"type:text"`
	RecordingKey     string
	Sentiment        string
	SentimentSummary string `gorm:"type:text"`
	EmotionalProfile datatypes.JSON
	CreatedAt        time.Time `gorm:"not null"`
}

// GoalModel keeps Seq as a tiebreaker: a suggestion batch shares one creation
// timestamp, so listing needs the insertion sequence for a stable order.
type GoalModel struct {
	Seq           int64  `gorm:"primaryKey;autoIncrement"`
	ID            string `gorm:"uniqueIndex;not null"`
	Owner         string `gorm:"not null;index"`
	Title         string `gorm:"not null"`
	Description   string `gorm:"type:text"`
	Term          string `gorm:"not null"`
	Domain        string `gorm:"not null"`
	Status        string `gorm:"not null"`
	CreatedAt     int64  `gorm:"not null"`
	IsAIGenerated bool
	UpdatedAt     time.Time
}

type SettingsModel struct {
	Owner     string `gorm:"primaryKey"`
	Theme     string `gorm:"not null"`
	FontSize  string `gorm:"not null"`
	Language  string
	UpdatedAt time.Time
}
