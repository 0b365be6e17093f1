package domain

import "time"

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type FontSize string

const (
	FontSmall  FontSize = "small"
	FontMedium FontSize = "medium"
	FontLarge  FontSize = "large"
)

// Language is a display language code. The journal ships with es/en/fr/it.
type Language string

const (
	LangSpanish Language = "es"
	LangEnglish Language = "en"
	LangFrench  Language = "fr"
	LangItalian Language = "it"
)

type GoalTerm string

const (
	TermShort GoalTerm = "short-term"
	TermLong  GoalTerm = "long-term"
)

type GoalDomain string

const (
	DomainPersonal     GoalDomain = "personal"
	DomainFamily       GoalDomain = "family"
	DomainProfessional GoalDomain = "professional"
)

type GoalStatus string

const (
	GoalSuggested GoalStatus = "suggested"
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
)

// UserRecord is a user-directory entry. Email is the unique key across the
// directory. PasswordHash never leaves the directory; Profile is the safe
// projection handed to sessions.
type UserRecord struct {
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	OnboardingComplete bool      `json:"onboardingComplete"`
	PurposeAnalysis    string    `json:"purposeAnalysis,omitempty"`
	PurposeStatement   string    `json:"purposeStatement,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Profile is a UserRecord minus the credential.
type Profile struct {
	Username           string `json:"username"`
	Email              string `json:"email"`
	OnboardingComplete bool   `json:"onboardingComplete"`
	PurposeAnalysis    string `json:"purposeAnalysis,omitempty"`
	PurposeStatement   string `json:"purposeStatement,omitempty"`
}

// Profile strips the credential from a directory record.
func (u UserRecord) Profile() Profile {
	return Profile{
		Username:           u.Username,
		Email:              u.Email,
		OnboardingComplete: u.OnboardingComplete,
		PurposeAnalysis:    u.PurposeAnalysis,
		PurposeStatement:   u.PurposeStatement,
	}
}

// JournalEntry is immutable once saved. Date is the authoring date chosen by
// the user (may be backdated); Timestamp is its derived unix-millis value.
// VoiceRecording holds inline base64 audio; RecordingKey is set instead when
// the recording was offloaded to object storage.
type JournalEntry struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	Date             string             `json:"date"`
	Timestamp        int64              `json:"timestamp"`
	Personal         string             `json:"personal"`
	Family           string             `json:"family"`
	Professional     string             `json:"professional"`
	Images           []string           `json:"images,omitempty"`
	VoiceRecording   string             `json:"voiceRecording,omitempty"`
	RecordingKey     string             `json:"recordingKey,omitempty"`
	Sentiment        string             `json:"sentiment,omitempty"`
	SentimentSummary string             `json:"sentimentSummary,omitempty"`
	EmotionalProfile map[string]float64 `json:"emotionalProfile,omitempty"`
}

// Goal status moves suggested -> active (irreversible), active <-> completed
// (freely toggled). Term and Domain are immutable after creation.
type Goal struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Term          GoalTerm   `json:"term"`
	Domain        GoalDomain `json:"domain"`
	Status        GoalStatus `json:"status"`
	CreatedAt     int64      `json:"createdAt"`
	IsAIGenerated bool       `json:"isAiGenerated"`
}

// GoalSuggestion is the AI-intake shape for a goal, before id, status and
// timestamp assignment.
type GoalSuggestion struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Term        GoalTerm   `json:"term"`
	Domain      GoalDomain `json:"domain"`
}

type Settings struct {
	Theme    Theme    `json:"theme"`
	FontSize FontSize `json:"fontSize"`
	Language Language `json:"language"`
}

// DefaultSettings matches the values applied when a user has no settings
// record yet.
func DefaultSettings() Settings {
	return Settings{Theme: ThemeLight, FontSize: FontMedium, Language: LangSpanish}
}

// SettingsPatch carries a partial settings update. Nil fields are retained
// from the committed value.
type SettingsPatch struct {
	Theme    *Theme    `json:"theme,omitempty"`
	FontSize *FontSize `json:"fontSize,omitempty"`
	Language *Language `json:"language,omitempty"`
}

// OnboardingAnswers collects the purpose questionnaire before analysis.
type OnboardingAnswers struct {
	Interests          []string `json:"interests"`
	OtherInterests     string   `json:"otherInterests"`
	Skills             []string `json:"skills"`
	OtherSkills        string   `json:"otherSkills"`
	WorldNeeds         []string `json:"worldNeeds"`
	OtherWorldNeeds    string   `json:"otherWorldNeeds"`
	ProfessionalVision string   `json:"professionalVision"`
	PersonalValues     string   `json:"personalValues"`
}

// Message is one turn of the assistant conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GroundingRef is a citation returned alongside a grounded AI response,
// used for display only.
type GroundingRef struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri,omitempty"`
}
