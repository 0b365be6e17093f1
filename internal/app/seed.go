package app

import (
	"fmt"
	"time"

	"permajournal/pkg/auth"
	"permajournal/pkg/domain"
)

// Well-known demo account inserted on first run.
const (
	seedEmail    = "eloygarcia@waldendos.edu.mx"
	seedUsername = "Eloy Garcia"
	seedPassword = "123"
)

const (
	seedAnalysis  = "Eres una persona profundamente comprometida con el bienestar de los demás. Tu sentido se deriva de la conexión humana y el crecimiento compartido."
	seedStatement = "Guiar y crecer junto a otros con empatía."
)

// Bootstrap ensures the user directory exists and contains the demo account.
// Running it when the seed already exists is a no-op.
func (a *App) Bootstrap() error {
	exists, err := a.store.HasUserEmail(seedEmail)
	if err != nil {
		return fmt.Errorf("check seed user: %w", err)
	}
	if exists {
		return nil
	}
	hash, err := auth.HashPassword(seedPassword)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}
	now := time.Now().UTC()
	record := domain.UserRecord{
		Username:           seedUsername,
		Email:              seedEmail,
		PasswordHash:       hash,
		OnboardingComplete: true,
		PurposeAnalysis:    seedAnalysis,
		PurposeStatement:   seedStatement,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := a.store.SaveUser(record); err != nil {
		return fmt.Errorf("save seed user: %w", err)
	}
	return nil
}
