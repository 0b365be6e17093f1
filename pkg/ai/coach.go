package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"permajournal/pkg/domain"
)

const (
	defaultTextModel = "gemini-3-flash-preview"
	defaultChatModel = "gemini-3-pro-preview"
)

const chatSystemInstruction = `You are a Purpose Coach and an expert in the PERMA well-being model.
KEY INSTRUCTIONS:
1. You are warm, empathetic and professional.
2. If the user asks for plans (exercise, study, diet), answer with a clear weekly structure naming the days of the week.
3. You have access to Google Search for news and resources.
4. Do not use asterisks (*) or bold (**). Plain text and line breaks only.
5. Answer in the user's language.`

// Coach implements the journal's generative-AI contract on top of the Gemini
// client. All responses are treated as untrusted text and sanitized.
type Coach struct {
	client    *GeminiClient
	textModel string
	chatModel string
}

// NewCoach builds a Coach. Empty model names fall back to the defaults.
func NewCoach(client *GeminiClient, textModel, chatModel string) *Coach {
	if strings.TrimSpace(textModel) == "" {
		textModel = defaultTextModel
	}
	if strings.TrimSpace(chatModel) == "" {
		chatModel = defaultChatModel
	}
	return &Coach{client: client, textModel: textModel, chatModel: chatModel}
}

// PurposeResult is the structured outcome of the onboarding analysis.
type PurposeResult struct {
	DetailedAnalysis string `json:"detailedAnalysis"`
	ShortStatement   string `json:"shortStatement"`
}

// AnalyzePurpose derives a life-purpose analysis from onboarding answers.
func (c *Coach) AnalyzePurpose(ctx context.Context, answers domain.OnboardingAnswers, lang domain.Language) (PurposeResult, error) {
	raw, err := json.Marshal(answers)
	if err != nil {
		return PurposeResult{}, err
	}
	prompt := fmt.Sprintf("Define life purpose from this data: %s. No asterisks. Language: %s.", raw, lang)
	schema := Schema{
		Type: "object",
		Properties: map[string]Schema{
			"detailedAnalysis": {Type: "string"},
			"shortStatement":   {Type: "string"},
		},
		Required: []string{"detailedAnalysis", "shortStatement"},
	}
	var res PurposeResult
	if err := c.client.GenerateJSON(ctx, c.textModel, prompt, schema, &res); err != nil {
		return PurposeResult{}, err
	}
	res.DetailedAnalysis = sanitize(res.DetailedAnalysis)
	res.ShortStatement = sanitize(res.ShortStatement)
	return res, nil
}

// GenerateGoalSuggestions proposes PERMA goals for the user's purpose.
func (c *Coach) GenerateGoalSuggestions(ctx context.Context, user domain.Profile, entries []domain.JournalEntry, lang domain.Language) ([]domain.GoalSuggestion, error) {
	prompt := fmt.Sprintf("Generate 3 PERMA goals for user with purpose: %s. No asterisks. Language: %s.", user.PurposeAnalysis, lang)
	schema := Schema{
		Type: "array",
		Items: &Schema{
			Type: "object",
			Properties: map[string]Schema{
				"title":       {Type: "string"},
				"description": {Type: "string"},
				"term":        {Type: "string", Enum: []string{"short-term", "long-term"}},
				"domain":      {Type: "string", Enum: []string{"personal", "family", "professional"}},
			},
			Required: []string{"title", "description", "term", "domain"},
		},
	}
	var suggestions []domain.GoalSuggestion
	if err := c.client.GenerateJSON(ctx, c.textModel, prompt, schema, &suggestions); err != nil {
		return nil, err
	}
	for i := range suggestions {
		suggestions[i].Title = sanitize(suggestions[i].Title)
		suggestions[i].Description = sanitize(suggestions[i].Description)
	}
	return suggestions, nil
}

// PermaTips bundles daily tips with a short mantra.
type PermaTips struct {
	Tips       []string `json:"tips"`
	Motivation string   `json:"motivation"`
}

// GeneratePermaTips produces tips and a mantra aligned with the purpose.
func (c *Coach) GeneratePermaTips(ctx context.Context, purpose string, activeGoals []domain.Goal, lang domain.Language) (PermaTips, error) {
	prompt := fmt.Sprintf("Provide 3 short PERMA tips and 1 mantra for: %s. No asterisks. Language: %s.", purpose, lang)
	schema := Schema{
		Type: "object",
		Properties: map[string]Schema{
			"tips":       {Type: "array", Items: &Schema{Type: "string"}},
			"motivation": {Type: "string"},
		},
		Required: []string{"tips", "motivation"},
	}
	var res PermaTips
	if err := c.client.GenerateJSON(ctx, c.textModel, prompt, schema, &res); err != nil {
		return PermaTips{}, err
	}
	for i := range res.Tips {
		res.Tips[i] = sanitize(res.Tips[i])
	}
	res.Motivation = sanitize(res.Motivation)
	return res, nil
}

// GenerateJournalPrompt returns three journaling questions for a life area.
func (c *Coach) GenerateJournalPrompt(ctx context.Context, purpose, scope string, lang domain.Language) ([]string, error) {
	prompt := fmt.Sprintf(`Generate 3 different journaling questions for a specific life area.
Area: %s
User Purpose: %s

Rules:
- Questions must be deeply related to the PERMA model (Meaning, Accomplishment, etc.).
- Maximum 15 words per question.
- Questions must be diverse (one about challenges, one about gratitude, one about growth).

Language: %s. No asterisks (*). Return JSON with an array named "options".`, scope, purpose, languageName(lang))
	schema := Schema{
		Type: "object",
		Properties: map[string]Schema{
			"options": {Type: "array", Items: &Schema{Type: "string"}},
		},
		Required: []string{"options"},
	}
	var res struct {
		Options []string `json:"options"`
	}
	if err := c.client.GenerateJSON(ctx, c.textModel, prompt, schema, &res); err != nil {
		return nil, err
	}
	for i := range res.Options {
		res.Options[i] = sanitize(res.Options[i])
	}
	return res.Options, nil
}

// GenerateJournalIntro produces a short greeting for the daily journal view.
func (c *Coach) GenerateJournalIntro(ctx context.Context, purpose string, activeGoals []domain.Goal, lang domain.Language) (string, error) {
	titles := make([]string, 0, len(activeGoals))
	for _, g := range activeGoals {
		titles = append(titles, g.Title)
	}
	prompt := fmt.Sprintf(`Generate a short, warm greeting (max 20 words) for a daily journal.
Purpose: %q
Goals: %q
Language: %s.
IMPORTANT: No asterisks (*), no bold, no lists. Plain text only.`, purpose, strings.Join(titles, ", "), languageName(lang))
	text, err := c.client.GenerateText(ctx, c.textModel, "", prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sanitize(text)), nil
}

// SentimentResult is the structured sentiment analysis of an entry.
type SentimentResult struct {
	Sentiment string `json:"sentiment"`
	Summary   string `json:"summary"`
	Breakdown []struct {
		Emotion    string  `json:"emotion"`
		Percentage float64 `json:"percentage"`
	} `json:"breakdown"`
}

// AnalyzeSentiment classifies the emotional profile of an entry's text.
func (c *Coach) AnalyzeSentiment(ctx context.Context, text string, lang domain.Language) (SentimentResult, error) {
	prompt := fmt.Sprintf("Analyze sentiment of this entry: %q. No asterisks. Language: %s.", text, lang)
	schema := Schema{
		Type: "object",
		Properties: map[string]Schema{
			"sentiment": {Type: "string"},
			"summary":   {Type: "string"},
			"breakdown": {
				Type: "array",
				Items: &Schema{
					Type: "object",
					Properties: map[string]Schema{
						"emotion":    {Type: "string"},
						"percentage": {Type: "number"},
					},
				},
			},
		},
		Required: []string{"sentiment", "summary", "breakdown"},
	}
	var res SentimentResult
	if err := c.client.GenerateJSON(ctx, c.textModel, prompt, schema, &res); err != nil {
		return SentimentResult{}, err
	}
	res.Summary = sanitize(res.Summary)
	return res, nil
}

// ChatResult is a conversational answer plus optional grounding references.
type ChatResult struct {
	Text string                `json:"text"`
	Refs []domain.GroundingRef `json:"groundingReferences,omitempty"`
}

// SendChatMessage continues the assistant conversation with search grounding.
func (c *Coach) SendChatMessage(ctx context.Context, history []domain.Message, message string) (ChatResult, error) {
	turns := make([]contentTurn, 0, len(history))
	for _, msg := range history {
		role := msg.Role
		if role != "user" {
			role = "model"
		}
		turns = append(turns, contentTurn{Role: role, Parts: []part{{Text: msg.Content}}})
	}
	res, err := c.client.GenerateGrounded(ctx, c.chatModel, chatSystemInstruction, turns, message)
	if err != nil {
		return ChatResult{}, err
	}
	return ChatResult{Text: sanitize(res.Text), Refs: toRefs(res.Chunks)}, nil
}

// SearchResources answers a one-shot grounded query.
func (c *Coach) SearchResources(ctx context.Context, query string) (ChatResult, error) {
	res, err := c.client.GenerateGrounded(ctx, c.textModel, "", nil, fmt.Sprintf("Find resources for: %s. No asterisks.", query))
	if err != nil {
		return ChatResult{}, err
	}
	return ChatResult{Text: sanitize(res.Text), Refs: toRefs(res.Chunks)}, nil
}

// Anchor used when the caller shares no location.
const (
	defaultPlacesLat = 37.78193
	defaultPlacesLng = -122.40476
)

// FindPlaces answers a place query grounded on Google Maps near the given
// coordinate.
func (c *Coach) FindPlaces(ctx context.Context, query string, lat, lng float64) (ChatResult, error) {
	if lat == 0 && lng == 0 {
		lat, lng = defaultPlacesLat, defaultPlacesLng
	}
	res, err := c.client.GenerateMapsGrounded(ctx, c.textModel, fmt.Sprintf("Places for: %s. No asterisks.", query), lat, lng)
	if err != nil {
		return ChatResult{}, err
	}
	return ChatResult{Text: sanitize(res.Text), Refs: toRefs(res.Chunks)}, nil
}

func toRefs(chunks []GroundingChunk) []domain.GroundingRef {
	if len(chunks) == 0 {
		return nil
	}
	refs := make([]domain.GroundingRef, 0, len(chunks))
	for _, ch := range chunks {
		refs = append(refs, domain.GroundingRef{Title: ch.Web.Title, URI: ch.Web.URI})
	}
	return refs
}

// sanitize strips the markup character the UI cannot render.
func sanitize(s string) string {
	return strings.ReplaceAll(s, "*", "")
}

func languageName(lang domain.Language) string {
	switch lang {
	case domain.LangEnglish:
		return "English"
	case domain.LangFrench:
		return "French"
	case domain.LangItalian:
		return "Italian"
	default:
		return "Spanish"
	}
}
