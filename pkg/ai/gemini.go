package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Google AI Studio (Gemini) API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient constructs a client with the provided API key.
func NewGeminiClient(apiKey string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// WithBaseURL overrides the API endpoint, used by tests.
func (c *GeminiClient) WithBaseURL(baseURL string) *GeminiClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Schema is a minimal structured-output schema in the Gemini response-schema
// dialect.
type Schema struct {
	Type       string            `json:"type"`
	Properties map[string]Schema `json:"properties,omitempty"`
	Items      *Schema           `json:"items,omitempty"`
	Enum       []string          `json:"enum,omitempty"`
	Required   []string          `json:"required,omitempty"`
}

// GenerateText returns the generated response for a prompt.
func (c *GeminiClient) GenerateText(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.generate(ctx, model, systemPrompt, userPrompt, nil, nil)
	if err != nil {
		return "", err
	}
	return firstText(resp)
}

// GenerateJSON requests structured output conforming to schema and decodes it
// into out. A malformed response aborts the operation.
func (c *GeminiClient) GenerateJSON(ctx context.Context, model, userPrompt string, schema Schema, out any) error {
	genCfg := &generationConfig{
		ResponseMimeType: "application/json",
		ResponseSchema:   &schema,
	}
	resp, err := c.generate(ctx, model, "", userPrompt, genCfg, nil)
	if err != nil {
		return err
	}
	text, err := firstText(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode structured response: %w", err)
	}
	return nil
}

// GroundedResult carries a grounded text answer and its citations.
type GroundedResult struct {
	Text   string
	Chunks []GroundingChunk
}

// GroundingChunk is one citation from the search-grounding metadata.
type GroundingChunk struct {
	Web struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"web"`
}

// GenerateGrounded runs a generation with the Google Search tool enabled and
// returns the text plus grounding chunks.
func (c *GeminiClient) GenerateGrounded(ctx context.Context, model, systemPrompt string, history []contentTurn, userPrompt string) (GroundedResult, error) {
	tools := []tool{{GoogleSearch: &struct{}{}}}
	resp, err := c.generateWithHistory(ctx, model, systemPrompt, history, userPrompt, nil, tools, nil)
	if err != nil {
		return GroundedResult{}, err
	}
	return groundedResult(resp)
}

// GenerateMapsGrounded runs a generation with the Google Maps tool anchored at
// a coordinate and returns the text plus grounding chunks.
func (c *GeminiClient) GenerateMapsGrounded(ctx context.Context, model, userPrompt string, lat, lng float64) (GroundedResult, error) {
	tools := []tool{{GoogleMaps: &struct{}{}}}
	toolCfg := &toolConfig{
		RetrievalConfig: &retrievalConfig{
			LatLng: latLngPoint{Latitude: lat, Longitude: lng},
		},
	}
	resp, err := c.generateWithHistory(ctx, model, "", nil, userPrompt, nil, tools, toolCfg)
	if err != nil {
		return GroundedResult{}, err
	}
	return groundedResult(resp)
}

func groundedResult(resp *generateResponse) (GroundedResult, error) {
	text, err := firstText(resp)
	if err != nil {
		return GroundedResult{}, err
	}
	var chunks []GroundingChunk
	if len(resp.Candidates) > 0 {
		chunks = resp.Candidates[0].GroundingMetadata.GroundingChunks
	}
	return GroundedResult{Text: text, Chunks: chunks}, nil
}

func (c *GeminiClient) generate(ctx context.Context, model, systemPrompt, userPrompt string, genCfg *generationConfig, tools []tool) (*generateResponse, error) {
	return c.generateWithHistory(ctx, model, systemPrompt, nil, userPrompt, genCfg, tools, nil)
}

func (c *GeminiClient) generateWithHistory(ctx context.Context, model, systemPrompt string, history []contentTurn, userPrompt string, genCfg *generationConfig, tools []tool, toolCfg *toolConfig) (*generateResponse, error) {
	contents := make([]contentTurn, 0, len(history)+1)
	contents = append(contents, history...)
	contents = append(contents, contentTurn{Role: "user", Parts: []part{{Text: userPrompt}}})
	reqBody := generateRequest{
		Contents:         contents,
		GenerationConfig: genCfg,
		Tools:            tools,
		ToolConfig:       toolCfg,
	}
	if strings.TrimSpace(systemPrompt) != "" {
		reqBody.SystemInstruction = &contentTurn{Parts: []part{{Text: systemPrompt}}}
	}
	var resp generateResponse
	if err := c.doJSON(ctx, fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, normalizeModel(model), c.apiKey), reqBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func firstText(resp *generateResponse) (string, error) {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimPrefix(model, "models/")
	return model
}

func (c *GeminiClient) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("gemini api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("gemini api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}

type part struct {
	Text string `json:"text"`
}

type contentTurn struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
	GoogleMaps   *struct{} `json:"googleMaps,omitempty"`
}

type toolConfig struct {
	RetrievalConfig *retrievalConfig `json:"retrievalConfig,omitempty"`
}

type retrievalConfig struct {
	LatLng latLngPoint `json:"latLng"`
}

type latLngPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents          []contentTurn     `json:"contents"`
	SystemInstruction *contentTurn      `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             []tool            `json:"tools,omitempty"`
	ToolConfig        *toolConfig       `json:"toolConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content           contentTurn `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []GroundingChunk `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
