package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"permajournal/internal/app"
	"permajournal/pkg/ai"
	"permajournal/pkg/domain"
	"permajournal/pkg/store"
)

func newTestServer(t *testing.T, coach *ai.Coach) (*httptest.Server, *app.App) {
	t.Helper()
	appCore, err := app.New(app.Config{
		Store:  store.NewMemoryStore(),
		Tokens: store.NewMemorySessionStore(time.Hour),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv := httptest.NewServer(New(Config{App: appCore, Coach: coach}).Router())
	t.Cleanup(srv.Close)
	return srv, appCore
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func registerUser(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/auth/register", "", map[string]string{
		"username": "Ana",
		"email":    "ana@example.com",
		"password": "pw1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register expected 201, got %d", resp.StatusCode)
	}
	body := decodeBody[struct {
		Token string `json:"token"`
	}](t, resp)
	if body.Token == "" {
		t.Fatalf("expected token in register response")
	}
	return body.Token
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAuthFlowOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	token := registerUser(t, srv)

	// protected route without token
	resp := doJSON(t, http.MethodGet, srv.URL+"/me", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token expected 401, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me expected 200, got %d", resp.StatusCode)
	}
	profile := decodeBody[domain.Profile](t, resp)
	if profile.Email != "ana@example.com" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	// wrong password on login
	resp = doJSON(t, http.MethodPost, srv.URL+"/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "nope",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login expected 401, got %d", resp.StatusCode)
	}

	// logout invalidates the token
	resp = doJSON(t, http.MethodPost, srv.URL+"/auth/logout", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout expected 204, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/me", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("token after logout expected 401, got %d", resp.StatusCode)
	}
}

func TestEntriesOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	token := registerUser(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/entries", token, domain.JournalEntry{
		Title: "first day", Date: "2026-02-01", Personal: "walked in the park",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add entry expected 201, got %d", resp.StatusCode)
	}
	created := decodeBody[domain.JournalEntry](t, resp)
	if created.ID == "" || created.Timestamp == 0 {
		t.Fatalf("entry not fully assigned: %+v", created)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/entries", token, domain.JournalEntry{Title: "second day"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/entries", token, nil)
	list := decodeBody[struct {
		Items []domain.JournalEntry `json:"items"`
		Count int                   `json:"count"`
	}](t, resp)
	if list.Count != 2 || list.Items[0].Title != "second day" {
		t.Fatalf("expected newest first, got %+v", list)
	}
}

func TestGoalsOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	token := registerUser(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/goals", token, domain.GoalSuggestion{
		Title: "daily walk", Term: domain.TermShort, Domain: domain.DomainPersonal,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add goal expected 201, got %d", resp.StatusCode)
	}
	goal := decodeBody[domain.Goal](t, resp)
	if goal.Status != domain.GoalActive {
		t.Fatalf("user goal should be active: %+v", goal)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/goals/"+goal.ID+"/toggle", token, nil)
	toggled := decodeBody[map[string]bool](t, resp)
	if !toggled["changed"] {
		t.Fatalf("expected toggle to change the goal")
	}

	// an active goal cannot be discarded
	resp = doJSON(t, http.MethodDelete, srv.URL+"/goals/"+goal.ID, token, nil)
	discarded := decodeBody[map[string]bool](t, resp)
	if discarded["changed"] {
		t.Fatalf("discard of a non-suggested goal must be a no-op")
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/goals", token, map[string]string{"title": ""})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty title expected 400, got %d", resp.StatusCode)
	}
}

func TestSettingsOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	token := registerUser(t, srv)

	resp := doJSON(t, http.MethodGet, srv.URL+"/settings", token, nil)
	settings := decodeBody[domain.Settings](t, resp)
	if settings != domain.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", settings)
	}

	resp = doJSON(t, http.MethodPatch, srv.URL+"/settings", token, map[string]string{"theme": "dark"})
	updated := decodeBody[domain.Settings](t, resp)
	if updated.Theme != domain.ThemeDark || updated.Language != domain.LangSpanish {
		t.Fatalf("patch semantics violated: %+v", updated)
	}
}

func TestAssistantUnavailableWithoutCoach(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	token := registerUser(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/ai/tips", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without coach, got %d", resp.StatusCode)
	}
}

func TestSentimentEndpoint(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{
						"text": `{"sentiment":"positive","summary":"Good day.","breakdown":[{"emotion":"joy","percentage":100}]}`,
					}},
				},
			}},
		})
	}))
	defer stub.Close()

	client, err := ai.NewGeminiClient("test-key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	coach := ai.NewCoach(client.WithBaseURL(stub.URL), "", "")

	srv, _ := newTestServer(t, coach)
	token := registerUser(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/ai/sentiment", token, map[string]string{"text": "Today was great"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sentiment expected 200, got %d", resp.StatusCode)
	}
	result := decodeBody[ai.SentimentResult](t, resp)
	if result.Sentiment != "positive" || len(result.Breakdown) != 1 {
		t.Fatalf("unexpected sentiment result: %+v", result)
	}
}

type stubRecordingStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *stubRecordingStore) Put(_ context.Context, key string, wav []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = wav
	return nil
}

func (s *stubRecordingStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("no such object: %s", key)
	}
	return "https://minio.local/" + key + "?signed=1", nil
}

func (s *stubRecordingStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func TestRecordingsOverHTTP(t *testing.T) {
	recordings := &stubRecordingStore{}
	appCore, err := app.New(app.Config{
		Store:      store.NewMemoryStore(),
		Tokens:     store.NewMemorySessionStore(time.Hour),
		Recordings: recordings,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srv := httptest.NewServer(New(Config{App: appCore}).Router())
	t.Cleanup(srv.Close)
	token := registerUser(t, srv)

	sess, ok, err := appCore.SessionFromToken(token)
	if err != nil || !ok {
		t.Fatalf("session from token: ok=%v err=%v", ok, err)
	}
	key, err := appCore.StoreRecording(context.Background(), sess, []byte("wav-bytes"))
	if err != nil {
		t.Fatalf("store recording: %v", err)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/recordings?key="+url.QueryEscape(key), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[struct {
		URL string `json:"url"`
	}](t, resp)
	if !strings.Contains(body.URL, key) {
		t.Fatalf("url does not reference key: %q", body.URL)
	}

	// a key outside the caller's namespace does not resolve
	foreign := "recordings/other@example.com/x.wav"
	resp = doJSON(t, http.MethodGet, srv.URL+"/recordings?key="+url.QueryEscape(foreign), token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign key, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/recordings?key="+url.QueryEscape(key), token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/recordings", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without key, got %d", resp.StatusCode)
	}
}
