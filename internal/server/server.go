package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"permajournal/internal/app"
	"permajournal/pkg/ai"
	"permajournal/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App   *app.App
	Coach *ai.Coach
	Live  *ai.LiveClient
}

// Server exposes HTTP endpoints for the journal service.
type Server struct {
	app   *app.App
	coach *ai.Coach
	live  *ai.LiveClient
	mux   *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:   cfg.App,
		coach: cfg.Coach,
		live:  cfg.Live,
		mux:   http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/register", s.handleRegister)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.HandleFunc("/auth/logout", s.handleLogout)

	// session scoped
	s.mux.Handle("/me", s.authenticated(s.handleMe))
	s.mux.Handle("/me/onboarding", s.authenticated(s.handleOnboarding))
	s.mux.Handle("/entries", s.authenticated(s.handleEntries))
	s.mux.Handle("/goals", s.authenticated(s.handleGoals))
	s.mux.Handle("/goals/suggestions", s.authenticated(s.handleGoalSuggestions))
	s.mux.Handle("/goals/", s.authenticated(s.handleGoalByID))
	s.mux.Handle("/settings", s.authenticated(s.handleSettings))
	s.mux.Handle("/recordings", s.authenticated(s.handleRecordings))

	// assistant
	s.mux.Handle("/ai/tips", s.authenticated(s.handleTips))
	s.mux.Handle("/ai/journal-prompt", s.authenticated(s.handleJournalPrompt))
	s.mux.Handle("/ai/journal-intro", s.authenticated(s.handleJournalIntro))
	s.mux.Handle("/ai/sentiment", s.authenticated(s.handleSentiment))
	s.mux.Handle("/ai/chat", s.authenticated(s.handleChat))
	s.mux.Handle("/ai/resources", s.authenticated(s.handleResources))
	s.mux.Handle("/ai/places", s.authenticated(s.handlePlaces))

	// live audio
	s.mux.Handle("/live", s.authenticated(s.handleLive))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type sessionHandler func(http.ResponseWriter, *http.Request, *app.Session)

func (s *Server) authenticated(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		sess, ok, err := s.app.SessionFromToken(token)
		if err != nil {
			slog.Error("session lookup failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, sess)
	})
}

// auth handlers
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sess, token, err := s.app.Register(req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: sess.User()})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sess, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: sess.User()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, sess.User())
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.coach == nil {
		aiUnavailable(w)
		return
	}
	var req onboardingRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.coach.AnalyzePurpose(r.Context(), req.Answers, sess.Settings().Language)
	if err != nil {
		slog.Error("purpose analysis failed", "err", err)
		writeError(w, http.StatusBadGateway, "purpose analysis failed")
		return
	}
	if err := s.app.CompleteOnboarding(sess, result.DetailedAnalysis, result.ShortStatement); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, onboardingResponse{
		User:             sess.User(),
		DetailedAnalysis: result.DetailedAnalysis,
		ShortStatement:   result.ShortStatement,
	})
}

// journal handlers
func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	switch r.Method {
	case http.MethodGet:
		entries := sess.Entries()
		writeJSON(w, http.StatusOK, map[string]any{
			"items": entries,
			"count": len(entries),
		})
	case http.MethodPost:
		var entry domain.JournalEntry
		if err := json.NewDecoder(io.LimitReader(r.Body, 8<<20)).Decode(&entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		saved, err := s.app.AddEntry(sess, entry)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	default:
		methodNotAllowed(w)
	}
}

// goal handlers
func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	switch r.Method {
	case http.MethodGet:
		goals := sess.Goals()
		writeJSON(w, http.StatusOK, map[string]any{
			"items": goals,
			"count": len(goals),
		})
	case http.MethodPost:
		var req domain.GoalSuggestion
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		goal, err := s.app.AddGoal(sess, req)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, goal)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGoalSuggestions(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.coach == nil {
		aiUnavailable(w)
		return
	}
	suggestions, err := s.coach.GenerateGoalSuggestions(r.Context(), sess.User(), sess.Entries(), sess.Settings().Language)
	if err != nil {
		slog.Error("goal suggestion failed", "err", err)
		writeError(w, http.StatusBadGateway, "goal suggestion failed")
		return
	}
	goals, err := s.app.AddGoalSuggestions(sess, suggestions)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"items": goals,
		"count": len(goals),
	})
}

func (s *Server) handleGoalByID(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	rest := strings.TrimPrefix(r.URL.Path, "/goals/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		changed, err := s.app.DiscardGoal(sess, parts[0])
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
	case len(parts) == 2 && parts[1] == "approve":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		changed, err := s.app.ApproveGoal(sess, parts[0])
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
	case len(parts) == 2 && parts[1] == "toggle":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		changed, err := s.app.ToggleGoalCompletion(sess, parts[0])
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
	default:
		http.NotFound(w, r)
	}
}

// settings handlers
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, sess.Settings())
	case http.MethodPatch:
		var patch domain.SettingsPatch
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := s.app.UpdateSettings(sess, patch)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		methodNotAllowed(w)
	}
}

// recording handlers
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		url, err := s.app.RecordingURL(r.Context(), sess, key)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
	case http.MethodDelete:
		if err := s.app.DeleteRecording(r.Context(), sess, key); err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// assistant handlers
func (s *Server) handleTips(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.coach == nil {
		aiUnavailable(w)
		return
	}
	tips, err := s.coach.GeneratePermaTips(r.Context(), sess.User().PurposeAnalysis, sess.ActiveGoals(), sess.Settings().Language)
	if err != nil {
		slog.Error("tips generation failed", "err", err)
		writeError(w, http.StatusBadGateway, "tips generation failed")
		return
	}
	writeJSON(w, http.StatusOK, tips)
}

func (s *Server) handleJournalPrompt(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.coach == nil {
		aiUnavailable(w)
		return
	}
	var req journalPromptRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Scope == "" {
		writeError(w, http.StatusBadRequest, "scope is required")
		return
	}
	options, err := s.coach.GenerateJournalPrompt(r.Context(), sess.User().PurposeAnalysis, req.Scope, sess.Settings().Language)
	if err != nil {
		slog.Error("journal prompt failed", "err", err)
		writeError(w, http.StatusBadGateway, "journal prompt failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"options": options})
}

func (s *Server) handleJournalIntro(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.coach == nil {
		aiUnavailable(w)
		return
	}
	intro, err := s.coach.GenerateJournalIntro(r.Context(), sess.User().PurposeAnalysis, sess.ActiveGoals(), sess.Settings().Language)
	if err != nil {
		slog.Error("journal intro failed", "err", err)
		writeError(w, http.StatusBadGateway, "journal intro failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": intro})
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.coach == nil {
		aiUnavailable(w)
		return
	}
	var req sentimentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	result, err := s.coach.AnalyzeSentiment(r.Context(), req.Text, sess.Settings().Language)
	if err != nil {
		slog.Error("sentiment analysis failed", "err", err)
		writeError(w, http.StatusBadGateway, "sentiment analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.coach == nil {
		aiUnavailable(w)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	result, err := s.coach.SendChatMessage(r.Context(), req.History, req.Message)
	if err != nil {
		slog.Error("chat failed", "err", err)
		writeError(w, http.StatusBadGateway, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.coach == nil {
		aiUnavailable(w)
		return
	}
	var req resourcesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	result, err := s.coach.SearchResources(r.Context(), req.Query)
	if err != nil {
		slog.Error("resource search failed", "err", err)
		writeError(w, http.StatusBadGateway, "resource search failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePlaces(w http.ResponseWriter, r *http.Request, sess *app.Session) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.coach == nil {
		aiUnavailable(w)
		return
	}
	var req placesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	result, err := s.coach.FindPlaces(r.Context(), req.Query, req.Lat, req.Lng)
	if err != nil {
		slog.Error("place search failed", "err", err)
		writeError(w, http.StatusBadGateway, "place search failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func aiUnavailable(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, "assistant not configured")
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, app.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrEmailAlreadyExists),
		errors.Is(err, app.ErrUsernameRequired),
		errors.Is(err, app.ErrEmailAndPasswordRequired):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrRecordingNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string         `json:"token"`
	User  domain.Profile `json:"user"`
}

type onboardingRequest struct {
	Answers domain.OnboardingAnswers `json:"answers"`
}

type onboardingResponse struct {
	User             domain.Profile `json:"user"`
	DetailedAnalysis string         `json:"detailedAnalysis"`
	ShortStatement   string         `json:"shortStatement"`
}

type journalPromptRequest struct {
	Scope string `json:"scope"`
}

type sentimentRequest struct {
	Text string `json:"text"`
}

type chatRequest struct {
	History []domain.Message `json:"history"`
	Message string           `json:"message"`
}

type resourcesRequest struct {
	Query string `json:"query"`
}

type placesRequest struct {
	Query string  `json:"query"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		// Browser websocket clients cannot set headers.
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, true
		}
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
