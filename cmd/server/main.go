package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"permajournal/internal/app"
	"permajournal/internal/config"
	"permajournal/internal/server"
	"permajournal/internal/util"
	"permajournal/pkg/ai"
	"permajournal/pkg/storage"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var recordings storage.RecordingStore
	if cfg.MinioEndpoint != "" {
		store, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init recording store: %v", err)
		}
		recordings = store
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:     cfg.DatabaseURL,
		SessionStrategy: cfg.SessionStrategy,
		SessionTTL:      sessionTTL,
		RedisAddr:       cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		JWTSecret:       cfg.JWTSecret,
		Recordings:      recordings,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	if err := appCore.Bootstrap(); err != nil {
		log.Fatalf("failed to seed user directory: %v", err)
	}

	var coach *ai.Coach
	var liveClient *ai.LiveClient
	if cfg.GeminiAPIKey != "" {
		client, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			log.Fatalf("failed to init gemini client: %v", err)
		}
		coach = ai.NewCoach(client, "", "")
		liveClient, err = ai.NewLiveClient(cfg.GeminiAPIKey, "", "")
		if err != nil {
			log.Fatalf("failed to init live client: %v", err)
		}
	} else {
		slog.Warn("GEMINI_API_KEY not set, assistant endpoints disabled")
	}

	httpServer := server.New(server.Config{
		App:   appCore,
		Coach: coach,
		Live:  liveClient,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      util.WithRequestLog(httpServer.Router()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("journal server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
