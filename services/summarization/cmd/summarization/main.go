package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"meetingminutes/internal/usertoken"
	"meetingminutes/internal/util"
	"meetingminutes/services/summarization/app"
	"meetingminutes/services/summarization/internal/config"
	"meetingminutes/services/summarization/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	stageTimeout, err := config.ParseStageTimeout(cfg.StageTimeout)
	if err != nil {
		log.Fatalf("failed to parse stage timeout: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokens, err := usertoken.NewAuthority(usertoken.Config{Secret: cfg.TokenSecret})
	if err != nil {
		log.Fatalf("failed to init token authority: %v", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
		StageTimeout:  stageTimeout,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:    appCore,
		Tokens: tokens,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		// Summarization holds the connection while the engine works.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("summarization server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
