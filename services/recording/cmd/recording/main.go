package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"meetingminutes/internal/usertoken"
	"meetingminutes/internal/util"
	"meetingminutes/services/recording/app"
	"meetingminutes/services/recording/internal/config"
	"meetingminutes/services/recording/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokens, err := usertoken.NewAuthority(usertoken.Config{Secret: cfg.TokenSecret})
	if err != nil {
		log.Fatalf("failed to init token authority: %v", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		MinioEndpoint: cfg.MinioEndpoint,
		MinioAccess:   cfg.MinioAccess,
		MinioSecret:   cfg.MinioSecret,
		MinioBucket:   cfg.MinioBucket,
		MinioUseSSL:   cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Tokens:         tokens,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("recording server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
