package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"meetingminutes/internal/usertoken"
	"meetingminutes/internal/util"
	"meetingminutes/services/gateway/internal/config"
	"meetingminutes/services/gateway/internal/identityclient"
	"meetingminutes/services/gateway/internal/recordingclient"
	"meetingminutes/services/gateway/internal/server"
	"meetingminutes/services/gateway/internal/summarizationclient"
	"meetingminutes/services/gateway/internal/transcriptionclient"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	probeTimeout, err := config.ParseProbeTimeout(cfg)
	if err != nil {
		log.Fatalf("failed to parse probe timeout: %v", err)
	}

	tokens, err := usertoken.NewAuthority(usertoken.Config{Secret: cfg.TokenSecret})
	if err != nil {
		log.Fatalf("failed to init token authority: %v", err)
	}

	httpServer, err := server.New(server.Config{
		Identity:      identityclient.NewClient(cfg.IdentityURL),
		Recording:     recordingclient.NewClient(cfg.RecordingURL),
		Transcription: transcriptionclient.NewClient(cfg.TranscriptionURL),
		Summarization: summarizationclient.NewClient(cfg.SummarizationURL),
		Tokens:        tokens,

		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		ProbeTimeout:               probeTimeout,
		MaxUploadBytes:             cfg.MaxUploadBytes,
		AllowedExtensions:          cfg.AllowedExtensions,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 20 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("gateway listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
