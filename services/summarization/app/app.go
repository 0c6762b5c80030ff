package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meetingminutes/pkg/apperr"
	"meetingminutes/pkg/domain"
	"meetingminutes/pkg/engine"
	"meetingminutes/pkg/store"
)

// claimable are the statuses summarization may start from. failed is
// included so a failed summarization can be retried; the transcript
// existence check keeps transcription failures out.
var claimable = []domain.RecordingStatus{
	domain.StatusTranscribed,
	domain.StatusFailed,
}

// Config holds runtime configuration for the summarization application.
type Config struct {
	DatabaseURL   string
	OllamaBaseURL string
	OllamaModel   string
	StageTimeout  time.Duration
	Store         store.Store
	Engine        engine.Summarizer
}

// App runs the summarization stage over transcribed recordings.
type App struct {
	store        store.Store
	engine       engine.Summarizer
	stageTimeout time.Duration
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	eng := cfg.Engine
	if eng == nil {
		eng = engine.NewOllamaSummarizer(cfg.OllamaBaseURL, cfg.OllamaModel)
	}
	timeout := cfg.StageTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &App{
		store:        dataStore,
		engine:       eng,
		stageTimeout: timeout,
	}, nil
}

// Summarize produces the structured summary for one transcribed
// recording. As with transcription, the status claim is the only
// concurrency control for the stage.
func (a *App) Summarize(ctx context.Context, userID, recordingID string) (domain.Summary, error) {
	if _, err := uuid.Parse(recordingID); err != nil {
		return domain.Summary{}, apperr.New(apperr.InvalidArgument, "invalid recording id")
	}
	rec, ok, err := a.store.GetRecording(recordingID)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("fetch recording: %w", err)
	}
	if !ok || rec.UserID != userID {
		return domain.Summary{}, apperr.New(apperr.NotFound, "recording not found")
	}
	transcript, ok, err := a.store.GetTranscriptByRecording(recordingID)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("fetch transcript: %w", err)
	}
	if !ok {
		return domain.Summary{}, apperr.New(apperr.FailedPrecondition, "recording has no transcript yet")
	}
	if _, exists, err := a.store.GetSummaryByTranscript(transcript.ID); err != nil {
		return domain.Summary{}, fmt.Errorf("check summary: %w", err)
	} else if exists {
		return domain.Summary{}, apperr.New(apperr.FailedPrecondition, "recording already summarized")
	}

	won, err := a.store.ClaimRecordingStatus(recordingID, claimable, domain.StatusSummarizing)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("claim recording: %w", err)
	}
	if !won {
		return domain.Summary{}, apperr.New(apperr.FailedPrecondition, "recording not ready for summarization")
	}

	summary, err := a.run(ctx, transcript)
	if err != nil {
		if serr := a.store.SetRecordingStatus(recordingID, domain.StatusFailed, err.Error()); serr != nil {
			slog.Error("mark recording failed", "recordingId", recordingID, "err", serr)
		}
		slog.Error("summarization failed", "recordingId", recordingID, "err", err)
		return domain.Summary{}, apperr.Wrap(apperr.Internal, "summarization failed", err)
	}
	if err := a.store.SetRecordingStatus(recordingID, domain.StatusCompleted, ""); err != nil {
		return domain.Summary{}, fmt.Errorf("advance recording: %w", err)
	}
	slog.Info("summarization completed", "recordingId", recordingID, "summaryId", summary.ID)
	return summary, nil
}

func (a *App) run(ctx context.Context, transcript domain.Transcript) (domain.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, a.stageTimeout)
	defer cancel()

	result, err := a.engine.Summarize(ctx, transcript.Text)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("engine: %w", err)
	}

	now := time.Now().UTC()
	summary := domain.Summary{
		ID:           uuid.NewString(),
		TranscriptID: transcript.ID,
		Overview:     result.Overview,
		KeyPoints:    result.KeyPoints,
		ActionItems:  result.ActionItems,
		Decisions:    result.Decisions,
		NextSteps:    result.NextSteps,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveSummary(summary); err != nil {
		return domain.Summary{}, fmt.Errorf("save summary: %w", err)
	}
	return summary, nil
}

// GetSummary fetches the summary for a recording the caller owns. It is
// not found until the pipeline has completed for that recording.
func (a *App) GetSummary(userID, recordingID string) (domain.Summary, error) {
	if _, err := uuid.Parse(recordingID); err != nil {
		return domain.Summary{}, apperr.New(apperr.InvalidArgument, "invalid recording id")
	}
	rec, ok, err := a.store.GetRecording(recordingID)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("fetch recording: %w", err)
	}
	if !ok || rec.UserID != userID {
		return domain.Summary{}, apperr.New(apperr.NotFound, "recording not found")
	}
	transcript, ok, err := a.store.GetTranscriptByRecording(recordingID)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("fetch transcript: %w", err)
	}
	if !ok {
		return domain.Summary{}, apperr.New(apperr.NotFound, "summary not found")
	}
	summary, ok, err := a.store.GetSummaryByTranscript(transcript.ID)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("fetch summary: %w", err)
	}
	if !ok {
		return domain.Summary{}, apperr.New(apperr.NotFound, "summary not found")
	}
	return summary, nil
}

// Ping verifies the store and the summarization engine are reachable.
func (a *App) Ping(ctx context.Context) error {
	if err := a.store.Ping(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := a.engine.Ping(ctx); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}
