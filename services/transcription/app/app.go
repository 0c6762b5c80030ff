package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"meetingminutes/pkg/apperr"
	"meetingminutes/pkg/domain"
	"meetingminutes/pkg/engine"
	"meetingminutes/pkg/store"
)

// claimable are the statuses transcription may start from. failed is
// included so a failed run can be retried without a manual reset.
var claimable = []domain.RecordingStatus{
	domain.StatusPending,
	domain.StatusUploaded,
	domain.StatusFailed,
}

// Config holds runtime configuration for the transcription application.
type Config struct {
	DatabaseURL    string
	WhisperBaseURL string
	StageTimeout   time.Duration
	Store          store.Store
	Blobs          BlobReader
	Engine         engine.Transcriber
}

// BlobReader is the slice of blob storage this stage needs.
type BlobReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// App runs the transcription stage over claimed recordings.
type App struct {
	store        store.Store
	blobs        BlobReader
	engine       engine.Transcriber
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
		eng = engine.NewWhisperClient(cfg.WhisperBaseURL)
	}
	timeout := cfg.StageTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if cfg.Blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	return &App{
		store:        dataStore,
		blobs:        cfg.Blobs,
		engine:       eng,
		stageTimeout: timeout,
	}, nil
}

// Transcribe runs speech-to-text for one recording. The status claim is
// the only concurrency control: of any number of concurrent calls for
// the same recording, exactly one reaches the engine.
func (a *App) Transcribe(ctx context.Context, userID, recordingID string) (domain.Transcript, error) {
	if _, err := uuid.Parse(recordingID); err != nil {
		return domain.Transcript{}, apperr.New(apperr.InvalidArgument, "invalid recording id")
	}
	rec, ok, err := a.store.GetRecording(recordingID)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("fetch recording: %w", err)
	}
	if !ok || rec.UserID != userID {
		return domain.Transcript{}, apperr.New(apperr.NotFound, "recording not found")
	}
	if _, exists, err := a.store.GetTranscriptByRecording(recordingID); err != nil {
		return domain.Transcript{}, fmt.Errorf("check transcript: %w", err)
	} else if exists {
		return domain.Transcript{}, apperr.New(apperr.FailedPrecondition, "recording already transcribed")
	}

	won, err := a.store.ClaimRecordingStatus(recordingID, claimable, domain.StatusTranscribing)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("claim recording: %w", err)
	}
	if !won {
		return domain.Transcript{}, apperr.New(apperr.FailedPrecondition, "recording not ready for transcription")
	}

	transcript, err := a.run(ctx, rec)
	if err != nil {
		if serr := a.store.SetRecordingStatus(recordingID, domain.StatusFailed, err.Error()); serr != nil {
			slog.Error("mark recording failed", "recordingId", recordingID, "err", serr)
		}
		slog.Error("transcription failed", "recordingId", recordingID, "err", err)
		return domain.Transcript{}, apperr.Wrap(apperr.Internal, "transcription failed", err)
	}
	if err := a.store.SetRecordingStatus(recordingID, domain.StatusTranscribed, ""); err != nil {
		return domain.Transcript{}, fmt.Errorf("advance recording: %w", err)
	}
	slog.Info("transcription completed", "recordingId", recordingID, "transcriptId", transcript.ID)
	return transcript, nil
}

func (a *App) run(ctx context.Context, rec domain.Recording) (domain.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, a.stageTimeout)
	defer cancel()

	blob, err := a.blobs.Get(ctx, rec.BlobPath)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("open audio blob: %w", err)
	}
	defer blob.Close()

	result, err := a.engine.Transcribe(ctx, blob, rec.Filename)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("engine: %w", err)
	}

	now := time.Now().UTC()
	transcript := domain.Transcript{
		ID:          uuid.NewString(),
		RecordingID: rec.ID,
		Text:        result.Text,
		Language:    result.Language,
		Segments:    result.Segments,
		Status:      "completed",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveTranscript(transcript); err != nil {
		return domain.Transcript{}, fmt.Errorf("save transcript: %w", err)
	}
	return transcript, nil
}

// GetTranscript fetches the transcript for a recording the caller owns.
func (a *App) GetTranscript(userID, recordingID string) (domain.Transcript, error) {
	if _, err := uuid.Parse(recordingID); err != nil {
		return domain.Transcript{}, apperr.New(apperr.InvalidArgument, "invalid recording id")
	}
	rec, ok, err := a.store.GetRecording(recordingID)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("fetch recording: %w", err)
	}
	if !ok || rec.UserID != userID {
		return domain.Transcript{}, apperr.New(apperr.NotFound, "recording not found")
	}
	transcript, ok, err := a.store.GetTranscriptByRecording(recordingID)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("fetch transcript: %w", err)
	}
	if !ok {
		return domain.Transcript{}, apperr.New(apperr.NotFound, "transcript not found")
	}
	return transcript, nil
}

// Ping verifies the store and the transcription engine are reachable.
func (a *App) Ping(ctx context.Context) error {
	if err := a.store.Ping(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := a.engine.Ping(ctx); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}
