package engine

import (
	"context"
	"io"

	"meetingminutes/pkg/domain"
)

// TranscriptionResult is what a speech-to-text engine produces for one
// audio blob.
type TranscriptionResult struct {
	Text     string
	Language string
	Segments []domain.TranscriptSegment
}

// SummaryResult is the structured output of the summarization engine.
type SummaryResult struct {
	Overview    string
	KeyPoints   []string
	ActionItems []domain.ActionItem
	Decisions   []string
	NextSteps   []string
}

// Transcriber converts an audio stream into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (*TranscriptionResult, error)
	Ping(ctx context.Context) error
}

// Summarizer produces a structured meeting summary from transcript text.
type Summarizer interface {
	Summarize(ctx context.Context, transcriptText string) (*SummaryResult, error)
	Ping(ctx context.Context) error
}
