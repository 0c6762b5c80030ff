package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"meetingminutes/pkg/domain"
)

const defaultWhisperBaseURL = "http://127.0.0.1:8080"

// WhisperClient calls a whisper-server HTTP endpoint for speech-to-text.
type WhisperClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewWhisperClient constructs a client with the provided base URL.
// Transcription of long recordings is slow, so the HTTP client carries
// no timeout of its own; callers bound the work through the context.
func NewWhisperClient(baseURL string) *WhisperClient {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultWhisperBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &WhisperClient{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// Transcribe streams the audio to whisper-server /inference and parses
// the verbose_json response into text plus timed segments.
func (c *WhisperClient) Transcribe(ctx context.Context, audio io.Reader, filename string) (*TranscriptionResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, audio); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := mw.WriteField("response_format", "verbose_json"); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/inference", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp whisperErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return nil, fmt.Errorf("whisper api error: %s", errResp.Error)
		}
		return nil, fmt.Errorf("whisper api error: %s", resp.Status)
	}

	var out whisperInferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, fmt.Errorf("empty transcription from whisper")
	}

	segments := make([]domain.TranscriptSegment, 0, len(out.Segments))
	for _, s := range out.Segments {
		segments = append(segments, domain.TranscriptSegment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	return &TranscriptionResult{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Segments: segments,
	}, nil
}

// Ping checks whether whisper-server answers HTTP at all. The root path
// serves a demo page; any response means the process is up.
func (c *WhisperClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

type whisperInferenceResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperErrorResponse struct {
	Error string `json:"error"`
}
