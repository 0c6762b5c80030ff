package transcriptionclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"meetingminutes/pkg/domain"
)

// Client calls the transcription service over HTTP. Transcription is
// synchronous, so the request timeout is sized for the stage, not for a
// quick API call.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	healthClient *http.Client
}

// APIError represents a transcription service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a transcription service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 15 * time.Minute},
		healthClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Transcribe triggers the transcription stage for a recording and waits
// for its transcript.
func (c *Client) Transcribe(token, recordingID string) (domain.Transcript, error) {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/transcribe/"+recordingID, nil)
	if err != nil {
		return domain.Transcript{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Transcript{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return domain.Transcript{}, decodeError(resp)
	}
	var transcript domain.Transcript
	if err := json.NewDecoder(resp.Body).Decode(&transcript); err != nil {
		return domain.Transcript{}, err
	}
	return transcript, nil
}

// Health probes the transcription service health endpoint. The ctx
// bounds the request so a hung service cannot hold a caller past its
// own deadline.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.healthClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	msg := errResp.Error
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
