package summarizationclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"meetingminutes/pkg/domain"
)

// Client calls the summarization service over HTTP.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	healthClient *http.Client
}

// APIError represents a summarization service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a summarization service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 15 * time.Minute},
		healthClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Summarize triggers the summarization stage for a recording and waits
// for its summary.
func (c *Client) Summarize(token, recordingID string) (domain.Summary, error) {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/summarize/"+recordingID, nil)
	if err != nil {
		return domain.Summary{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.doSummary(req)
}

// GetSummary fetches the completed summary of a recording.
func (c *Client) GetSummary(token, recordingID string) (domain.Summary, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/summaries/"+recordingID, nil)
	if err != nil {
		return domain.Summary{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.doSummary(req)
}

// Health probes the summarization service health endpoint, bounded by
// the caller's ctx.
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

func (c *Client) doSummary(req *http.Request) (domain.Summary, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Summary{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return domain.Summary{}, decodeError(resp)
	}
	var summary domain.Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return domain.Summary{}, err
	}
	return summary, nil
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
