package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"meetingminutes/pkg/domain"
)

const defaultOllamaBaseURL = "http://127.0.0.1:11434"

const summarySystemPrompt = `You are a meeting analyst. Given a raw meeting transcript, produce a JSON object with exactly these fields:
"overview": a 2-4 sentence summary of the meeting,
"keyPoints": an array of the main discussion points,
"actionItems": an array of objects with "description" and "assignee" (empty string if unassigned),
"decisions": an array of decisions that were made,
"nextSteps": an array of agreed follow-ups.
Respond with JSON only.`

// OllamaSummarizer produces structured meeting summaries through the
// Ollama /api/chat endpoint with JSON-constrained output.
type OllamaSummarizer struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaSummarizer constructs a Summarizer with the provided base URL
// and model. Like transcription, summarization is bounded by the caller's
// context rather than a client timeout.
func NewOllamaSummarizer(baseURL, model string) *OllamaSummarizer {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &OllamaSummarizer{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{},
	}
}

// Summarize implements Summarizer using Ollama /api/chat.
func (s *OllamaSummarizer) Summarize(ctx context.Context, transcriptText string) (*SummaryResult, error) {
	model := strings.TrimSpace(s.model)
	if model == "" {
		return nil, fmt.Errorf("ollama summarization model required")
	}
	if strings.TrimSpace(transcriptText) == "" {
		return nil, fmt.Errorf("transcript text required")
	}

	reqBody := ollamaChatRequest{
		Model: model,
		Messages: []ollamaChatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: transcriptText},
		},
		Stream: false,
		Format: "json",
	}

	var resp ollamaChatResponse
	if err := s.doJSON(ctx, "/api/chat", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("ollama summarize: %w", err)
	}
	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}

	var parsed summaryPayload
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("parse summary JSON: %w", err)
	}
	if strings.TrimSpace(parsed.Overview) == "" {
		return nil, fmt.Errorf("summary missing overview")
	}

	items := make([]domain.ActionItem, 0, len(parsed.ActionItems))
	for _, it := range parsed.ActionItems {
		if strings.TrimSpace(it.Description) == "" {
			continue
		}
		items = append(items, domain.ActionItem{
			Description: strings.TrimSpace(it.Description),
			Assignee:    strings.TrimSpace(it.Assignee),
		})
	}
	return &SummaryResult{
		Overview:    strings.TrimSpace(parsed.Overview),
		KeyPoints:   trimAll(parsed.KeyPoints),
		ActionItems: items,
		Decisions:   trimAll(parsed.Decisions),
		NextSteps:   trimAll(parsed.NextSteps),
	}, nil
}

// Ping checks that Ollama answers its version endpoint.
func (s *OllamaSummarizer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/version", nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("ollama api error: %s", resp.Status)
	}
	return nil
}

func (s *OllamaSummarizer) doJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp ollamaErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("ollama api error: %s", errResp.Error)
		}
		return fmt.Errorf("ollama api error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

type summaryPayload struct {
	Overview    string `json:"overview"`
	KeyPoints   []string `json:"keyPoints"`
	ActionItems []struct {
		Description string `json:"description"`
		Assignee    string `json:"assignee"`
	} `json:"actionItems"`
	Decisions []string `json:"decisions"`
	NextSteps []string `json:"nextSteps"`
}
