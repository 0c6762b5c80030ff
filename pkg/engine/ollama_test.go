package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != "llama3.1" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Format != "json" {
			t.Errorf("format = %q, want json", req.Format)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		summary := `{"overview":"Team agreed on the Q3 launch plan.","keyPoints":["Launch date moved to July"],"actionItems":[{"description":"Draft announcement","assignee":"dana"}],"decisions":["Ship without beta"],"nextSteps":["Review copy Friday"]}`
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaChatMessage{Role: "assistant", Content: summary},
		})
	}))
	defer srv.Close()

	s := NewOllamaSummarizer(srv.URL, "llama3.1")
	result, err := s.Summarize(context.Background(), "transcript text here")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if result.Overview != "Team agreed on the Q3 launch plan." {
		t.Errorf("overview = %q", result.Overview)
	}
	if len(result.ActionItems) != 1 || result.ActionItems[0].Assignee != "dana" {
		t.Errorf("unexpected action items: %+v", result.ActionItems)
	}
	if len(result.Decisions) != 1 || len(result.NextSteps) != 1 || len(result.KeyPoints) != 1 {
		t.Errorf("unexpected lists: %+v", result)
	}
}

func TestOllamaSummarizeMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaChatMessage{Role: "assistant", Content: "not json at all"},
		})
	}))
	defer srv.Close()

	s := NewOllamaSummarizer(srv.URL, "llama3.1")
	if _, err := s.Summarize(context.Background(), "text"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestOllamaSummarizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"llama3.1\" not found"}`))
	}))
	defer srv.Close()

	s := NewOllamaSummarizer(srv.URL, "llama3.1")
	_, err := s.Summarize(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error should carry api message, got %v", err)
	}
}

func TestOllamaSummarizeRequiresInput(t *testing.T) {
	s := NewOllamaSummarizer("http://127.0.0.1:1", "llama3.1")
	if _, err := s.Summarize(context.Background(), "   "); err == nil {
		t.Fatal("blank transcript should be rejected before any request")
	}
}
