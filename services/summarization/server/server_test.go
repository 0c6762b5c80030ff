package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"meetingminutes/internal/usertoken"
	"meetingminutes/pkg/domain"
	"meetingminutes/pkg/engine"
	"meetingminutes/pkg/store"
	"meetingminutes/services/summarization/app"
)

const (
	testUserID      = "6f1c0f9a-9d2c-4a90-b54a-111111111111"
	testRecordingID = "6f1c0f9a-9d2c-4a90-b54a-aaaaaaaaaaaa"
	testTranscript  = "6f1c0f9a-9d2c-4a90-b54a-dddddddddddd"
)

type fakeSummarizer struct {
	calls atomic.Int64
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcriptText string) (*engine.SummaryResult, error) {
	f.calls.Add(1)
	return &engine.SummaryResult{
		Overview:  "Short sync about launch readiness.",
		KeyPoints: []string{"launch is on track"},
		ActionItems: []domain.ActionItem{
			{Description: "Draft announcement", Assignee: "dana"},
		},
		Decisions: []string{"ship without beta"},
		NextSteps: []string{"review copy Friday"},
	}, nil
}

func (f *fakeSummarizer) Ping(ctx context.Context) error { return nil }

type testEnv struct {
	server *Server
	store  store.Store
	fake   *fakeSummarizer
	token  string
}

func newTestEnv(t *testing.T, status domain.RecordingStatus, withTranscript bool) *testEnv {
	t.Helper()
	tokens, err := usertoken.NewAuthority(usertoken.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	dataStore := store.NewMemoryStore()
	fake := &fakeSummarizer{}
	appCore, err := app.New(app.Config{Store: dataStore, Engine: fake})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	token, err := tokens.Issue(testUserID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now := time.Now().UTC()
	if err := dataStore.SaveRecording(domain.Recording{
		ID:          testRecordingID,
		WorkspaceID: "6f1c0f9a-9d2c-4a90-b54a-bbbbbbbbbbbb",
		UserID:      testUserID,
		Filename:    "standup.m4a",
		Title:       "standup",
		BlobPath:    "20240101_120000_seed.m4a",
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("seed recording: %v", err)
	}
	if withTranscript {
		if err := dataStore.SaveTranscript(domain.Transcript{
			ID:          testTranscript,
			RecordingID: testRecordingID,
			Text:        "we talked about the launch",
			Language:    "en",
			Status:      "completed",
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			t.Fatalf("seed transcript: %v", err)
		}
	}

	return &testEnv{
		server: New(Config{App: appCore, Tokens: tokens}),
		store:  dataStore,
		fake:   fake,
		token:  token,
	}
}

func (e *testEnv) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+e.token)
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestSummarizeHappyPath(t *testing.T) {
	e := newTestEnv(t, domain.StatusTranscribed, true)

	rec := e.do(http.MethodPost, "/summarize/"+testRecordingID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var summary domain.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.TranscriptID != testTranscript || summary.Overview == "" {
		t.Errorf("unexpected summary: %+v", summary)
	}
	stored, _, _ := e.store.GetRecording(testRecordingID)
	if stored.Status != domain.StatusCompleted {
		t.Errorf("recording status = %s, want completed", stored.Status)
	}
}

func TestSummarizeBeforeTranscriptionIsRejected(t *testing.T) {
	e := newTestEnv(t, domain.StatusUploaded, false)

	rec := e.do(http.MethodPost, "/summarize/"+testRecordingID)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("status = %d, want 412, body %s", rec.Code, rec.Body)
	}
	if got := e.fake.calls.Load(); got != 0 {
		t.Errorf("engine invoked %d times, want 0", got)
	}
	stored, _, _ := e.store.GetRecording(testRecordingID)
	if stored.Status != domain.StatusUploaded {
		t.Errorf("status must be untouched, got %s", stored.Status)
	}
}

func TestSummarizeTwiceIsRejected(t *testing.T) {
	e := newTestEnv(t, domain.StatusTranscribed, true)
	if rec := e.do(http.MethodPost, "/summarize/"+testRecordingID); rec.Code != http.StatusOK {
		t.Fatalf("first summarize: %d", rec.Code)
	}
	rec := e.do(http.MethodPost, "/summarize/"+testRecordingID)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("second summarize status = %d, want 412", rec.Code)
	}
	if got := e.fake.calls.Load(); got != 1 {
		t.Errorf("engine invoked %d times, want 1", got)
	}
}

func TestSummaryNotFoundUntilCompleted(t *testing.T) {
	e := newTestEnv(t, domain.StatusTranscribed, true)

	rec := e.do(http.MethodGet, "/summaries/"+testRecordingID)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("pre-completion status = %d, want 404", rec.Code)
	}

	if rec := e.do(http.MethodPost, "/summarize/"+testRecordingID); rec.Code != http.StatusOK {
		t.Fatalf("summarize: %d", rec.Code)
	}

	rec = e.do(http.MethodGet, "/summaries/"+testRecordingID)
	if rec.Code != http.StatusOK {
		t.Fatalf("post-completion status = %d, body %s", rec.Code, rec.Body)
	}
	var summary domain.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summary.KeyPoints) != 1 {
		t.Errorf("unexpected key points: %+v", summary.KeyPoints)
	}
}

func TestSummarizeMalformedID(t *testing.T) {
	e := newTestEnv(t, domain.StatusTranscribed, true)
	rec := e.do(http.MethodPost, "/summarize/not-a-uuid")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}
