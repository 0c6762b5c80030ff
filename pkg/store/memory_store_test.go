package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"meetingminutes/pkg/domain"
)

func TestClaimRecordingStatusSingleWinner(t *testing.T) {
	m := NewMemoryStore()
	rec := domain.Recording{
		ID:          "rec-1",
		WorkspaceID: "ws-1",
		Status:      domain.StatusUploaded,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := m.SaveRecording(rec); err != nil {
		t.Fatalf("save recording: %v", err)
	}

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := m.ClaimRecordingStatus("rec-1",
				[]domain.RecordingStatus{domain.StatusPending, domain.StatusUploaded},
				domain.StatusTranscribing)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			wins <- claimed
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for claimed := range wins {
		if claimed {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("got %d winners, want exactly 1", winners)
	}
	got, _, err := m.GetRecording("rec-1")
	if err != nil {
		t.Fatalf("get recording: %v", err)
	}
	if got.Status != domain.StatusTranscribing {
		t.Fatalf("got status %q want transcribing", got.Status)
	}
}

func TestClaimRecordingStatusRejectsWrongState(t *testing.T) {
	m := NewMemoryStore()
	rec := domain.Recording{ID: "rec-1", Status: domain.StatusCompleted}
	if err := m.SaveRecording(rec); err != nil {
		t.Fatalf("save recording: %v", err)
	}
	claimed, err := m.ClaimRecordingStatus("rec-1",
		[]domain.RecordingStatus{domain.StatusTranscribed},
		domain.StatusSummarizing)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed {
		t.Fatal("claim from wrong state must fail")
	}
	got, _, _ := m.GetRecording("rec-1")
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status must not change, got %q", got.Status)
	}
}

func TestTranscriptAndSummaryCreatedAtMostOnce(t *testing.T) {
	m := NewMemoryStore()
	if err := m.SaveTranscript(domain.Transcript{ID: "t-1", RecordingID: "rec-1"}); err != nil {
		t.Fatalf("save transcript: %v", err)
	}
	if err := m.SaveTranscript(domain.Transcript{ID: "t-2", RecordingID: "rec-1"}); err == nil {
		t.Fatal("expected duplicate transcript to be rejected")
	}
	if err := m.SaveSummary(domain.Summary{ID: "s-1", TranscriptID: "t-1"}); err != nil {
		t.Fatalf("save summary: %v", err)
	}
	if err := m.SaveSummary(domain.Summary{ID: "s-2", TranscriptID: "t-1"}); err == nil {
		t.Fatal("expected duplicate summary to be rejected")
	}
}

func TestListWorkspacesByProjectPreservesCreationOrder(t *testing.T) {
	m := NewMemoryStore()
	for _, id := range []string{"ws-a", "ws-b", "ws-c"} {
		if err := m.SaveWorkspace(domain.Workspace{ID: id, ProjectID: "p-1"}); err != nil {
			t.Fatalf("save workspace: %v", err)
		}
	}
	got, err := m.ListWorkspacesByProject("p-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].ID != "ws-a" || got[1].ID != "ws-b" || got[2].ID != "ws-c" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestSaveUserRejectsDuplicateEmail(t *testing.T) {
	m := NewMemoryStore()
	if err := m.SaveUser(domain.User{ID: "u-1", Email: "dana@example.com"}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	// Same user may be re-saved (upsert), another user may not take the email.
	if err := m.SaveUser(domain.User{ID: "u-1", Email: "dana@example.com", Name: "Dana"}); err != nil {
		t.Fatalf("re-save same user: %v", err)
	}
	err := m.SaveUser(domain.User{ID: "u-2", Email: "dana@example.com"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("duplicate email: err = %v, want ErrDuplicateEmail", err)
	}
	if _, ok, _ := m.GetUserByID("u-2"); ok {
		t.Fatal("losing save must not create a user")
	}
}
