package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"meetingminutes/internal/usertoken"
	"meetingminutes/services/gateway/internal/identityclient"
	"meetingminutes/services/gateway/internal/recordingclient"
	"meetingminutes/services/gateway/internal/summarizationclient"
	"meetingminutes/services/gateway/internal/transcriptionclient"
)

func newHealthGateway(t *testing.T, identityURL, recordingURL, transcriptionURL, summarizationURL string, probeTimeout time.Duration) *httptest.Server {
	t.Helper()
	tokens, err := usertoken.NewAuthority(usertoken.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("new token authority: %v", err)
	}
	redis := miniredis.RunT(t)
	gw, err := New(Config{
		Identity:      identityclient.NewClient(identityURL),
		Recording:     recordingclient.NewClient(recordingURL),
		Transcription: transcriptionclient.NewClient(transcriptionURL),
		Summarization: summarizationclient.NewClient(summarizationURL),
		Tokens:        tokens,
		RedisAddr:     redis.Addr(),
		ProbeTimeout:  probeTimeout,
	})
	if err != nil {
		t.Fatalf("new gateway server: %v", err)
	}
	srv := httptest.NewServer(gw.Router())
	t.Cleanup(srv.Close)
	return srv
}

func getHealth(t *testing.T, gateway *httptest.Server) (int, map[string]string, string) {
	t.Helper()
	resp, err := http.Get(gateway.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	return resp.StatusCode, body.Components, body.Status
}

func healthzOK() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
}

func TestHealthReportsPerComponentStates(t *testing.T) {
	healthy := healthzOK()
	defer healthy.Close()

	erroring := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"database down"}`))
	}))
	defer erroring.Close()

	probeCanceled := make(chan struct{})
	hanging := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(probeCanceled)
		case <-time.After(2 * time.Second):
		}
	}))
	defer hanging.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	gateway := newHealthGateway(t, healthy.URL, erroring.URL, hanging.URL, dead.URL, 300*time.Millisecond)

	start := time.Now()
	status, components, overall := getHealth(t, gateway)
	elapsed := time.Since(start)

	if status != http.StatusOK {
		t.Fatalf("one healthy component should keep /health at 200, got %d", status)
	}
	if overall != "ok" {
		t.Fatalf("expected overall ok, got %q", overall)
	}
	expect := map[string]string{
		"identity":      "healthy",
		"recording":     "unhealthy",
		"transcription": "unavailable",
		"summarization": "unavailable",
	}
	for name, want := range expect {
		if got := components[name]; got != want {
			t.Errorf("component %s: expected %s, got %s", name, want, got)
		}
	}
	// Probes run concurrently; the hung one is cut off by its own
	// timeout, not waited out.
	if elapsed > 1500*time.Millisecond {
		t.Fatalf("health fan-out took %v, probes are not bounded or not concurrent", elapsed)
	}
	// The probe timeout cancels the in-flight HTTP request itself, it
	// does not just stop waiting for it.
	select {
	case <-probeCanceled:
	case <-time.After(time.Second):
		t.Fatal("hung component kept its probe request past the timeout")
	}
}

func TestHealthAllUnavailableIs503(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	gateway := newHealthGateway(t, dead.URL, dead.URL, dead.URL, dead.URL, 300*time.Millisecond)

	status, components, overall := getHealth(t, gateway)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("all components down should give 503, got %d", status)
	}
	if overall != "unavailable" {
		t.Fatalf("expected overall unavailable, got %q", overall)
	}
	for name, state := range components {
		if state != "unavailable" {
			t.Errorf("component %s: expected unavailable, got %s", name, state)
		}
	}
	if len(components) != 4 {
		t.Fatalf("expected 4 components in report, got %d", len(components))
	}
}

func TestHealthRejectsNonGet(t *testing.T) {
	healthy := healthzOK()
	defer healthy.Close()
	gateway := newHealthGateway(t, healthy.URL, healthy.URL, healthy.URL, healthy.URL, time.Second)

	resp, err := http.Post(gateway.URL+"/health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
