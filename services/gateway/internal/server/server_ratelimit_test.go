package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"meetingminutes/internal/usertoken"
	"meetingminutes/services/gateway/internal/identityclient"
	"meetingminutes/services/gateway/internal/recordingclient"
	"meetingminutes/services/gateway/internal/summarizationclient"
	"meetingminutes/services/gateway/internal/transcriptionclient"
)

func newRateLimitGateway(t *testing.T, identityURL string, registerLimit, loginLimit int) *httptest.Server {
	t.Helper()
	tokens, err := usertoken.NewAuthority(usertoken.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("new token authority: %v", err)
	}
	redis := miniredis.RunT(t)
	gw, err := New(Config{
		Identity:      identityclient.NewClient(identityURL),
		Recording:     recordingclient.NewClient(identityURL),
		Transcription: transcriptionclient.NewClient(identityURL),
		Summarization: summarizationclient.NewClient(identityURL),
		Tokens:        tokens,
		RedisAddr:     redis.Addr(),

		RegisterRateLimitPerMinute: registerLimit,
		LoginRateLimitPerMinute:    loginLimit,
	})
	if err != nil {
		t.Fatalf("new gateway server: %v", err)
	}
	srv := httptest.NewServer(gw.Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginRateLimit(t *testing.T) {
	identitySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "t"})
	}))
	defer identitySrv.Close()

	gateway := newRateLimitGateway(t, identitySrv.URL, 10, 1)

	body := []byte(`{"email":"u@example.com","password":"pass"}`)
	resp1, err := http.Post(gateway.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("first login request failed: %v", err)
	}
	resp1.Body.Close()
	if resp1.StatusCode != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", resp1.StatusCode)
	}

	resp2, err := http.Post(gateway.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("second login request failed: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", resp2.StatusCode)
	}
	if resp2.Header.Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After header, got %q", resp2.Header.Get("Retry-After"))
	}
}

func TestRegisterRateLimitDoesNotConsumeLoginQuota(t *testing.T) {
	identitySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/register":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"userId": "u-1"})
		case "/auth/login":
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "t"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer identitySrv.Close()

	gateway := newRateLimitGateway(t, identitySrv.URL, 1, 1)

	registerBody := []byte(`{"email":"u@example.com","password":"longenoughpw1","name":"u"}`)
	resp, err := http.Post(gateway.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(registerBody))
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register expected 201, got %d", resp.StatusCode)
	}

	// Register quota is spent; login has its own window.
	loginBody := []byte(`{"email":"u@example.com","password":"longenoughpw1"}`)
	resp, err = http.Post(gateway.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(loginBody))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Post(gateway.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(registerBody))
	if err != nil {
		t.Fatalf("second register request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second register expected 429, got %d", resp.StatusCode)
	}
}

func TestGatewayRequiresRedisRateLimiter(t *testing.T) {
	tokens, err := usertoken.NewAuthority(usertoken.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("new token authority: %v", err)
	}
	_, err = New(Config{
		Identity:      identityclient.NewClient("http://identity"),
		Recording:     recordingclient.NewClient("http://recording"),
		Transcription: transcriptionclient.NewClient("http://transcription"),
		Summarization: summarizationclient.NewClient("http://summarization"),
		Tokens:        tokens,
	})
	if err == nil {
		t.Fatalf("expected redis-backed limiter initialization to fail without redis addr")
	}
}
