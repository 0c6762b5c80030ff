package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"meetingminutes/internal/usertoken"
	"meetingminutes/pkg/domain"
	"meetingminutes/pkg/store"
	"meetingminutes/services/identity/app"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, store.NewMemoryStore())
}

func newTestServerWith(t *testing.T, dataStore store.Store) *Server {
	t.Helper()
	tokens, err := usertoken.NewAuthority(usertoken.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	appCore, err := app.New(app.Config{
		Store:  dataStore,
		Tokens: tokens,
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return New(Config{App: appCore})
}

func doRequest(s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/auth/register", `{"email":"dana@example.com","password":"correct-horse","name":"Dana"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body)
	}
	var reg struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil || reg.UserID == "" {
		t.Fatalf("register response missing userId: %s", rec.Body)
	}

	rec = doRequest(s, http.MethodPost, "/auth/login", `{"email":"dana@example.com","password":"correct-horse"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("login response missing token: %s", rec.Body)
	}

	rec = doRequest(s, http.MethodGet, "/auth/me", "", login.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, body %s", rec.Code, rec.Body)
	}
	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.ID != reg.UserID || me.Email != "dana@example.com" {
		t.Errorf("me = %+v, want id %s", me, reg.UserID)
	}
	if strings.Contains(rec.Body.String(), "passwordHash") {
		t.Error("response must not leak password hash")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	body := `{"email":"dup@example.com","password":"long-enough"}`
	if rec := doRequest(s, http.MethodPost, "/auth/register", body, ""); rec.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", rec.Code)
	}
	rec := doRequest(s, http.MethodPost, "/auth/register", body, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		name string
		body string
	}{
		{"missing email", `{"password":"long-enough"}`},
		{"missing password", `{"email":"a@example.com"}`},
		{"short password", `{"email":"a@example.com","password":"short"}`},
		{"bad email", `{"email":"not-an-email","password":"long-enough"}`},
		{"bad json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/auth/register", tc.body, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)
	doRequest(s, http.MethodPost, "/auth/register", `{"email":"real@example.com","password":"long-enough"}`, "")

	unknown := doRequest(s, http.MethodPost, "/auth/login", `{"email":"ghost@example.com","password":"long-enough"}`, "")
	badPass := doRequest(s, http.MethodPost, "/auth/login", `{"email":"real@example.com","password":"wrong-password"}`, "")

	if unknown.Code != http.StatusUnauthorized || badPass.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d, want 401 for both", unknown.Code, badPass.Code)
	}
	if unknown.Body.String() != badPass.Body.String() {
		t.Errorf("unknown-email and bad-password responses differ: %s vs %s", unknown.Body, badPass.Body)
	}
}

func TestMeRejectsBadTokens(t *testing.T) {
	s := newTestServer(t)
	for _, token := range []string{"", "garbage", "eyJhbGciOiJIUzI1NiJ9.e30.bad"} {
		rec := doRequest(s, http.MethodGet, "/auth/me", "", token)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rec.Code)
		}
	}
}

// brokenStore simulates a database outage on the credential lookups.
type brokenStore struct {
	store.Store
}

func (brokenStore) HasUserEmail(string) (bool, error) {
	return false, errors.New("connection reset")
}

func (brokenStore) GetUserByEmail(string) (domain.User, bool, error) {
	return domain.User{}, false, errors.New("connection reset")
}

func TestStoreFailuresAreOpaque500s(t *testing.T) {
	s := newTestServerWith(t, brokenStore{Store: store.NewMemoryStore()})

	rec := doRequest(s, http.MethodPost, "/auth/register", `{"email":"dana@example.com","password":"correct-horse","name":"Dana"}`, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("register during outage: status = %d, want 500, body %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Errorf("register leaked the store failure: %s", rec.Body)
	}

	rec = doRequest(s, http.MethodPost, "/auth/login", `{"email":"dana@example.com","password":"correct-horse"}`, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("login during outage: status = %d, want 500, body %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Errorf("login leaked the store failure: %s", rec.Body)
	}
}

// racingStore never sees the email as taken, so the save itself must
// arbitrate duplicates the way the unique index does under concurrent
// registration.
type racingStore struct {
	store.Store
}

func (racingStore) HasUserEmail(string) (bool, error) {
	return false, nil
}

func TestDuplicateRegistrationRaceIsConflict(t *testing.T) {
	s := newTestServerWith(t, racingStore{Store: store.NewMemoryStore()})

	body := `{"email":"dana@example.com","password":"correct-horse","name":"Dana"}`
	rec := doRequest(s, http.MethodPost, "/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("first register: status = %d, body %s", rec.Code, rec.Body)
	}
	rec = doRequest(s, http.MethodPost, "/auth/register", body, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("race-losing register: status = %d, want 409, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "already registered") {
		t.Errorf("unexpected conflict message: %s", rec.Body)
	}
}
