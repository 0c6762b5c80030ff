package usertoken

import (
	"net/http"
	"testing"
	"time"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	authority, err := NewAuthority(Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	token, err := authority.Issue("user-123")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	subject, err := authority.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "user-123" {
		t.Fatalf("got subject %q want %q", subject, "user-123")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer, err := NewAuthority(Config{Secret: "secret-a"})
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	verifier, err := NewAuthority(Config{Secret: "secret-b"})
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	token, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); err != ErrInvalidToken {
		t.Fatalf("got %v want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	authority, err := NewAuthority(Config{
		Secret: "test-secret",
		TTL:    time.Millisecond,
		Leeway: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	token, err := authority.Issue("user-123")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := authority.Verify(token); err != ErrInvalidToken {
		t.Fatalf("got %v want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	authority, err := NewAuthority(Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := authority.Verify(token); err != ErrInvalidToken {
			t.Fatalf("token %q: got %v want ErrInvalidToken", token, err)
		}
	}
}

func TestBearerToken(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	if _, ok := BearerToken(r); ok {
		t.Fatal("expected missing header to fail")
	}
	r.Header.Set("Authorization", "Basic abc")
	if _, ok := BearerToken(r); ok {
		t.Fatal("expected non-bearer scheme to fail")
	}
	r.Header.Set("Authorization", "Bearer tok-1")
	token, ok := BearerToken(r)
	if !ok || token != "tok-1" {
		t.Fatalf("got (%q, %v) want (tok-1, true)", token, ok)
	}
}
