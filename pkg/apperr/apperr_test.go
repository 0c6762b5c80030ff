package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{InvalidArgument, http.StatusUnprocessableEntity},
		{NotFound, http.StatusNotFound},
		{Unauthorized, http.StatusUnauthorized},
		{Conflict, http.StatusConflict},
		{FailedPrecondition, http.StatusPreconditionFailed},
		{Unavailable, http.StatusServiceUnavailable},
		{Internal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(New(tc.kind, "x")); got != tc.want {
			t.Fatalf("kind %d: got status %d want %d", tc.kind, got, tc.want)
		}
	}
}

func TestUnclassifiedErrorIsInternal(t *testing.T) {
	if got := HTTPStatus(errors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("got %d want 500", got)
	}
	if got := KindOf(errors.New("boom")); got != Internal {
		t.Fatalf("got kind %d want Internal", got)
	}
}

func TestWrapPreservesCauseAndKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(Unavailable, "probe recording service", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive errors.Is")
	}
	if KindOf(err) != Unavailable {
		t.Fatal("expected Unavailable kind")
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if KindOf(wrapped) != Unavailable {
		t.Fatal("expected kind to survive further wrapping")
	}
}
