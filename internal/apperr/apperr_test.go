package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"auth", AuthRequired(), http.StatusUnauthorized},
		{"forbidden", Forbidden("refresh is restricted to admins"), http.StatusForbidden},
		{"validation", Validation("company_name is required"), http.StatusBadRequest},
		{"not found", NotFound("application not found"), http.StatusNotFound},
		{"conflict", Conflict("already applied"), http.StatusConflict},
		{"unavailable", Unavailable("list jobs", errors.New("db down")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("handler: %w", Conflict("dup")), http.StatusConflict},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := Unavailable("load preferences", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through errors.Is")
	}
	if !Is(err, KindUnavailable) {
		t.Fatalf("expected unavailable kind, got %s", KindOf(err))
	}
	if MessageOf(errors.New("secret detail")) != "internal server error" {
		t.Fatalf("unclassified errors must not leak their message")
	}
}
