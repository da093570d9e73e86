package services_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"corrflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("disk full")
	err := services.Wrap(services.ErrPersistence, "workflow", "sign", "update stage", base)
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"workflow", "sign", "update stage", "disk full"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrValidation, "", "", "subject required", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrNotFound, "", "", "correspondence 4", nil), http.StatusNotFound},
		{services.Wrap(services.ErrNotYourTurn, "", "", "", nil), http.StatusForbidden},
		{services.Wrap(services.ErrInvalidTransition, "", "", "", nil), http.StatusConflict},
		{services.Wrap(services.ErrUnauthenticated, "", "", "", nil), http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := services.HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestPublicMessageHidesInternalErrors(t *testing.T) {
	err := services.Wrap(services.ErrPersistence, "store", "insert", "", errors.New("SQL logic error near line 4"))
	if msg := services.PublicMessage(err); msg != "internal error" {
		t.Fatalf("expected generic message, got %q", msg)
	}
	validation := services.Wrap(services.ErrValidation, "", "", "priority must be normal, important, or urgent", nil)
	if msg := services.PublicMessage(validation); !strings.Contains(msg, "priority") {
		t.Fatalf("expected validation detail, got %q", msg)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := services.WithCorrespondenceID(context.Background(), 7)
	ctx = services.WithUserID(ctx, 3)
	ctx = services.WithRequestID(ctx, "req-1")
	if id, ok := services.CorrespondenceIDFromContext(ctx); !ok || id != 7 {
		t.Fatalf("unexpected correspondence id %d %v", id, ok)
	}
	if id, ok := services.UserIDFromContext(ctx); !ok || id != 3 {
		t.Fatalf("unexpected user id %d %v", id, ok)
	}
	if id, ok := services.RequestIDFromContext(ctx); !ok || id != "req-1" {
		t.Fatalf("unexpected request id %q %v", id, ok)
	}
	if _, ok := services.UserIDFromContext(services.WithUserID(context.Background(), 0)); ok {
		t.Fatal("expected zero user id to be ignored")
	}
}
