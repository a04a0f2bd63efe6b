package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

func TestClassify_Nil(t *testing.T) {
	if err := Classify(nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestClassify_PassesThroughKinds(t *testing.T) {
	wrapped := fmt.Errorf("%w: profile missing", ErrNotFound)
	got := Classify(wrapped)
	if got != wrapped {
		t.Errorf("expected already-classified error untouched, got %v", got)
	}
}

func TestClassify_NoRows(t *testing.T) {
	got := Classify(fmt.Errorf("query: %w", pgx.ErrNoRows))
	if !errors.Is(got, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", got)
	}
}

func TestClassify_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "profiles_invite_code_key"}
	got := Classify(fmt.Errorf("insert: %w", pgErr))
	if !errors.Is(got, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", got)
	}
}

func TestClassify_OtherPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503"}
	got := Classify(pgErr)
	if !errors.Is(got, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for non-unique pg error, got %v", got)
	}
}

func TestClassify_ContextCancellation(t *testing.T) {
	got := Classify(context.Canceled)
	if !errors.Is(got, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", got)
	}
}

func TestHTTP_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: bad code", ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: not your patient", ErrUnauthorized), http.StatusForbidden},
		{fmt.Errorf("%w: no such profile", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: already linked", ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: db down", ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("mystery"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		httpErr, ok := HTTP(tc.err).(*echo.HTTPError)
		if !ok {
			t.Fatalf("expected echo.HTTPError for %v", tc.err)
		}
		if httpErr.Code != tc.code {
			t.Errorf("error %v: expected status %d, got %d", tc.err, tc.code, httpErr.Code)
		}
	}
}

func TestHTTP_HidesUnavailableDetail(t *testing.T) {
	httpErr := HTTP(fmt.Errorf("%w: connection refused to 10.0.0.5", ErrUnavailable)).(*echo.HTTPError)
	msg, _ := httpErr.Message.(string)
	if msg != "service temporarily unavailable, please retry" {
		t.Errorf("expected generic message, got %q", msg)
	}
}
