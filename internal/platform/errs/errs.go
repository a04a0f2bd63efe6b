package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

// Error kinds shared by the domain services. Callers branch with errors.Is;
// handlers translate them to HTTP statuses. No raw store error crosses a
// service boundary.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidInput = errors.New("invalid input")
)

const uniqueViolation = "23505"

var kinds = []error{ErrNotFound, ErrUnauthorized, ErrConflict, ErrUnavailable, ErrInvalidInput}

// Classify translates a store-level error into one of the shared kinds,
// keeping the underlying detail in the chain. Errors already carrying a kind
// pass through untouched. pgx.ErrNoRows stays a lookup miss, unique
// violations become conflicts, and everything else is treated as retryable
// unavailability.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return err
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// HTTP maps a classified error to an echo HTTP error, preserving the
// human-readable message so the UI can render targeted guidance. Unavailable
// and unclassified errors hide their detail.
func HTTP(err error) error {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service temporarily unavailable, please retry")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
