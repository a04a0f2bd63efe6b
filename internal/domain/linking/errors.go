package linking

import "github.com/carelink/carelink/internal/platform/errs"

// The linking service surfaces the shared error kinds; they are re-exported
// here so callers and tests inside the package read naturally.
var (
	ErrNotFound     = errs.ErrNotFound
	ErrUnauthorized = errs.ErrUnauthorized
	ErrConflict     = errs.ErrConflict
	ErrUnavailable  = errs.ErrUnavailable
	ErrInvalidInput = errs.ErrInvalidInput
)

func classify(err error) error { return errs.Classify(err) }
