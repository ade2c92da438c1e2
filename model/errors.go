package model

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("access denied")
	ErrMalformedDocument = errors.New("malformed document")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
)

// Problems folds the collected problems into a single ErrValidation, or nil when there are none.
func Problems(merr *multierror.Error) error {
	if merr.ErrorOrNil() == nil {
		return nil
	}
	merr.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return errors.Wrap(ErrValidation, merr.Error())
}
