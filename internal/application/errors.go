package application

import (
	"errors"

	"stockdata-pipeline/internal/domain"
)

var ErrNotFound = domain.ErrNotFound
var ErrConflict = errors.New("conflict")
var ErrBadRequest = errors.New("bad request")

// Retryable reports whether running the same task again could succeed.
// Configuration problems are not retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, domain.ErrMissingCredential) && !errors.Is(err, domain.ErrInvalidSymbol)
}
