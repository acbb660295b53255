package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrMissingCredential = errors.New("api credential is not set")
	ErrUpstream          = errors.New("quote provider request failed")
	ErrMalformedPayload  = errors.New("quote provider returned malformed payload")
	ErrQuoteNotFound     = errors.New("quote object missing from payload")
	ErrMissingField      = errors.New("quote field missing from payload")
	ErrInvalidField      = errors.New("quote field has invalid value")
)

// CoercionError carries the raw field values that failed numeric conversion.
type CoercionError struct {
	Price  string
	Volume string
	Err    error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("convert quote fields (price=%q volume=%q): %v", e.Price, e.Volume, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

func (e *CoercionError) Is(target error) bool { return target == ErrInvalidField }
