package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidState  = errors.New("invalid state")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrSignature     = errors.New("signature verification failed")
)

// QuotaExceededError carries the ceiling and the count observed under lock.
type QuotaExceededError struct {
	Limit   int
	Current int
}

func (e *QuotaExceededError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %d of %d emails used", ErrQuotaExceeded, e.Current, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}
