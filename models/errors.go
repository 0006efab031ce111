package models

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable reports that the record store could not be reached.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrConfiguration reports invalid cache or store configuration.
	ErrConfiguration = errors.New("invalid configuration")
)

// StoreError wraps a failure returned by a record store operation.
type StoreError struct {
	Op          string
	Err         error
	Unavailable bool
}

// NewStoreError wraps err for op. Unavailable marks connectivity failures.
func NewStoreError(op string, err error, unavailable bool) *StoreError {
	return &StoreError{Op: op, Err: err, Unavailable: unavailable}
}

func (e *StoreError) Error() string {
	if e.Unavailable {
		return fmt.Sprintf("%s: %v: %v", e.Op, ErrStoreUnavailable, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStoreUnavailable) match unavailable store errors.
func (e *StoreError) Is(target error) bool {
	return e.Unavailable && target == ErrStoreUnavailable
}

// Temporary reports whether retrying the operation may succeed.
func (e *StoreError) Temporary() bool {
	return e.Unavailable
}
