package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("message not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrClaimConflict = errors.New("message already claimed")
)

// StoreError reports a backend failure of a store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ValidationError names the offending field of a rejected request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
