package entitystore

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrMismatch      = errors.New("id mismatch")
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnsupported   = errors.New("unsupported for collection layout")
)

type MismatchError struct {
	PathID     string
	DocumentID string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("id mismatch: path id %q, document id %q", e.PathID, e.DocumentID)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}

type ValidationError struct {
	Collection string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.Collection == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s document: %s", e.Collection, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
