package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("entity not found")
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError reports a missing row for a given kind and id.
type NotFoundError struct {
	Kind Kind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NewNotFoundError(k Kind, id int64) error { return &NotFoundError{Kind: k, ID: id} }

// InvalidInputError carries the offending field for transport-level messages.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return "invalid input: " + e.Message
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

func NewInvalidInputError(field, msg string) error {
	return &InvalidInputError{Field: field, Message: msg}
}
