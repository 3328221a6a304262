package domain

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound = errors.New("not found")
)

// ValidationError is a failed local precondition. Status is 400 or 422.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Status: http.StatusBadRequest, Message: msg}
}

func NewUnprocessableError(msg string) *ValidationError {
	return &ValidationError{Status: http.StatusUnprocessableEntity, Message: msg}
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NewNotFoundError(msg string) *NotFoundError {
	return &NotFoundError{Message: msg}
}
