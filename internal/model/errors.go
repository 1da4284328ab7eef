package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrInvalidID    = errors.New("invalid post id")
)

const MissingFieldsMessage = "Missing required fields"

// ValidationError is the client's fault. It is always raised before any write happens.
type ValidationError struct {
	Message string
	Fields  []string
}

func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

// NotFoundError means the id did not resolve to a record.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("post with ID %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrPostNotFound
}

// StorageError wraps a document store failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// UploadError wraps an upload sink failure.
type UploadError struct {
	Op  string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Op, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
