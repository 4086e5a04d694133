package models

import (
	"errors"
	"fmt"
)

// Domain failure modes. Handlers map these to HTTP statuses; nothing below
// is retried by the core.
var (
	// ErrNotFound covers a missing loan, tracking record or stored file.
	ErrNotFound = errors.New("not found")
	// ErrAlreadySigned guards against double-signing and against replacing
	// the signature image after signing.
	ErrAlreadySigned = errors.New("agreement already signed")
	// ErrMissingSignature is returned when signing is attempted before a
	// signature image was uploaded.
	ErrMissingSignature = errors.New("no signature image uploaded")
	// ErrUnsupportedImageFormat is returned for signature images that are
	// neither PNG nor JPEG.
	ErrUnsupportedImageFormat = errors.New("unsupported signature image format")
)

// ValidationError reports bad or missing input data.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError wraps a content-store IO failure.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err with the failed operation and path.
func NewStorageError(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
