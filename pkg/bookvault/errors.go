package bookvault

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrBookNotFound indicates a book record was not found
	ErrBookNotFound = errors.New("book not found")

	// ErrObjectNotFound indicates a specific stored object is missing.
	// Distinct from ErrBackendUnavailable: the container is fine, the
	// object is gone.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBackendUnavailable indicates the storage container itself is
	// missing or unreachable. This is an administrator configuration
	// problem and must never be conflated with a missing object.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrNoStoredArtifact indicates the book has no artifact held by the
	// active storage backend (content-less, or an external link)
	ErrNoStoredArtifact = errors.New("book has no stored artifact")

	// ErrValidation indicates bad caller input; never retried
	ErrValidation = errors.New("validation failed")

	// ErrUploadFailed indicates a storage write failed
	ErrUploadFailed = errors.New("upload failed")
)

// BookError represents an error related to book operations
type BookError struct {
	BookID uuid.UUID
	Op     string
	Err    error
}

func (e *BookError) Error() string {
	return fmt.Sprintf("book operation %s failed for book %s: %v", e.Op, e.BookID, e.Err)
}

func (e *BookError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations. Backend
// names the storage backend when the caller knows it; it may be empty.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
	}
	return fmt.Sprintf("storage operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValidationError carries the offending field for bad input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
