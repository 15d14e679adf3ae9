package bookvault

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends.
//
// Implementations must keep two failure modes apart: ErrBackendUnavailable
// when the container (bucket, base directory) is missing or unreachable, and
// ErrObjectNotFound when the specific object is absent. They surface as
// different user remediations and are never interchangeable.
type BlobStore interface {
	// Put writes content under objectKey, overwriting any previous object
	// at the same key.
	Put(ctx context.Context, objectKey string, reader io.Reader, contentType string) error

	// GetAccessURL returns a fetchable URL for the object. Backends with
	// access control sign a fresh URL on every call, valid for ttl.
	GetAccessURL(ctx context.Context, objectKey string, ttl time.Duration) (*AccessURL, error)

	// PublicURL returns the unsigned form of an object's URL, when the
	// backend has one. Used as a one-shot fallback when signing fails.
	PublicURL(objectKey string) (string, bool)

	// Stat returns the object's metadata without reading its bytes.
	Stat(ctx context.Context, objectKey string) (*ObjectInfo, error)

	// Get reads the object's bytes directly.
	Get(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Remove deletes the object. Removing a missing object is not an
	// error: the desired state already holds.
	Remove(ctx context.Context, objectKey string) error

	// List returns the keys of all objects under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Repository defines the interface for book record persistence.
type Repository interface {
	CreateBook(ctx context.Context, book *Book) error
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	// ListBooks returns all books, most recently created first.
	ListBooks(ctx context.Context) ([]*Book, error)

	// AttachArtifact and AttachCover are partial updates: each sets its
	// own reference without touching the sibling.
	AttachArtifact(ctx context.Context, id uuid.UUID, ref *ArtifactRef) error
	AttachCover(ctx context.Context, id uuid.UUID, ref *ArtifactRef) error

	DeleteBook(ctx context.Context, id uuid.UUID) error
}
