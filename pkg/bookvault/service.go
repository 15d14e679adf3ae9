package bookvault

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the bookvault library.
type Service interface {
	// CreateBook validates the request, persists the record, uploads the
	// artifact and cover through the storage backend, and attaches the
	// resulting references. The record is created before any storage
	// write so object keys can be namespaced by its id.
	CreateBook(ctx context.Context, req CreateBookRequest) (*Book, error)

	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	ListBooks(ctx context.Context) ([]*Book, error)

	// DeleteBook removes the book's storage objects best-effort, then the
	// record. Cleanup failures are logged and never block the delete.
	DeleteBook(ctx context.Context, id uuid.UUID) error

	// ResolveContent re-fetches the record and resolves its content to an
	// AccessURL. The re-fetch is deliberate: an edit may have changed the
	// backend kind since the caller last saw the record.
	ResolveContent(ctx context.Context, id uuid.UUID, use ResolveUse) (Resolution, error)

	// OpenArtifact and OpenCover read stored bytes directly, for serving
	// over the local file-server surface. The returned ObjectInfo carries
	// the content type recorded at upload.
	OpenArtifact(ctx context.Context, id uuid.UUID) (io.ReadCloser, *ObjectInfo, error)
	OpenCover(ctx context.Context, id uuid.UUID) (io.ReadCloser, *ObjectInfo, error)
}
