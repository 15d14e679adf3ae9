package bookvault

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bookvault/bookvault/pkg/bookvault/objectkey"
)

// service implements the Service interface
type service struct {
	repository Repository
	store      BlobStore
	keys       objectkey.Generator
	resolver   *Resolver
	logger     *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the book repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the storage backend for the service. Exactly one
// backend is active per deployment.
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithKeyGenerator overrides the object key layout
func WithKeyGenerator(g objectkey.Generator) Option {
	return func(s *service) {
		s.keys = g
	}
}

// WithResolver sets a preconfigured resolver
func WithResolver(r *Resolver) Option {
	return func(s *service) {
		s.resolver = r
	}
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(s *service) {
		s.logger = l
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		keys:   objectkey.NewOwnerScopedGenerator(),
		logger: slog.Default(),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.resolver == nil {
		s.resolver = NewResolver(s.store, WithResolverLogger(s.logger))
	}

	return s, nil
}

func (s *service) CreateBook(ctx context.Context, req CreateBookRequest) (*Book, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	// Record first, artifact second: keys are namespaced by the book id,
	// so the id must exist before any storage write.
	now := time.Now().UTC()
	book := &Book{
		ID:          uuid.New(),
		OwnerID:     req.OwnerID,
		Name:        req.Name,
		Genre:       req.Genre,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repository.CreateBook(ctx, book); err != nil {
		return nil, &BookError{BookID: book.ID, Op: "create", Err: err}
	}

	if err := s.attachContent(ctx, book, req); err != nil {
		// The record stays: a visible incomplete book beats silent data
		// loss, and deleting here could destroy a record whose upload
		// failure is transient.
		return nil, err
	}

	s.attachCoverBestEffort(ctx, book, req.Cover)

	created, err := s.repository.GetBook(ctx, book.ID)
	if err != nil {
		return nil, &BookError{BookID: book.ID, Op: "create", Err: err}
	}
	return created, nil
}

// attachContent uploads the file source or stores the external link. File
// wins when both are present.
func (s *service) attachContent(ctx context.Context, book *Book, req CreateBookRequest) error {
	if req.File != nil {
		key := s.keys.GenerateKey(book.OwnerID, book.ID, objectkey.KindBook, req.File.FileName)
		if err := s.store.Put(ctx, key, req.File.Reader, req.File.ContentType); err != nil {
			s.logger.Error("artifact upload failed", "book_id", book.ID, "key", key, "error", err)
			return &BookError{BookID: book.ID, Op: "upload_artifact", Err: fmt.Errorf("%w: %v", ErrUploadFailed, err)}
		}
		ref := &ArtifactRef{Kind: RefKindObjectStorage, Locator: key}
		if err := s.repository.AttachArtifact(ctx, book.ID, ref); err != nil {
			return &BookError{BookID: book.ID, Op: "attach_artifact", Err: err}
		}
		return nil
	}

	ref := &ArtifactRef{Kind: RefKindExternalLink, Locator: req.ExternalURL}
	if err := s.repository.AttachArtifact(ctx, book.ID, ref); err != nil {
		return &BookError{BookID: book.ID, Op: "attach_artifact", Err: err}
	}
	return nil
}

// attachCoverBestEffort uploads the cover image. A cover failure never rolls
// back a successful artifact; the book is usable without one.
func (s *service) attachCoverBestEffort(ctx context.Context, book *Book, cover *FileUpload) {
	if cover == nil {
		return
	}

	key := s.keys.GenerateKey(book.OwnerID, book.ID, objectkey.KindCover, cover.FileName)
	if err := s.store.Put(ctx, key, cover.Reader, cover.ContentType); err != nil {
		s.logger.Warn("cover upload failed, continuing without cover",
			"book_id", book.ID, "key", key, "error", err)
		return
	}

	ref := &ArtifactRef{Kind: RefKindObjectStorage, Locator: key}
	if err := s.repository.AttachCover(ctx, book.ID, ref); err != nil {
		s.logger.Warn("cover attach failed, continuing without cover",
			"book_id", book.ID, "error", err)
	}
}

func validateCreate(req CreateBookRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(req.Genre) == "" {
		return &ValidationError{Field: "genre", Reason: "must not be empty"}
	}
	if req.File == nil && req.ExternalURL == "" {
		return &ValidationError{Field: "content", Reason: "either a file or an external URL is required"}
	}
	if req.File == nil && req.ExternalURL != "" {
		u, err := url.Parse(req.ExternalURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return &ValidationError{Field: "bookUrl", Reason: "must be an absolute http(s) URL"}
		}
	}
	return nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	return s.repository.GetBook(ctx, id)
}

func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	return s.repository.ListBooks(ctx)
}

func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	book, err := s.repository.GetBook(ctx, id)
	if err != nil {
		return &BookError{BookID: id, Op: "delete", Err: err}
	}

	// Best-effort storage cleanup before the record goes. Objects already
	// gone are fine; failures are logged and never block the delete.
	prefix := s.keys.Prefix(book.OwnerID, book.ID)
	keys, err := s.store.List(ctx, prefix)
	if err != nil {
		s.logger.Warn("listing storage objects for delete failed, continuing",
			"book_id", id, "prefix", prefix, "error", err)
	}
	for _, key := range keys {
		if err := s.store.Remove(ctx, key); err != nil {
			s.logger.Warn("removing storage object failed, continuing",
				"book_id", id, "key", key, "error", err)
		}
	}

	if err := s.repository.DeleteBook(ctx, id); err != nil {
		return &BookError{BookID: id, Op: "delete", Err: err}
	}

	s.logger.Info("book deleted", "book_id", id, "objects_removed", len(keys))
	return nil
}

func (s *service) ResolveContent(ctx context.Context, id uuid.UUID, use ResolveUse) (Resolution, error) {
	// Always resolve against the latest persisted record.
	book, err := s.repository.GetBook(ctx, id)
	if err != nil {
		return Resolution{}, &BookError{BookID: id, Op: "resolve", Err: err}
	}

	return s.resolver.Resolve(ctx, book, use)
}

func (s *service) OpenArtifact(ctx context.Context, id uuid.UUID) (io.ReadCloser, *ObjectInfo, error) {
	book, err := s.repository.GetBook(ctx, id)
	if err != nil {
		return nil, nil, &BookError{BookID: id, Op: "open_artifact", Err: err}
	}
	return s.openRef(ctx, book.ID, book.ArtifactRef)
}

func (s *service) OpenCover(ctx context.Context, id uuid.UUID) (io.ReadCloser, *ObjectInfo, error) {
	book, err := s.repository.GetBook(ctx, id)
	if err != nil {
		return nil, nil, &BookError{BookID: id, Op: "open_cover", Err: err}
	}
	return s.openRef(ctx, book.ID, book.CoverRef)
}

func (s *service) openRef(ctx context.Context, bookID uuid.UUID, ref *ArtifactRef) (io.ReadCloser, *ObjectInfo, error) {
	if ref == nil || ref.Kind == RefKindExternalLink {
		return nil, nil, &BookError{BookID: bookID, Op: "open", Err: ErrNoStoredArtifact}
	}

	info, err := s.store.Stat(ctx, ref.Locator)
	if err != nil {
		return nil, nil, &StorageError{Key: ref.Locator, Op: "stat", Err: err}
	}

	reader, err := s.store.Get(ctx, ref.Locator)
	if err != nil {
		return nil, nil, &StorageError{Key: ref.Locator, Op: "get", Err: err}
	}
	return reader, info, nil
}
