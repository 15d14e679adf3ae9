package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookvault/bookvault/pkg/bookvault"
)

// Repository implements bookvault.Repository using in-memory storage
type Repository struct {
	mu    sync.RWMutex
	books map[uuid.UUID]*bookvault.Book
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		books: make(map[uuid.UUID]*bookvault.Book),
	}
}

func (r *Repository) CreateBook(ctx context.Context, book *bookvault.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to avoid external modifications
	bookCopy := cloneBook(book)
	r.books[book.ID] = bookCopy

	return nil
}

func (r *Repository) GetBook(ctx context.Context, id uuid.UUID) (*bookvault.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, exists := r.books[id]
	if !exists {
		return nil, bookvault.ErrBookNotFound
	}

	return cloneBook(book), nil
}

func (r *Repository) ListBooks(ctx context.Context) ([]*bookvault.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*bookvault.Book, 0, len(r.books))
	for _, book := range r.books {
		result = append(result, cloneBook(book))
	}

	// Most recently created first
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) AttachArtifact(ctx context.Context, id uuid.UUID, ref *bookvault.ArtifactRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, exists := r.books[id]
	if !exists {
		return bookvault.ErrBookNotFound
	}

	book.ArtifactRef = cloneRef(ref)
	book.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) AttachCover(ctx context.Context, id uuid.UUID, ref *bookvault.ArtifactRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, exists := r.books[id]
	if !exists {
		return bookvault.ErrBookNotFound
	}

	book.CoverRef = cloneRef(ref)
	book.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) DeleteBook(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.books[id]; !exists {
		return bookvault.ErrBookNotFound
	}

	delete(r.books, id)
	return nil
}

func cloneBook(book *bookvault.Book) *bookvault.Book {
	bookCopy := *book
	bookCopy.ArtifactRef = cloneRef(book.ArtifactRef)
	bookCopy.CoverRef = cloneRef(book.CoverRef)
	return &bookCopy
}

func cloneRef(ref *bookvault.ArtifactRef) *bookvault.ArtifactRef {
	if ref == nil {
		return nil
	}
	refCopy := *ref
	return &refCopy
}
