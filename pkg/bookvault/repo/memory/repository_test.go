package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookvault/bookvault/pkg/bookvault"
)

func newBook(name string, createdAt time.Time) *bookvault.Book {
	return &bookvault.Book{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		Name:      name,
		Genre:     "Science Fiction",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestRepositoryCreateAndGet(t *testing.T) {
	repo := New()
	ctx := context.Background()

	book := newBook("Dune", time.Now().UTC())
	require.NoError(t, repo.CreateBook(ctx, book))

	got, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.Name, got.Name)
	assert.Equal(t, book.OwnerID, got.OwnerID)

	// Mutating the returned copy must not affect the stored record.
	got.Name = "mutated"
	again, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", again.Name)
}

func TestRepositoryGetNotFound(t *testing.T) {
	repo := New()
	_, err := repo.GetBook(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, bookvault.ErrBookNotFound))
}

func TestRepositoryListOrder(t *testing.T) {
	repo := New()
	ctx := context.Background()
	base := time.Now().UTC()

	older := newBook("Older", base.Add(-time.Hour))
	newer := newBook("Newer", base)
	require.NoError(t, repo.CreateBook(ctx, older))
	require.NoError(t, repo.CreateBook(ctx, newer))

	books, err := repo.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Newer", books[0].Name)
	assert.Equal(t, "Older", books[1].Name)
}

func TestRepositoryAttachArtifact(t *testing.T) {
	repo := New()
	ctx := context.Background()

	book := newBook("Dune", time.Now().UTC())
	require.NoError(t, repo.CreateBook(ctx, book))

	ref := &bookvault.ArtifactRef{Kind: bookvault.RefKindObjectStorage, Locator: "o/b/book.epub"}
	require.NoError(t, repo.AttachArtifact(ctx, book.ID, ref))

	got, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ArtifactRef)
	assert.Equal(t, ref.Locator, got.ArtifactRef.Locator)
	assert.Nil(t, got.CoverRef, "attaching an artifact must not touch the cover")
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
}

func TestRepositoryAttachCoverIndependent(t *testing.T) {
	repo := New()
	ctx := context.Background()

	book := newBook("Dune", time.Now().UTC())
	require.NoError(t, repo.CreateBook(ctx, book))

	artifact := &bookvault.ArtifactRef{Kind: bookvault.RefKindObjectStorage, Locator: "o/b/book.epub"}
	cover := &bookvault.ArtifactRef{Kind: bookvault.RefKindObjectStorage, Locator: "o/b/cover.jpg"}
	require.NoError(t, repo.AttachArtifact(ctx, book.ID, artifact))
	require.NoError(t, repo.AttachCover(ctx, book.ID, cover))

	got, err := repo.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ArtifactRef)
	require.NotNil(t, got.CoverRef)
	assert.Equal(t, "o/b/book.epub", got.ArtifactRef.Locator)
	assert.Equal(t, "o/b/cover.jpg", got.CoverRef.Locator)
}

func TestRepositoryAttachNotFound(t *testing.T) {
	repo := New()
	ref := &bookvault.ArtifactRef{Kind: bookvault.RefKindExternalLink, Locator: "https://example.com"}

	err := repo.AttachArtifact(context.Background(), uuid.New(), ref)
	assert.True(t, errors.Is(err, bookvault.ErrBookNotFound))

	err = repo.AttachCover(context.Background(), uuid.New(), ref)
	assert.True(t, errors.Is(err, bookvault.ErrBookNotFound))
}

func TestRepositoryDelete(t *testing.T) {
	repo := New()
	ctx := context.Background()

	book := newBook("Dune", time.Now().UTC())
	require.NoError(t, repo.CreateBook(ctx, book))
	require.NoError(t, repo.DeleteBook(ctx, book.ID))

	_, err := repo.GetBook(ctx, book.ID)
	assert.True(t, errors.Is(err, bookvault.ErrBookNotFound))

	err = repo.DeleteBook(ctx, book.ID)
	assert.True(t, errors.Is(err, bookvault.ErrBookNotFound))
}
