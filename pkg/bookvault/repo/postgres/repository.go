package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookvault/bookvault/pkg/bookvault"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements bookvault.Repository using PostgreSQL.
//
// Schema:
//
//	CREATE TABLE book (
//	    id               UUID PRIMARY KEY,
//	    owner_id         UUID NOT NULL,
//	    name             TEXT NOT NULL,
//	    genre            TEXT NOT NULL,
//	    description      TEXT NOT NULL DEFAULT '',
//	    artifact_kind    TEXT,
//	    artifact_locator TEXT,
//	    cover_kind       TEXT,
//	    cover_locator    TEXT,
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    updated_at       TIMESTAMPTZ NOT NULL
//	);
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("book already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return bookvault.ErrBookNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) CreateBook(ctx context.Context, book *bookvault.Book) error {
	query := `
		INSERT INTO book (
			id, owner_id, name, genre, description,
			artifact_kind, artifact_locator, cover_kind, cover_locator,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	artifactKind, artifactLocator := splitRef(book.ArtifactRef)
	coverKind, coverLocator := splitRef(book.CoverRef)

	_, err := r.db.Exec(ctx, query,
		book.ID, book.OwnerID, book.Name, book.Genre, book.Description,
		artifactKind, artifactLocator, coverKind, coverLocator,
		book.CreatedAt, book.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create book", err)
	}

	return nil
}

func (r *Repository) GetBook(ctx context.Context, id uuid.UUID) (*bookvault.Book, error) {
	query := `
		SELECT id, owner_id, name, genre, description,
		       artifact_kind, artifact_locator, cover_kind, cover_locator,
		       created_at, updated_at
		FROM book
		WHERE id = $1`

	book, err := scanBook(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get book", err)
	}

	return book, nil
}

func (r *Repository) ListBooks(ctx context.Context) ([]*bookvault.Book, error) {
	query := `
		SELECT id, owner_id, name, genre, description,
		       artifact_kind, artifact_locator, cover_kind, cover_locator,
		       created_at, updated_at
		FROM book
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list books", err)
	}
	defer rows.Close()

	var books []*bookvault.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, r.handlePostgresError("list books", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list books", err)
	}

	return books, nil
}

func (r *Repository) AttachArtifact(ctx context.Context, id uuid.UUID, ref *bookvault.ArtifactRef) error {
	return r.attachRef(ctx, id, ref, "artifact_kind", "artifact_locator")
}

func (r *Repository) AttachCover(ctx context.Context, id uuid.UUID, ref *bookvault.ArtifactRef) error {
	return r.attachRef(ctx, id, ref, "cover_kind", "cover_locator")
}

// attachRef updates one reference pair without touching the sibling columns.
func (r *Repository) attachRef(ctx context.Context, id uuid.UUID, ref *bookvault.ArtifactRef, kindCol, locatorCol string) error {
	query := fmt.Sprintf(`
		UPDATE book
		SET %s = $2, %s = $3, updated_at = $4
		WHERE id = $1`, kindCol, locatorCol)

	kind, locator := splitRef(ref)
	tag, err := r.db.Exec(ctx, query, id, kind, locator, time.Now().UTC())
	if err != nil {
		return r.handlePostgresError("attach ref", err)
	}
	if tag.RowsAffected() == 0 {
		return bookvault.ErrBookNotFound
	}

	return nil
}

func (r *Repository) DeleteBook(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM book WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete book", err)
	}
	if tag.RowsAffected() == 0 {
		return bookvault.ErrBookNotFound
	}

	return nil
}

func splitRef(ref *bookvault.ArtifactRef) (*string, *string) {
	if ref == nil {
		return nil, nil
	}
	kind := string(ref.Kind)
	locator := ref.Locator
	return &kind, &locator
}

func scanBook(row pgx.Row) (*bookvault.Book, error) {
	var book bookvault.Book
	var artifactKind, artifactLocator, coverKind, coverLocator *string

	err := row.Scan(
		&book.ID, &book.OwnerID, &book.Name, &book.Genre, &book.Description,
		&artifactKind, &artifactLocator, &coverKind, &coverLocator,
		&book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		return nil, err
	}

	book.ArtifactRef = joinRef(artifactKind, artifactLocator)
	book.CoverRef = joinRef(coverKind, coverLocator)
	return &book, nil
}

func joinRef(kind, locator *string) *bookvault.ArtifactRef {
	if kind == nil || locator == nil {
		return nil
	}
	return &bookvault.ArtifactRef{
		Kind:    bookvault.RefKind(*kind),
		Locator: *locator,
	}
}
