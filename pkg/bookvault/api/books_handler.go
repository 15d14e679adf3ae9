package api

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/bookvault/bookvault/pkg/bookvault"
)

// BooksHandler handles HTTP requests for the book library using pkg/bookvault
type BooksHandler struct {
	service      bookvault.Service
	defaultOwner uuid.UUID
}

// NewBooksHandler creates a new books handler. defaultOwner is used when a
// request does not carry an owner_id field (the single-user deployment
// case).
func NewBooksHandler(service bookvault.Service, defaultOwner uuid.UUID) *BooksHandler {
	return &BooksHandler{
		service:      service,
		defaultOwner: defaultOwner,
	}
}

// Routes returns the routes for books
func (h *BooksHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListBooks)
	r.Post("/", h.CreateBook)
	r.Get("/{id}", h.GetBook)
	r.Delete("/{id}", h.DeleteBook)

	r.Get("/{id}/content", h.GetContent)
	r.Get("/{id}/cover", h.GetCover)
	r.Get("/{id}/file", h.GetFile)
	r.Get("/{id}/url", h.ResolveURL)

	return r
}

// ContentResponse is the response body for a book's markdown description
type ContentResponse struct {
	Content string `json:"content"`
}

// ResolutionResponse is the response body for a content resolution
type ResolutionResponse struct {
	Status    bookvault.ResolutionStatus `json:"status"`
	AccessURL *bookvault.AccessURL       `json:"access_url,omitempty"`
	Message   string                     `json:"message,omitempty"`
}

// ListBooks returns all books, newest first
func (h *BooksHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		slog.Error("Failed to list books", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if books == nil {
		books = []*bookvault.Book{}
	}
	render.JSON(w, r, books)
}

// CreateBook catalogs a new book from a multipart form: name, genre,
// description, and one of bookFile / bookUrl, plus an optional coverImage.
func (h *BooksHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	ownerID := h.defaultOwner
	if raw := r.FormValue("owner_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "Invalid owner ID", http.StatusBadRequest)
			return
		}
		ownerID = parsed
	}

	req := bookvault.CreateBookRequest{
		OwnerID:     ownerID,
		Name:        r.FormValue("name"),
		Genre:       r.FormValue("genre"),
		Description: r.FormValue("description"),
		ExternalURL: r.FormValue("bookUrl"),
	}

	bookFile, closeBook, err := formUpload(r, "bookFile")
	if err != nil {
		http.Error(w, "invalid bookFile upload", http.StatusBadRequest)
		return
	}
	if closeBook != nil {
		defer closeBook()
	}
	req.File = bookFile

	coverFile, closeCover, err := formUpload(r, "coverImage")
	if err != nil {
		http.Error(w, "invalid coverImage upload", http.StatusBadRequest)
		return
	}
	if closeCover != nil {
		defer closeCover()
	}
	req.Cover = coverFile

	book, err := h.service.CreateBook(r.Context(), req)
	if err != nil {
		if errors.Is(err, bookvault.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Failed to create book", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("Book created", "book_id", book.ID, "name", book.Name)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, book)
}

// formUpload extracts an optional multipart file field.
func formUpload(r *http.Request, field string) (*bookvault.FileUpload, func() error, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	return &bookvault.FileUpload{
		Reader:      file,
		FileName:    header.Filename,
		ContentType: uploadContentType(header),
	}, file.Close, nil
}

func uploadContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// GetBook returns a single book record
func (h *BooksHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.renderError(w, r, id, "get book", err)
		return
	}

	render.JSON(w, r, book)
}

// DeleteBook removes the book and, best-effort, its stored objects
func (h *BooksHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		h.renderError(w, r, id, "delete book", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetContent returns the book's markdown description
func (h *BooksHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.renderError(w, r, id, "get content", err)
		return
	}

	render.JSON(w, r, ContentResponse{Content: book.Description})
}

// GetCover streams the stored cover image
func (h *BooksHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}

	reader, info, err := h.service.OpenCover(r.Context(), id)
	if err != nil {
		h.renderError(w, r, id, "get cover", err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", storedContentType(info))
	if _, err := io.Copy(w, reader); err != nil {
		slog.Warn("Streaming cover interrupted", "book_id", id, "error", err)
	}
}

// GetFile streams the stored book artifact
func (h *BooksHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}

	reader, info, err := h.service.OpenArtifact(r.Context(), id)
	if err != nil {
		h.renderError(w, r, id, "get file", err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", storedContentType(info))
	if _, err := io.Copy(w, reader); err != nil {
		slog.Warn("Streaming artifact interrupted", "book_id", id, "error", err)
	}
}

// ResolveURL resolves the book's content to an AccessURL. The failure kinds
// stay distinguishable: a misconfigured backend needs an administrator, a
// missing object means the content is gone, an unreachable link is the
// caller's call.
func (h *BooksHandler) ResolveURL(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookID(w, r)
	if !ok {
		return
	}

	resolution, err := h.service.ResolveContent(r.Context(), id, bookvault.UseDetailView)
	if err != nil {
		h.renderError(w, r, id, "resolve url", err)
		return
	}

	resp := ResolutionResponse{
		Status:    resolution.Status,
		AccessURL: resolution.URL,
	}

	switch resolution.Status {
	case bookvault.ResolutionBackendMisconfigured:
		resp.Message = "storage backend is misconfigured; contact the administrator"
		render.Status(r, http.StatusServiceUnavailable)
	case bookvault.ResolutionObjectMissing:
		resp.Message = "the stored file is no longer available"
		render.Status(r, http.StatusGone)
	case bookvault.ResolutionLinkUnreachable:
		resp.Message = "the external link did not respond; it may still work in a browser"
	}

	render.JSON(w, r, resp)
}

// storedContentType falls back to octet-stream when the backend recorded
// no content type for the object.
func storedContentType(info *bookvault.ObjectInfo) string {
	if info != nil && info.ContentType != "" {
		return info.ContentType
	}
	return "application/octet-stream"
}

func (h *BooksHandler) bookID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "Invalid book ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *BooksHandler) renderError(w http.ResponseWriter, r *http.Request, id uuid.UUID, op string, err error) {
	switch {
	case errors.Is(err, bookvault.ErrBookNotFound):
		http.Error(w, "Book not found", http.StatusNotFound)
	case errors.Is(err, bookvault.ErrNoStoredArtifact), errors.Is(err, bookvault.ErrObjectNotFound):
		http.Error(w, "No stored file for this book", http.StatusNotFound)
	case errors.Is(err, bookvault.ErrBackendUnavailable):
		slog.Error("Storage backend unavailable", "book_id", id, "op", op, "error", err)
		http.Error(w, "Storage backend unavailable", http.StatusServiceUnavailable)
	default:
		slog.Error("Request failed", "book_id", id, "op", op, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
