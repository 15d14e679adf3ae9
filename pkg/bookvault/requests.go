package bookvault

import (
	"io"

	"github.com/google/uuid"
)

// Request DTOs

// FileUpload carries an uploaded file's bytes and naming metadata.
type FileUpload struct {
	Reader      io.Reader
	FileName    string
	ContentType string
}

// CreateBookRequest contains parameters for cataloguing a new book.
//
// Exactly one content source is required: File or ExternalURL. When both are
// supplied the uploaded file wins and the URL is ignored, mirroring the
// resolver's precedence.
type CreateBookRequest struct {
	OwnerID     uuid.UUID
	Name        string
	Genre       string
	Description string

	File        *FileUpload
	ExternalURL string

	Cover *FileUpload
}
